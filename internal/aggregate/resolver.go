// Package aggregate resolves every metric through the store's pre-aggregated
// procedure first and, when that is Unavailable, through raw rows folded
// locally into the same shape.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/workpulse/internal/calendar"
	"github.com/ZanzyTHEbar/workpulse/internal/datastore"
	"github.com/ZanzyTHEbar/workpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/workpulse/internal/ranking"
)

// Resolver computes counts, leaderboards and graph buckets.
type Resolver struct {
	gw     datastore.Gateway
	logger *monitoring.Logger
}

// NewResolver builds a Resolver. A nil logger discards output.
func NewResolver(gw datastore.Gateway, logger *monitoring.Logger) *Resolver {
	if logger == nil {
		logger = &monitoring.Logger{Logger: monitoring.Discard()}
	}
	return &Resolver{gw: gw, logger: logger}
}

func (r *Resolver) preferred(ctx context.Context, proc datastore.Procedure, args datastore.Args) datastore.Outcome {
	out := r.gw.PreAggregated(ctx, proc, args)
	monitoring.RecordPreferredPath(string(proc), out.OK())
	if !out.OK() {
		r.logger.StoreLogger(ctx, string(proc), out.Unavailable)
	}
	return out
}

func (r *Resolver) raw(ctx context.Context, op string, f datastore.Filter) ([]datastore.Sample, error) {
	samples, err := r.gw.RawRows(ctx, f)
	if err != nil {
		monitoring.RecordStoreError(op)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return samples, nil
}

// Counts are one user's totals per window.
type Counts struct {
	Today     int64
	Yesterday int64
	Week      int64
	LastWeek  int64
	Month     int64
	LastMonth int64
	AllTime   int64
}

// PersonalCounts totals a user's work across the standard windows. The
// all-time figure counts every sample up to today.
func (r *Resolver) PersonalCounts(ctx context.Context, userID string, f calendar.Frame) (Counts, error) {
	today, yesterday := f.Today(), f.Yesterday()
	week, lastWeek := f.CurrentWeek(), f.PreviousWeek()
	month, lastMonth := f.CurrentMonth(), f.PreviousMonth()

	out := r.preferred(ctx, datastore.ProcEmailsStats, datastore.Args{
		"target_user_id":   userID,
		"today_date":       today.StartDate(),
		"yesterday_date":   yesterday.StartDate(),
		"week_start":       week.StartDate(),
		"last_week_start":  lastWeek.StartDate(),
		"last_week_end":    lastWeek.EndDate(),
		"month_start":      month.StartDate(),
		"last_month_start": lastMonth.StartDate(),
		"last_month_end":   lastMonth.EndDate(),
	})
	if out.OK() {
		var c Counts
		if len(out.Rows) > 0 {
			row := out.Rows[0]
			c = Counts{
				Today:     row.Int("todays_tasks"),
				Yesterday: row.Int("yesterdays_tasks"),
				Week:      row.Int("weeks_tasks"),
				LastWeek:  row.Int("last_weeks_tasks"),
				Month:     row.Int("months_tasks"),
				LastMonth: row.Int("last_months_tasks"),
				AllTime:   row.Int("all_time_tasks"),
			}
		}
		return c, nil
	}

	// One read covers every window; each sample is folded into all the
	// windows that contain its date.
	samples, err := r.raw(ctx, "personal counts", datastore.Filter{
		EntityID: userID,
		To:       today.EndDate(),
	})
	if err != nil {
		return Counts{}, err
	}

	var c Counts
	for _, s := range samples {
		c.AllTime += s.Count
		if within(s.Date, today) {
			c.Today += s.Count
		}
		if within(s.Date, yesterday) {
			c.Yesterday += s.Count
		}
		if within(s.Date, week) {
			c.Week += s.Count
		}
		if within(s.Date, lastWeek) {
			c.LastWeek += s.Count
		}
		if within(s.Date, month) {
			c.Month += s.Count
		}
		if within(s.Date, lastMonth) {
			c.LastMonth += s.Count
		}
	}
	return c, nil
}

// within compares rendered dates; YYYY-MM-DD sorts chronologically.
func within(date string, w calendar.Window) bool {
	return date >= w.StartDate() && date <= w.EndDate()
}

// leaderboardColumns maps a scope onto its procedure and result columns.
var leaderboardColumns = map[ranking.Scope]struct {
	proc        datastore.Procedure
	name, score string
	group       datastore.Group
}{
	ranking.Individual: {datastore.ProcIndividualLeaderboard, "username", "user_score", datastore.GroupUser},
	ranking.Team:       {datastore.ProcTeamLeaderboard, "team_name", "team_score", datastore.GroupTeam},
}

// Leaderboard ranks the scope's participants over the window. Preferred rows
// are trusted as ranked; fallback totals are ranked locally in first-seen
// order, which matches the procedures' tie-break.
func (r *Resolver) Leaderboard(ctx context.Context, scope ranking.Scope, w calendar.Window) (ranking.Board, error) {
	cols := leaderboardColumns[scope]

	out := r.preferred(ctx, cols.proc, datastore.Args{
		"start_date": w.StartDate(),
		"end_date":   w.EndDate(),
	})
	if out.OK() {
		entries := make([]ranking.Entry, len(out.Rows))
		for i, row := range out.Rows {
			entries[i] = ranking.Entry{
				Name:  row.String(cols.name),
				Score: row.Int(cols.score),
				Rank:  int(row.Int("rnk")),
			}
		}
		return ranking.Ranked(entries), nil
	}

	samples, err := r.raw(ctx, scope.String()+" leaderboard", datastore.Filter{
		From:  w.StartDate(),
		To:    w.EndDate(),
		Group: cols.group,
	})
	if err != nil {
		return ranking.Board{}, err
	}
	return ranking.Rank(foldByGroup(samples)), nil
}

// foldByGroup sums counts per grouping key in first-seen order. Samples
// without a key are left out.
func foldByGroup(samples []datastore.Sample) []ranking.Score {
	index := make(map[string]int)
	scores := []ranking.Score{}
	for _, s := range samples {
		if s.GroupKey == "" {
			continue
		}
		i, seen := index[s.GroupKey]
		if !seen {
			i = len(scores)
			index[s.GroupKey] = i
			scores = append(scores, ranking.Score{Name: s.GroupName})
		}
		scores[i].Score += s.Count
	}
	return scores
}

// TeamOf names the user's team. ok is false for an unknown or teamless user
// and for a team without work in the window.
func (r *Resolver) TeamOf(ctx context.Context, userID string, w calendar.Window) (string, bool, error) {
	out := r.preferred(ctx, datastore.ProcTeamPositionForUser, datastore.Args{
		"target_user_id": userID,
		"start_date":     w.StartDate(),
		"end_date":       w.EndDate(),
	})
	if out.OK() {
		if len(out.Rows) == 0 {
			return "", false, nil
		}
		return out.Rows[0].String("team_name"), true, nil
	}

	profile, err := r.gw.Profile(ctx, userID)
	if errors.Is(err, datastore.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		monitoring.RecordStoreError("team lookup")
		return "", false, fmt.Errorf("team lookup: %w", err)
	}
	if profile.TeamID == "" {
		return "", false, nil
	}

	samples, err := r.raw(ctx, "team lookup", datastore.Filter{
		From:  w.StartDate(),
		To:    w.EndDate(),
		Group: datastore.GroupTeam,
	})
	if err != nil {
		return "", false, err
	}
	for _, s := range samples {
		if s.GroupKey == profile.TeamID {
			return s.GroupName, true, nil
		}
	}
	return "", false, nil
}

// TodayTotal sums every entity's work today. There is no fallback; an
// Unavailable procedure surfaces as a StoreError.
func (r *Resolver) TodayTotal(ctx context.Context, f calendar.Frame) (int64, error) {
	out := r.preferred(ctx, datastore.ProcTotalEmailsToday, datastore.Args{
		"today_date": f.Today().StartDate(),
	})
	if !out.OK() {
		monitoring.RecordStoreError("total emails today")
		return 0, &datastore.StoreError{Op: "total emails today", Err: out.Unavailable}
	}
	if len(out.Rows) == 0 {
		return 0, nil
	}
	return out.Rows[0].Int("total_emails"), nil
}
