package aggregate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/workpulse/internal/calendar"
	"github.com/ZanzyTHEbar/workpulse/internal/datastore"
)

// ErrUnknownMode is returned for an unrecognised graph mode.
var ErrUnknownMode = errors.New("unknown graph mode")

// BucketMode selects how a user's history is bucketed.
type BucketMode string

const (
	ModeWeek    BucketMode = "week"
	Mode30Days  BucketMode = "30days"
	ModeAllTime BucketMode = "all_time"
)

const (
	monthLayout   = "2006-01"
	thirtyDaySpan = 30
	pairSize      = 2
)

// ParseBucketMode accepts "week", "30days" and "all_time".
func ParseBucketMode(s string) (BucketMode, error) {
	switch m := BucketMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeWeek, Mode30Days, ModeAllTime:
		return m, nil
	}
	return "", ErrUnknownMode
}

// Bucket is one point of a graph. Day buckets carry Date, monthly ones Month.
type Bucket struct {
	Date  string `json:"date,omitempty"`
	Month string `json:"month,omitempty"`
	Tasks int64  `json:"tasks"`
}

// Graph buckets one user's history, oldest first.
//
// week is the last seven days one bucket each. 30days covers the thirty days
// ending today in fifteen two-day buckets labelled by their last day.
// all_time is one bucket per month from the user's first sample through the
// current month, and empty when the user has no samples.
func (r *Resolver) Graph(ctx context.Context, mode BucketMode, userID string, f calendar.Frame) ([]Bucket, error) {
	switch mode {
	case ModeWeek:
		return r.dayGraph(ctx, datastore.ProcUserGraphWeek, userID, f, 7, 1)
	case Mode30Days:
		return r.dayGraph(ctx, datastore.ProcUserGraph30Days, userID, f, thirtyDaySpan, pairSize)
	case ModeAllTime:
		return r.monthGraph(ctx, userID, f)
	}
	return nil, ErrUnknownMode
}

func (r *Resolver) dayGraph(ctx context.Context, proc datastore.Procedure, userID string, f calendar.Frame, span, width int) ([]Bucket, error) {
	start := f.DaysAgo(span - 1).Format(calendar.DateLayout)
	today := f.Today().EndDate()

	out := r.preferred(ctx, proc, datastore.Args{
		"target_user_id": userID,
		"start_date":     start,
	})
	if out.OK() {
		buckets := make([]Bucket, len(out.Rows))
		for i, row := range out.Rows {
			buckets[i] = Bucket{Date: row.String("date"), Tasks: row.Int("tasks")}
		}
		return buckets, nil
	}

	samples, err := r.raw(ctx, string(proc), datastore.Filter{
		EntityID: userID,
		From:     start,
		To:       today,
	})
	if err != nil {
		return nil, err
	}

	buckets := make([]Bucket, span/width)
	slot := make(map[string]int, span)
	for d := 0; d < span; d++ {
		i := d / width
		date := f.DaysAgo(span - 1 - d).Format(calendar.DateLayout)
		slot[date] = i
		// The last day written into a bucket labels it.
		buckets[i].Date = date
	}
	for _, s := range samples {
		if i, ok := slot[s.Date]; ok {
			buckets[i].Tasks += s.Count
		}
	}
	return buckets, nil
}

func (r *Resolver) monthGraph(ctx context.Context, userID string, f calendar.Frame) ([]Bucket, error) {
	today := f.Today().EndDate()

	out := r.preferred(ctx, datastore.ProcUserGraphAllTime, datastore.Args{
		"target_user_id": userID,
		"today_date":     today,
	})
	if out.OK() {
		buckets := make([]Bucket, len(out.Rows))
		for i, row := range out.Rows {
			buckets[i] = Bucket{Month: row.String("month"), Tasks: row.Int("tasks")}
		}
		return buckets, nil
	}

	samples, err := r.raw(ctx, string(datastore.ProcUserGraphAllTime), datastore.Filter{
		EntityID: userID,
		To:       today,
	})
	if err != nil {
		return nil, err
	}
	buckets := []Bucket{}
	if len(samples) == 0 {
		return buckets, nil
	}

	first, err := time.Parse(calendar.DateLayout, samples[0].Date)
	if err != nil {
		return nil, &datastore.StoreError{Op: "all time graph", Err: err}
	}
	day := f.Day()
	last := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	slot := make(map[string]int)
	for m := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(last); m = m.AddDate(0, 1, 0) {
		slot[m.Format(monthLayout)] = len(buckets)
		buckets = append(buckets, Bucket{Month: m.Format(monthLayout)})
	}
	for _, s := range samples {
		if len(s.Date) < len(monthLayout) {
			continue
		}
		if i, ok := slot[s.Date[:len(monthLayout)]]; ok {
			buckets[i].Tasks += s.Count
		}
	}
	return buckets, nil
}
