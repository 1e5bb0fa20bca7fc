// Package analytics is the dashboard facade: personal stats, leaderboards,
// graphs and the global counter, computed for an authenticated principal.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/quartz"

	"github.com/ZanzyTHEbar/workpulse/internal/aggregate"
	"github.com/ZanzyTHEbar/workpulse/internal/cache"
	"github.com/ZanzyTHEbar/workpulse/internal/calendar"
	"github.com/ZanzyTHEbar/workpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/workpulse/internal/ranking"
	"github.com/ZanzyTHEbar/workpulse/internal/types"
)

// DefaultDailyTarget is the global counter total when none is configured.
const DefaultDailyTarget int64 = 5000

// Options wires a Service.
type Options struct {
	Calendar    *calendar.Calendar
	Resolver    *aggregate.Resolver
	Cache       cache.Store
	Clock       quartz.Clock
	DailyTarget int64
	Logger      *monitoring.Logger
}

// Service answers dashboard queries.
type Service struct {
	cal      *calendar.Calendar
	resolver *aggregate.Resolver
	cache    cache.Store
	clock    quartz.Clock
	target   int64
	logger   *monitoring.Logger
}

// NewService builds a Service, filling unset options with defaults.
func NewService(opts Options) *Service {
	s := &Service{
		cal:      opts.Calendar,
		resolver: opts.Resolver,
		cache:    opts.Cache,
		clock:    opts.Clock,
		target:   opts.DailyTarget,
		logger:   opts.Logger,
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.cal == nil {
		launch, _ := time.Parse(calendar.DateLayout, calendar.DefaultLaunchDate)
		s.cal = calendar.New(nil, launch)
	}
	if s.cache == nil {
		s.cache = cache.NewMemory(cache.DefaultTTL, s.clock)
	}
	if s.target <= 0 {
		s.target = DefaultDailyTarget
	}
	if s.logger == nil {
		s.logger = &monitoring.Logger{Logger: monitoring.Discard()}
	}
	return s
}

func (s *Service) frame() calendar.Frame {
	return s.cal.At(s.clock.Now())
}

// Progress is the percentage growth of value over comparison, floored at
// zero. A zero comparison yields zero.
func Progress(value, comparison int64) float64 {
	if comparison <= 0 {
		return 0
	}
	return max(0, float64(value-comparison)/float64(comparison)*100)
}

// PersonalStats is the caller's dashboard summary.
type PersonalStats struct {
	TodaysTasks     int64   `json:"todays_tasks"`
	Progress        float64 `json:"progress"`
	WeeksTasks      int64   `json:"weeks_tasks"`
	WeeksProgress   float64 `json:"weeks_progress"`
	MonthsTasks     int64   `json:"months_tasks"`
	MonthsProgress  float64 `json:"months_progress"`
	YesterdaysTasks int64   `json:"yesterdays_tasks"`
	LastWeeksTasks  int64   `json:"last_weeks_tasks"`
	LastMonthsTasks int64   `json:"last_months_tasks"`
	AllTimeTasks    int64   `json:"all_time_tasks"`
}

// PersonalStats is never cached.
func (s *Service) PersonalStats(ctx context.Context, p types.Principal) (PersonalStats, error) {
	c, err := s.resolver.PersonalCounts(ctx, p.ID, s.frame())
	if err != nil {
		return PersonalStats{}, err
	}
	return PersonalStats{
		TodaysTasks:     c.Today,
		Progress:        Progress(c.Today, c.Yesterday),
		WeeksTasks:      c.Week,
		WeeksProgress:   Progress(c.Week, c.LastWeek),
		MonthsTasks:     c.Month,
		MonthsProgress:  Progress(c.Month, c.LastMonth),
		YesterdaysTasks: c.Yesterday,
		LastWeeksTasks:  c.LastWeek,
		LastMonthsTasks: c.LastMonth,
		AllTimeTasks:    c.AllTime,
	}, nil
}

// LeaderboardPayload is the cached leaderboard body.
type LeaderboardPayload struct {
	Window           calendar.Kind     `json:"window"`
	Scope            string            `json:"scope"`
	Start            string            `json:"start"`
	End              string            `json:"end"`
	Entries          []ranking.Entry   `json:"entries"`
	PersonalProgress *ranking.Position `json:"personal_progress"`
}

// CacheKey names the cache slot for a window and scope.
func CacheKey(kind calendar.Kind, scope ranking.Scope) string {
	return fmt.Sprintf("%s-%s", kind, scope)
}

// Leaderboard returns the encoded payload for window and scope. A fresh
// cached payload is returned byte for byte, personal progress included,
// whoever asked for it first.
func (s *Service) Leaderboard(ctx context.Context, window, scope string, p types.Principal) (json.RawMessage, error) {
	kind, err := calendar.ParseKind(window)
	if err != nil {
		return nil, fmt.Errorf("window %q: %w", window, err)
	}
	sc, err := ranking.ParseScope(scope)
	if err != nil {
		return nil, fmt.Errorf("scope %q: %w", scope, err)
	}

	key := CacheKey(kind, sc)
	if payload, ok := s.cache.Get(ctx, key); ok {
		monitoring.RecordCacheLookup(true)
		s.logger.CacheLogger("get", key, true)
		return payload, nil
	}
	monitoring.RecordCacheLookup(false)
	s.logger.CacheLogger("get", key, false)

	w, err := s.frame().Window(kind)
	if err != nil {
		return nil, err
	}
	board, err := s.resolver.Leaderboard(ctx, sc, w)
	if err != nil {
		return nil, err
	}

	body := LeaderboardPayload{
		Window:  kind,
		Scope:   sc.String(),
		Start:   w.StartDate(),
		End:     w.EndDate(),
		Entries: board.Entries(),
	}
	name, err := s.rankedName(ctx, sc, w, p)
	if err != nil {
		return nil, err
	}
	if pos, ok := board.Locate(name); name != "" && ok {
		body.PersonalProgress = &pos
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, payload)
	return payload, nil
}

// rankedName is the name the principal appears under on a board of scope.
func (s *Service) rankedName(ctx context.Context, sc ranking.Scope, w calendar.Window, p types.Principal) (string, error) {
	if sc == ranking.Individual {
		return p.DisplayName, nil
	}
	team, ok, err := s.resolver.TeamOf(ctx, p.ID, w)
	if err != nil || !ok {
		return "", err
	}
	return team, nil
}

// GraphPayload is the caller's bucketed history.
type GraphPayload struct {
	Mode     aggregate.BucketMode `json:"mode"`
	UserData []aggregate.Bucket   `json:"user_data"`
}

// Graph is not cached.
func (s *Service) Graph(ctx context.Context, mode string, p types.Principal) (GraphPayload, error) {
	m, err := aggregate.ParseBucketMode(mode)
	if err != nil {
		return GraphPayload{}, fmt.Errorf("graph mode %q: %w", mode, err)
	}
	buckets, err := s.resolver.Graph(ctx, m, p.ID, s.frame())
	if err != nil {
		return GraphPayload{}, err
	}
	return GraphPayload{Mode: m, UserData: buckets}, nil
}

// Counter is the shared daily target and what is left of it.
type Counter struct {
	Remaining int64 `json:"remaining"`
	Total     int64 `json:"total"`
}

// GlobalCounter subtracts today's work across everyone from the target.
// Remaining goes negative once the target is passed.
func (s *Service) GlobalCounter(ctx context.Context) (Counter, error) {
	done, err := s.resolver.TodayTotal(ctx, s.frame())
	if err != nil {
		return Counter{}, err
	}
	return Counter{Remaining: s.target - done, Total: s.target}, nil
}
