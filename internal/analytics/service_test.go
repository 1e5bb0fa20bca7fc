package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/workpulse/internal/aggregate"
	"github.com/ZanzyTHEbar/workpulse/internal/cache"
	"github.com/ZanzyTHEbar/workpulse/internal/calendar"
	"github.com/ZanzyTHEbar/workpulse/internal/datastore"
	"github.com/ZanzyTHEbar/workpulse/internal/datastore/datastoretest"
	"github.com/ZanzyTHEbar/workpulse/internal/ranking"
	"github.com/ZanzyTHEbar/workpulse/internal/types"
)

var (
	ann = types.Principal{ID: "u1", DisplayName: "Ann"}
	bob = types.Principal{ID: "u2", DisplayName: "Bob"}
	cid = types.Principal{ID: "u3", DisplayName: "Cid"}
	eve = types.Principal{ID: "u5", DisplayName: "Eve"}
)

func newService(t *testing.T, gw datastore.Gateway, target int64) (*Service, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	svc := NewService(Options{
		Calendar:    calendar.New(time.UTC, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		Resolver:    aggregate.NewResolver(gw, nil),
		Cache:       cache.NewMemory(cache.DefaultTTL, clock),
		Clock:       clock,
		DailyTarget: target,
	})
	return svc, clock
}

func seededDB(t *testing.T, disabled ...string) *datastore.DB {
	t.Helper()
	ctx := context.Background()
	db, err := datastore.Open(datastore.Config{Driver: datastore.DialectSQLite, DSN: ":memory:", Disabled: disabled})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.AddTeam(ctx, "t1", "Alpha"))
	require.NoError(t, db.AddTeam(ctx, "t2", "Beta"))
	require.NoError(t, db.AddUser(ctx, datastore.Profile{ID: "u1", Name: "Ann"}, "t1"))
	require.NoError(t, db.AddUser(ctx, datastore.Profile{ID: "u2", Name: "Bob"}, "t2"))
	require.NoError(t, db.AddUser(ctx, datastore.Profile{ID: "u3", Name: "Cid"}, ""))
	require.NoError(t, db.AddUser(ctx, datastore.Profile{ID: "u5", Name: "Eve"}, "t1"))
	for _, l := range []datastore.WorkLog{
		{Date: "2025-02-10", Count: 4, UserID: "u1"},
		{Date: "2025-02-27", Count: 7, UserID: "u2"},
		{Date: "2025-03-14", Count: 10, UserID: "u1"},
		{Date: "2025-03-14", Count: 15, UserID: "u3"},
		{Date: "2025-03-15", Count: 15, UserID: "u1"},
		{Date: "2025-03-15", Count: 20, UserID: "u2"},
		{Date: "2025-03-15", Count: 5, UserID: "u3"},
	} {
		require.NoError(t, db.LogWork(ctx, l))
	}
	return db
}

func TestProgress(t *testing.T) {
	tests := []struct {
		value, comparison int64
		want              float64
	}{
		{10, 0, 0},
		{8, 10, 0},
		{15, 10, 50},
		{0, 0, 0},
		{30, 10, 200},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Progress(tt.value, tt.comparison), 1e-9, "%d vs %d", tt.value, tt.comparison)
	}
}

func TestPersonalStats(t *testing.T) {
	gw := datastoretest.New().Serve(datastore.ProcEmailsStats, datastore.Row{
		"todays_tasks":      int64(15),
		"yesterdays_tasks":  int64(10),
		"weeks_tasks":       int64(25),
		"last_weeks_tasks":  int64(20),
		"months_tasks":      int64(8),
		"last_months_tasks": int64(10),
		"all_time_tasks":    int64(300),
	})
	svc, _ := newService(t, gw, 0)

	stats, err := svc.PersonalStats(context.Background(), ann)
	require.NoError(t, err)
	assert.Equal(t, PersonalStats{
		TodaysTasks:     15,
		Progress:        50,
		WeeksTasks:      25,
		WeeksProgress:   25,
		MonthsTasks:     8,
		MonthsProgress:  0,
		YesterdaysTasks: 10,
		LastWeeksTasks:  20,
		LastMonthsTasks: 10,
		AllTimeTasks:    300,
	}, stats)

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "u1", calls[0].Args["target_user_id"])
	assert.Equal(t, "2025-03-10", calls[0].Args["week_start"])
	assert.Equal(t, "2025-02-28", calls[0].Args["last_month_end"])
}

func TestPersonalStatsFallback(t *testing.T) {
	gw := datastoretest.New().
		Log("u1", "2025-03-14", 10).
		Log("u1", "2025-03-15", 15).
		Log("u1", "2025-02-03", 40)
	svc, _ := newService(t, gw, 0)

	stats, err := svc.PersonalStats(context.Background(), ann)
	require.NoError(t, err)
	assert.Equal(t, int64(15), stats.TodaysTasks)
	assert.InDelta(t, 50.0, stats.Progress, 1e-9)
	assert.Equal(t, int64(25), stats.MonthsTasks)
	assert.Equal(t, int64(40), stats.LastMonthsTasks)
	assert.Zero(t, stats.MonthsProgress)
	assert.Equal(t, int64(65), stats.AllTimeTasks)
}

func TestLeaderboardPayloadIdenticalAcrossPaths(t *testing.T) {
	disabled := []string{
		string(datastore.ProcIndividualLeaderboard),
		string(datastore.ProcTeamLeaderboard),
		string(datastore.ProcTeamPositionForUser),
	}
	preferred, _ := newService(t, seededDB(t), 0)
	fallback, _ := newService(t, seededDB(t, disabled...), 0)
	ctx := context.Background()

	for _, window := range []string{"today", "week", "this_month", "all_time"} {
		for _, scope := range []string{"individual", "team"} {
			for _, p := range []types.Principal{ann, cid, eve} {
				want, err := preferred.Leaderboard(ctx, window, scope, p)
				require.NoError(t, err)
				got, err := fallback.Leaderboard(ctx, window, scope, p)
				require.NoError(t, err)
				assert.Equal(t, string(want), string(got), "%s %s for %s", window, scope, p.DisplayName)
			}
		}
	}
}

func TestLeaderboardPayloadShape(t *testing.T) {
	svc, _ := newService(t, seededDB(t), 0)

	payload, err := svc.Leaderboard(context.Background(), "week", "individual", bob)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"window": "week",
		"scope": "individual",
		"start": "2025-03-10",
		"end": "2025-03-15",
		"entries": [
			{"name": "Ann", "score": 25, "rank": 1},
			{"name": "Cid", "score": 20, "rank": 2},
			{"name": "Bob", "score": 20, "rank": 3}
		],
		"personal_progress": {"rank": 3, "name": "Bob", "score": 20, "total_participants": 3}
	}`, string(payload))
}

func TestLeaderboardTeamProgress(t *testing.T) {
	svc, _ := newService(t, seededDB(t), 0)
	ctx := context.Background()

	payload, err := svc.Leaderboard(ctx, "today", "team", ann)
	require.NoError(t, err)
	var body LeaderboardPayload
	require.NoError(t, json.Unmarshal(payload, &body))
	require.NotNil(t, body.PersonalProgress)
	assert.Equal(t, ranking.Position{Rank: 2, Name: "Alpha", Score: 15, TotalParticipants: 2}, *body.PersonalProgress)
}

func TestLeaderboardTeamProgressWithoutOwnWork(t *testing.T) {
	disabled := []string{string(datastore.ProcTeamLeaderboard), string(datastore.ProcTeamPositionForUser)}
	for name, db := range map[string]*datastore.DB{
		"preferred": seededDB(t),
		"fallback":  seededDB(t, disabled...),
	} {
		svc, _ := newService(t, db, 0)
		payload, err := svc.Leaderboard(context.Background(), "today", "team", eve)
		require.NoError(t, err, name)
		var body LeaderboardPayload
		require.NoError(t, json.Unmarshal(payload, &body), name)
		require.NotNil(t, body.PersonalProgress, name)
		assert.Equal(t, ranking.Position{Rank: 2, Name: "Alpha", Score: 15, TotalParticipants: 2}, *body.PersonalProgress, name)
	}
}

func TestLeaderboardAbsentRequesterIsNull(t *testing.T) {
	svc, _ := newService(t, seededDB(t), 0)

	payload, err := svc.Leaderboard(context.Background(), "today", "team", cid)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, "null", string(raw["personal_progress"]))

	empty, err := svc.Leaderboard(context.Background(), "today", "individual", types.Principal{ID: "u9", DisplayName: "Nobody"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(empty, &raw))
	assert.Equal(t, "null", string(raw["personal_progress"]))
}

func TestLeaderboardCache(t *testing.T) {
	gw := datastoretest.New().Serve(datastore.ProcIndividualLeaderboard,
		datastore.Row{"username": "Bob", "user_score": int64(20), "rnk": int64(1)},
		datastore.Row{"username": "Ann", "user_score": int64(15), "rnk": int64(2)},
	)
	svc, clock := newService(t, gw, 0)
	ctx := context.Background()

	first, err := svc.Leaderboard(ctx, "week", "individual", ann)
	require.NoError(t, err)

	// A different requester inside the TTL gets the stored bytes, including
	// Ann's personal progress.
	clock.Advance(59 * time.Second)
	second, err := svc.Leaderboard(ctx, "week", "individual", bob)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, gw.Calls(), 1)

	clock.Advance(time.Second)
	third, err := svc.Leaderboard(ctx, "week", "individual", bob)
	require.NoError(t, err)
	assert.Len(t, gw.Calls(), 2)
	var body LeaderboardPayload
	require.NoError(t, json.Unmarshal(third, &body))
	require.NotNil(t, body.PersonalProgress)
	assert.Equal(t, "Bob", body.PersonalProgress.Name)

	// Each window and scope has its own slot; the alias shares this_month's.
	_, err = svc.Leaderboard(ctx, "this month", "individual", ann)
	require.NoError(t, err)
	_, err = svc.Leaderboard(ctx, "this_month", "individual", ann)
	require.NoError(t, err)
	assert.Len(t, gw.Calls(), 3)
}

func TestLeaderboardRejectsUnknownSelectors(t *testing.T) {
	gw := datastoretest.New()
	svc, _ := newService(t, gw, 0)
	ctx := context.Background()

	_, err := svc.Leaderboard(ctx, "fortnight", "individual", ann)
	assert.ErrorIs(t, err, calendar.ErrUnknownKind)

	_, err = svc.Leaderboard(ctx, "week", "guild", ann)
	assert.ErrorIs(t, err, ranking.ErrUnknownScope)

	assert.Empty(t, gw.Calls())
}

func TestGraph(t *testing.T) {
	svc, _ := newService(t, seededDB(t), 0)
	ctx := context.Background()

	empty, err := svc.Graph(ctx, "all_time", types.Principal{ID: "u9"})
	require.NoError(t, err)
	body, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"all_time","user_data":[]}`, string(body))

	month, err := svc.Graph(ctx, "30days", ann)
	require.NoError(t, err)
	require.Len(t, month.UserData, 15)
	assert.Equal(t, "2025-02-15", month.UserData[0].Date)
	assert.Equal(t, aggregate.Bucket{Date: "2025-03-15", Tasks: 25}, month.UserData[14])

	_, err = svc.Graph(ctx, "decade", ann)
	assert.ErrorIs(t, err, aggregate.ErrUnknownMode)
}

func TestGlobalCounter(t *testing.T) {
	ctx := context.Background()

	svc, _ := newService(t, seededDB(t), 0)
	counter, err := svc.GlobalCounter(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counter{Remaining: DefaultDailyTarget - 40, Total: DefaultDailyTarget}, counter)

	over, _ := newService(t, seededDB(t), 30)
	counter, err = over.GlobalCounter(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counter{Remaining: -10, Total: 30}, counter)

	down, _ := newService(t, seededDB(t, string(datastore.ProcTotalEmailsToday)), 0)
	_, err = down.GlobalCounter(ctx)
	var storeErr *datastore.StoreError
	assert.ErrorAs(t, err, &storeErr)
}
