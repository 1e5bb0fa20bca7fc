package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/workpulse/internal/calendar"
	"github.com/ZanzyTHEbar/workpulse/internal/datastore"
	"github.com/ZanzyTHEbar/workpulse/internal/datastore/datastoretest"
	"github.com/ZanzyTHEbar/workpulse/internal/ranking"
)

var allProcedures = []string{
	string(datastore.ProcEmailsStats),
	string(datastore.ProcIndividualLeaderboard),
	string(datastore.ProcTeamLeaderboard),
	string(datastore.ProcTeamPositionForUser),
	string(datastore.ProcTotalEmailsToday),
	string(datastore.ProcUserGraphWeek),
	string(datastore.ProcUserGraph30Days),
	string(datastore.ProcUserGraphAllTime),
}

func frameAt(t *testing.T, date string) calendar.Frame {
	t.Helper()
	cal := calendar.New(time.UTC, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	day, err := cal.ParseDate(date)
	require.NoError(t, err)
	return cal.At(day.Add(13 * time.Hour))
}

func openSeeded(t *testing.T, disabled ...string) *datastore.DB {
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
	require.NoError(t, db.AddUser(ctx, datastore.Profile{ID: "u4"}, "t1"))
	require.NoError(t, db.AddUser(ctx, datastore.Profile{ID: "u5", Name: "Eve"}, "t1"))
	for _, l := range []datastore.WorkLog{
		{Date: "2025-02-10", Count: 4, UserID: "u1"},
		{Date: "2025-02-27", Count: 7, UserID: "u2"},
		{Date: "2025-03-03", Count: 6, UserID: "u1"},
		{Date: "2025-03-14", Count: 10, UserID: "u1"},
		{Date: "2025-03-14", Count: 15, UserID: "u3"},
		{Date: "2025-03-15", Count: 15, UserID: "u1"},
		{Date: "2025-03-15", Count: 20, UserID: "u2"},
		{Date: "2025-03-15", Count: 5, UserID: "u3"},
		{Date: "2025-03-15", Count: 3, UserID: "u4"},
		{Date: "2025-03-16", Count: 99, UserID: "u1"},
	} {
		require.NoError(t, db.LogWork(ctx, l))
	}
	return db
}

func TestPreferredAndFallbackAgree(t *testing.T) {
	ctx := context.Background()
	preferred := NewResolver(openSeeded(t), nil)
	fallback := NewResolver(openSeeded(t, allProcedures...), nil)
	f := frameAt(t, "2025-03-15")

	for _, user := range []string{"u1", "u2", "u3", "nobody"} {
		want, err := preferred.PersonalCounts(ctx, user, f)
		require.NoError(t, err)
		got, err := fallback.PersonalCounts(ctx, user, f)
		require.NoError(t, err)
		assert.Equal(t, want, got, "counts for %s", user)

		for _, mode := range []BucketMode{ModeWeek, Mode30Days, ModeAllTime} {
			want, err := preferred.Graph(ctx, mode, user, f)
			require.NoError(t, err)
			got, err := fallback.Graph(ctx, mode, user, f)
			require.NoError(t, err)
			assert.Equal(t, want, got, "%s graph for %s", mode, user)
		}
	}

	for _, kind := range []calendar.Kind{calendar.KindToday, calendar.KindWeek, calendar.KindThisMonth, calendar.KindAllTime} {
		w, err := f.Window(kind)
		require.NoError(t, err)
		for _, scope := range []ranking.Scope{ranking.Individual, ranking.Team} {
			want, err := preferred.Leaderboard(ctx, scope, w)
			require.NoError(t, err)
			got, err := fallback.Leaderboard(ctx, scope, w)
			require.NoError(t, err)
			assert.Equal(t, want.Entries(), got.Entries(), "%s %s", scope, kind)
		}
	}

	for _, user := range []string{"u1", "u2", "u3", "u4", "u5", "nobody"} {
		for _, w := range []calendar.Window{f.Today(), f.CurrentWeek(), frameAt(t, "2025-01-06").Today()} {
			wantName, wantOK, err := preferred.TeamOf(ctx, user, w)
			require.NoError(t, err)
			gotName, gotOK, err := fallback.TeamOf(ctx, user, w)
			require.NoError(t, err)
			assert.Equal(t, wantOK, gotOK, "%s %s", user, w)
			assert.Equal(t, wantName, gotName, "%s %s", user, w)
		}
	}
}

func TestNamelessUserIsLeftOffIndividualBoard(t *testing.T) {
	ctx := context.Background()
	today := frameAt(t, "2025-03-15").Today()

	for _, r := range []*Resolver{
		NewResolver(openSeeded(t), nil),
		NewResolver(openSeeded(t, allProcedures...), nil),
	} {
		users, err := r.Leaderboard(ctx, ranking.Individual, today)
		require.NoError(t, err)
		assert.Equal(t, []ranking.Entry{
			{Name: "Bob", Score: 20, Rank: 1},
			{Name: "Ann", Score: 15, Rank: 2},
			{Name: "Cid", Score: 5, Rank: 3},
		}, users.Entries())

		teams, err := r.Leaderboard(ctx, ranking.Team, today)
		require.NoError(t, err)
		assert.Equal(t, []ranking.Entry{
			{Name: "Beta", Score: 20, Rank: 1},
			{Name: "Alpha", Score: 18, Rank: 2},
		}, teams.Entries(), "nameless members still count for their team")
	}
}

func TestTeamOfWithoutOwnWork(t *testing.T) {
	ctx := context.Background()
	f := frameAt(t, "2025-03-15")

	for _, r := range []*Resolver{
		NewResolver(openSeeded(t), nil),
		NewResolver(openSeeded(t, allProcedures...), nil),
	} {
		name, ok, err := r.TeamOf(ctx, "u5", f.Today())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Alpha", name)

		_, ok, err = r.TeamOf(ctx, "u5", frameAt(t, "2025-01-06").Today())
		require.NoError(t, err)
		assert.False(t, ok, "team without work in the window")

		_, ok, err = r.TeamOf(ctx, "u3", f.Today())
		require.NoError(t, err)
		assert.False(t, ok, "teamless user")
	}
}

func TestPersonalCountsValues(t *testing.T) {
	r := NewResolver(openSeeded(t, allProcedures...), nil)

	c, err := r.PersonalCounts(context.Background(), "u1", frameAt(t, "2025-03-15"))
	require.NoError(t, err)
	assert.Equal(t, Counts{
		Today:     15,
		Yesterday: 10,
		Week:      25,
		LastWeek:  6,
		Month:     31,
		LastMonth: 4,
		AllTime:   35,
	}, c)
}

func TestLeaderboardTieKeepsFirstSeen(t *testing.T) {
	r := NewResolver(openSeeded(t, allProcedures...), nil)
	f := frameAt(t, "2025-03-15")

	board, err := r.Leaderboard(context.Background(), ranking.Individual, f.CurrentWeek())
	require.NoError(t, err)
	assert.Equal(t, []ranking.Entry{
		{Name: "Ann", Score: 25, Rank: 1},
		{Name: "Cid", Score: 20, Rank: 2},
		{Name: "Bob", Score: 20, Rank: 3},
	}, board.Entries())

	teams, err := r.Leaderboard(context.Background(), ranking.Team, f.CurrentWeek())
	require.NoError(t, err)
	assert.Equal(t, []ranking.Entry{
		{Name: "Alpha", Score: 28, Rank: 1},
		{Name: "Beta", Score: 20, Rank: 2},
	}, teams.Entries())
}

func TestGraphShapes(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(openSeeded(t, allProcedures...), nil)
	f := frameAt(t, "2025-03-15")

	week, err := r.Graph(ctx, ModeWeek, "u1", f)
	require.NoError(t, err)
	require.Len(t, week, 7)
	assert.Equal(t, "2025-03-09", week[0].Date)
	assert.Equal(t, Bucket{Date: "2025-03-14", Tasks: 10}, week[5])
	assert.Equal(t, Bucket{Date: "2025-03-15", Tasks: 15}, week[6])

	month, err := r.Graph(ctx, Mode30Days, "u1", f)
	require.NoError(t, err)
	require.Len(t, month, 15)
	assert.Equal(t, "2025-02-15", month[0].Date)
	assert.Equal(t, Bucket{Date: "2025-03-15", Tasks: 25}, month[14])
	assert.Equal(t, Bucket{Date: "2025-03-03", Tasks: 6}, month[8])
	var total int64
	for _, b := range month {
		total += b.Tasks
	}
	assert.Equal(t, int64(31), total)

	all, err := r.Graph(ctx, ModeAllTime, "u1", f)
	require.NoError(t, err)
	assert.Equal(t, []Bucket{{Month: "2025-02", Tasks: 4}, {Month: "2025-03", Tasks: 31}}, all)

	none, err := r.Graph(ctx, ModeAllTime, "nobody", f)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestAllTimeGraphFillsQuietMonths(t *testing.T) {
	gw := datastoretest.New().
		Log("u1", "2024-11-20", 3).
		Log("u1", "2025-02-01", 2)
	r := NewResolver(gw, nil)

	got, err := r.Graph(context.Background(), ModeAllTime, "u1", frameAt(t, "2025-03-15"))
	require.NoError(t, err)
	assert.Equal(t, []Bucket{
		{Month: "2024-11", Tasks: 3},
		{Month: "2024-12", Tasks: 0},
		{Month: "2025-01", Tasks: 0},
		{Month: "2025-02", Tasks: 2},
		{Month: "2025-03", Tasks: 0},
	}, got)
}

func TestPreferredRowsAreTrusted(t *testing.T) {
	gw := datastoretest.New().
		Serve(datastore.ProcIndividualLeaderboard,
			datastore.Row{"username": "Zed", "user_score": int64(9), "rnk": int64(1)},
			datastore.Row{"username": "Amy", "user_score": int64(9), "rnk": int64(2)},
		).
		Log("u1", "2025-03-15", 100)
	r := NewResolver(gw, nil)

	board, err := r.Leaderboard(context.Background(), ranking.Individual, frameAt(t, "2025-03-15").Today())
	require.NoError(t, err)
	assert.Equal(t, []ranking.Entry{
		{Name: "Zed", Score: 9, Rank: 1},
		{Name: "Amy", Score: 9, Rank: 2},
	}, board.Entries())
	assert.Empty(t, gw.RawCalls())
}

func TestFallbackSkipsUngroupedSamples(t *testing.T) {
	gw := datastoretest.New().
		AddMember("u1", datastoretest.Member{Name: "Ann", TeamID: "t1", TeamName: "Alpha"}).
		AddMember("u2", datastoretest.Member{Name: "Bob"}).
		Log("u1", "2025-03-15", 3).
		Log("u2", "2025-03-15", 8).
		Log("ghost", "2025-03-15", 50)
	r := NewResolver(gw, nil)
	w := frameAt(t, "2025-03-15").Today()

	users, err := r.Leaderboard(context.Background(), ranking.Individual, w)
	require.NoError(t, err)
	assert.Equal(t, []ranking.Entry{{Name: "Bob", Score: 8, Rank: 1}, {Name: "Ann", Score: 3, Rank: 2}}, users.Entries())

	teams, err := r.Leaderboard(context.Background(), ranking.Team, w)
	require.NoError(t, err)
	assert.Equal(t, []ranking.Entry{{Name: "Alpha", Score: 3, Rank: 1}}, teams.Entries())

	empty, err := r.Leaderboard(context.Background(), ranking.Team, frameAt(t, "2025-01-02").Today())
	require.NoError(t, err)
	assert.NotNil(t, empty.Entries())
	assert.Zero(t, empty.Len())
}

func TestRawFailureIsStoreError(t *testing.T) {
	gw := datastoretest.New().AddMember("u1", datastoretest.Member{Name: "Ann", TeamID: "t1", TeamName: "Alpha"})
	gw.RawErr = errors.New("connection reset")
	r := NewResolver(gw, nil)
	ctx := context.Background()
	f := frameAt(t, "2025-03-15")

	_, err := r.PersonalCounts(ctx, "u1", f)
	var storeErr *datastore.StoreError
	require.ErrorAs(t, err, &storeErr)

	_, err = r.Leaderboard(ctx, ranking.Team, f.Today())
	require.ErrorAs(t, err, &storeErr)

	_, err = r.Graph(ctx, Mode30Days, "u1", f)
	require.ErrorAs(t, err, &storeErr)

	_, _, err = r.TeamOf(ctx, "u1", f.Today())
	require.ErrorAs(t, err, &storeErr)
}

func TestTodayTotal(t *testing.T) {
	ctx := context.Background()
	f := frameAt(t, "2025-03-15")

	served := NewResolver(datastoretest.New().
		Serve(datastore.ProcTotalEmailsToday, datastore.Row{"total_emails": int64(42)}), nil)
	total, err := served.TodayTotal(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)

	gw := datastoretest.New().Log("u1", "2025-03-15", 5)
	_, err = NewResolver(gw, nil).TodayTotal(ctx, f)
	var storeErr *datastore.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, datastore.ErrUnavailable)
	assert.Empty(t, gw.RawCalls())

	db := openSeeded(t)
	total, err = NewResolver(db, nil).TodayTotal(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int64(43), total)
}

func TestParseBucketMode(t *testing.T) {
	for in, want := range map[string]BucketMode{
		"week":     ModeWeek,
		" 30DAYS ": Mode30Days,
		"all_time": ModeAllTime,
	} {
		got, err := ParseBucketMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseBucketMode("fortnight")
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = NewResolver(datastoretest.New(), nil).Graph(context.Background(), "fortnight", "u1", frameAt(t, "2025-03-15"))
	assert.ErrorIs(t, err, ErrUnknownMode)
}
