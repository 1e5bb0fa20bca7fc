package datastore

import (
	"fmt"
	"strings"
)

// procedure is a registered pre-aggregated query. params fixes the argument
// order for positional dialects; sqlite holds the embedded implementation
// used when no stored function exists.
type procedure struct {
	params []string
	sqlite string
}

// bind orders args by the declared parameter list. A missing argument means
// the call is misconfigured.
func (p procedure) bind(args Args) ([]any, error) {
	values := make([]any, len(p.params))
	for i, name := range p.params {
		v, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("missing argument %q", name)
		}
		values[i] = v
	}
	return values, nil
}

// postgresCall renders a stored function call in named notation.
func (p procedure) postgresCall(name Procedure) string {
	parts := make([]string, len(p.params))
	for i, param := range p.params {
		parts[i] = fmt.Sprintf("%s => $%d", param, i+1)
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", name, strings.Join(parts, ", "))
}

// Scores are ranked by ROW_NUMBER with the earliest (date, id) row as the
// tie-break, which is the order raw rows are returned in.
const workAmount = `COALESCE(w.emails_submitted, 0)`

const firstSeen = `MIN(printf('%s#%010d', w.date, w.id))`

var procedures = map[Procedure]procedure{
	ProcEmailsStats: {
		params: []string{
			"target_user_id", "today_date", "yesterday_date",
			"week_start", "last_week_start", "last_week_end",
			"month_start", "last_month_start", "last_month_end",
		},
		sqlite: `SELECT
			COALESCE(SUM(CASE WHEN d = :today_date THEN n END), 0) AS todays_tasks,
			COALESCE(SUM(CASE WHEN d = :yesterday_date THEN n END), 0) AS yesterdays_tasks,
			COALESCE(SUM(CASE WHEN d BETWEEN :week_start AND :today_date THEN n END), 0) AS weeks_tasks,
			COALESCE(SUM(CASE WHEN d BETWEEN :last_week_start AND :last_week_end THEN n END), 0) AS last_weeks_tasks,
			COALESCE(SUM(CASE WHEN d BETWEEN :month_start AND :today_date THEN n END), 0) AS months_tasks,
			COALESCE(SUM(CASE WHEN d BETWEEN :last_month_start AND :last_month_end THEN n END), 0) AS last_months_tasks,
			COALESCE(SUM(CASE WHEN d <= :today_date THEN n END), 0) AS all_time_tasks
		FROM (
			SELECT w.date AS d, ` + workAmount + ` AS n
			FROM work_logs w WHERE w.work_done_by = :target_user_id
		)`,
	},

	ProcIndividualLeaderboard: {
		params: []string{"start_date", "end_date"},
		sqlite: `SELECT u.name AS username,
			SUM(` + workAmount + `) AS user_score,
			ROW_NUMBER() OVER (ORDER BY SUM(` + workAmount + `) DESC, ` + firstSeen + `) AS rnk
		FROM work_logs w
		JOIN users u ON u.id = w.work_done_by
		WHERE w.date BETWEEN :start_date AND :end_date AND COALESCE(u.name, '') <> ''
		GROUP BY u.id, u.name
		ORDER BY rnk`,
	},

	ProcTeamLeaderboard: {
		params: []string{"start_date", "end_date"},
		sqlite: `SELECT t.name AS team_name,
			SUM(` + workAmount + `) AS team_score,
			ROW_NUMBER() OVER (ORDER BY SUM(` + workAmount + `) DESC, ` + firstSeen + `) AS rnk
		FROM work_logs w
		JOIN users u ON u.id = w.work_done_by
		JOIN teams t ON t.id = u.team_id
		WHERE w.date BETWEEN :start_date AND :end_date
		GROUP BY t.id, t.name
		ORDER BY rnk`,
	},

	ProcTeamPositionForUser: {
		params: []string{"target_user_id", "start_date", "end_date"},
		sqlite: `WITH board AS (
			SELECT t.id AS team_id, t.name AS team_name,
				SUM(` + workAmount + `) AS team_score,
				ROW_NUMBER() OVER (ORDER BY SUM(` + workAmount + `) DESC, ` + firstSeen + `) AS rnk
			FROM work_logs w
			JOIN users u ON u.id = w.work_done_by
			JOIN teams t ON t.id = u.team_id
			WHERE w.date BETWEEN :start_date AND :end_date
			GROUP BY t.id, t.name
		)
		SELECT b.rnk AS rank, b.team_name, b.team_score,
			(SELECT COUNT(*) FROM board) AS total_teams
		FROM board b
		JOIN users u ON u.team_id = b.team_id
		WHERE u.id = :target_user_id`,
	},

	ProcTotalEmailsToday: {
		params: []string{"today_date"},
		sqlite: `SELECT COALESCE(SUM(` + workAmount + `), 0) AS total_emails
		FROM work_logs w WHERE w.date = :today_date`,
	},

	ProcUserGraphWeek: {
		params: []string{"target_user_id", "start_date"},
		sqlite: `WITH RECURSIVE days(n, d) AS (
			SELECT 0, :start_date
			UNION ALL
			SELECT n + 1, date(d, '+1 day') FROM days WHERE n < 6
		)
		SELECT days.d AS date, COALESCE(SUM(w.emails_submitted), 0) AS tasks
		FROM days
		LEFT JOIN work_logs w ON w.date = days.d AND w.work_done_by = :target_user_id
		GROUP BY days.n, days.d
		ORDER BY days.n`,
	},

	ProcUserGraph30Days: {
		params: []string{"target_user_id", "start_date"},
		sqlite: `WITH RECURSIVE buckets(n, s, e) AS (
			SELECT 0, :start_date, date(:start_date, '+1 day')
			UNION ALL
			SELECT n + 1, date(s, '+2 days'), date(e, '+2 days') FROM buckets WHERE n < 14
		)
		SELECT b.e AS date, COALESCE(SUM(w.emails_submitted), 0) AS tasks
		FROM buckets b
		LEFT JOIN work_logs w ON w.work_done_by = :target_user_id AND w.date BETWEEN b.s AND b.e
		GROUP BY b.n, b.e
		ORDER BY b.n`,
	},

	ProcUserGraphAllTime: {
		params: []string{"target_user_id", "today_date"},
		sqlite: `WITH RECURSIVE origin(m) AS (
			SELECT substr(MIN(date), 1, 7) || '-01' FROM work_logs
			WHERE work_done_by = :target_user_id AND date <= :today_date
		),
		months(m) AS (
			SELECT m FROM origin WHERE m IS NOT NULL
			UNION ALL
			SELECT date(m, '+1 month') FROM months WHERE date(m, '+1 month') <= :today_date
		)
		SELECT substr(months.m, 1, 7) AS month, COALESCE(SUM(w.emails_submitted), 0) AS tasks
		FROM months
		LEFT JOIN work_logs w ON w.work_done_by = :target_user_id
			AND substr(w.date, 1, 7) = substr(months.m, 1, 7) AND w.date <= :today_date
		GROUP BY months.m
		ORDER BY months.m`,
	},
}
