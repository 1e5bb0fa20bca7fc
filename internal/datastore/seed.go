package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// seedNamespace derives stable demo IDs, so tokens minted for a demo user
// survive restarts.
var seedNamespace = uuid.MustParse("6f1c1f9e-3f0c-4b7e-9a55-0d7f1c2b9e41")

// SeedUserID returns the stable ID of a demo user.
func SeedUserID(name string) string {
	return uuid.NewSHA1(seedNamespace, []byte("user:"+name)).String()
}

func seedTeamID(name string) string {
	return uuid.NewSHA1(seedNamespace, []byte("team:"+name)).String()
}

// WorkLog is one day of submitted work.
type WorkLog struct {
	Date   string
	Count  int64
	UserID string
}

// AddTeam inserts or renames a team.
func (db *DB) AddTeam(ctx context.Context, id, name string) error {
	_, err := db.ExecContext(ctx, db.rebind(`INSERT INTO teams (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`), id, name)
	if err != nil {
		return fmt.Errorf("failed to add team: %w", err)
	}
	return nil
}

// AddUser inserts or updates a user. An empty teamID leaves the user
// teamless and an empty name is stored as NULL.
func (db *DB) AddUser(ctx context.Context, p Profile, teamID string) error {
	var name, team any
	if p.Name != "" {
		name = p.Name
	}
	if teamID != "" {
		team = teamID
	}
	_, err := db.ExecContext(ctx, db.rebind(`INSERT INTO users (id, name, email, role, team_id) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email,
			role = excluded.role, team_id = excluded.team_id`),
		p.ID, name, p.Email, p.Role, team)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	return nil
}

// LogWork appends a work row.
func (db *DB) LogWork(ctx context.Context, w WorkLog) error {
	_, err := db.ExecContext(ctx, db.rebind(`INSERT INTO work_logs (date, emails_submitted, work_done_by) VALUES (?, ?, ?)`),
		w.Date, w.Count, w.UserID)
	if err != nil {
		return fmt.Errorf("failed to log work: %w", err)
	}
	return nil
}

// rebind turns ? placeholders into $n for Postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// Seed fills an empty database with two teams, a teamless user and sixty days
// of deterministic history ending on today. It is a no-op once users exist.
func (db *DB) Seed(ctx context.Context, today time.Time) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("failed to inspect users: %w", err)
	}
	if count > 0 {
		return nil
	}

	teams := []string{"Inbox Zero", "Reply Guys"}
	for _, name := range teams {
		if err := db.AddTeam(ctx, seedTeamID(name), name); err != nil {
			return err
		}
	}

	members := []struct {
		name, role, team string
		pace             int64
	}{
		{"Ada", "lead", "Inbox Zero", 42},
		{"Grace", "member", "Inbox Zero", 35},
		{"Linus", "member", "Reply Guys", 38},
		{"Margaret", "lead", "Reply Guys", 29},
		{"Ken", "member", "", 20},
	}

	for i, m := range members {
		teamID := ""
		if m.team != "" {
			teamID = seedTeamID(m.team)
		}
		p := Profile{ID: SeedUserID(m.name), Name: m.name, Email: fmt.Sprintf("%s@example.com", m.name), Role: m.role}
		if err := db.AddUser(ctx, p, teamID); err != nil {
			return err
		}

		for day := 0; day < 60; day++ {
			d := time.Date(today.Year(), today.Month(), today.Day()-day, 0, 0, 0, 0, today.Location())
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				continue
			}
			n := m.pace + int64((day*7+i*13)%17) - 8
			if err := db.LogWork(ctx, WorkLog{Date: d.Format("2006-01-02"), Count: n, UserID: p.ID}); err != nil {
				return err
			}
		}
	}

	db.logger.Info("Seeded demo data", "users", len(members), "teams", len(teams))
	return nil
}
