package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect is the database/sql driver name.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "pgx"
)

// ErrProcedureDisabled is the cause reported for operator-disabled procedures.
var ErrProcedureDisabled = errors.New("procedure disabled by configuration")

// Config selects and tunes the backing database.
type Config struct {
	Driver  Dialect
	DSN     string
	DataDir string
	// Disabled procedures always report Unavailable, forcing the fallback.
	Disabled     []string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	Logger       *slog.Logger
}

// DB is the SQL-backed Gateway and Directory.
type DB struct {
	*sql.DB
	dialect  Dialect
	pool     *ConnectionPool
	prepared map[Procedure]*sql.Stmt
	disabled map[Procedure]bool
	logger   *slog.Logger
	mutex    sync.RWMutex
}

// ConnectionPool records the pool limits applied to the handle.
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool applies pool limits to db.
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Open connects to the configured database. SQLite databases are migrated
// and get the embedded procedures; Postgres is expected to already provide
// the tables and stored functions.
func Open(cfg Config) (*DB, error) {
	if cfg.Driver == "" {
		cfg.Driver = DialectSQLite
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.MaxLifetime == 0 {
		cfg.MaxLifetime = 5 * time.Minute
	}

	dsn, err := resolveDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(cfg.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory SQLite database lives and dies with its connection.
	if cfg.Driver == DialectSQLite && strings.Contains(dsn, ":memory:") {
		cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.MaxLifetime = 1, 1, 0
	}
	pool := NewConnectionPool(db, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &DB{
		DB:       db,
		dialect:  cfg.Driver,
		pool:     pool,
		prepared: make(map[Procedure]*sql.Stmt),
		disabled: make(map[Procedure]bool),
		logger:   cfg.Logger,
	}
	for _, name := range cfg.Disabled {
		database.disabled[Procedure(strings.TrimSpace(name))] = true
	}

	switch cfg.Driver {
	case DialectSQLite:
		if err := database.migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		database.initPreparedStatements()
	case DialectPostgres:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	cfg.Logger.Info("Database initialized",
		"driver", cfg.Driver,
		"procedures", len(database.prepared),
		"disabled_procedures", len(database.disabled),
		"max_open_conns", pool.maxOpenConns)

	return database, nil
}

func resolveDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.Driver != DialectSQLite {
		return "", fmt.Errorf("database dsn is required for driver %q", cfg.Driver)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(cfg.DataDir, "workpulse.db")
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath), nil
}

// migrate creates the work-tracking tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			lead_id TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT,
			email TEXT,
			role TEXT NOT NULL DEFAULT 'member',
			team_id TEXT REFERENCES teams(id)
		)`,

		// date is TEXT so the driver hands back the calendar date untouched
		`CREATE TABLE IF NOT EXISTS work_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			emails_submitted INTEGER NOT NULL DEFAULT 0 CHECK (emails_submitted >= 0),
			work_done_by TEXT NOT NULL,
			client_id TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_work_logs_user_date ON work_logs(work_done_by, date)`,
		`CREATE INDEX IF NOT EXISTS idx_work_logs_date ON work_logs(date)`,
		`CREATE INDEX IF NOT EXISTS idx_users_team ON users(team_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements registers the embedded procedures. A statement that
// fails to prepare is left out of the registry, so calls to it report
// Unavailable instead of failing startup.
func (db *DB) initPreparedStatements() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, proc := range procedures {
		stmt, err := db.Prepare(proc.sqlite)
		if err != nil {
			db.logger.Warn("Procedure not registered", "procedure", name, "error", err)
			continue
		}
		db.prepared[name] = stmt

		db.logger.Debug("Prepared statement initialized", "procedure", name)
	}
}

// GetPreparedStatement retrieves a registered procedure statement
func (db *DB) GetPreparedStatement(name Procedure) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// PreAggregated runs a named procedure. Every failure, including a missing
// or disabled procedure, is reported as Unavailable.
func (db *DB) PreAggregated(ctx context.Context, name Procedure, args Args) Outcome {
	if db.disabled[name] {
		return Unavailable(name, ErrProcedureDisabled)
	}

	proc, ok := procedures[name]
	if !ok {
		return Unavailable(name, errors.New("procedure not registered"))
	}

	values, err := proc.bind(args)
	if err != nil {
		return Unavailable(name, err)
	}

	var rows *sql.Rows
	switch db.dialect {
	case DialectPostgres:
		rows, err = db.QueryContext(ctx, proc.postgresCall(name), values...)
	default:
		var stmt *sql.Stmt
		stmt, err = db.GetPreparedStatement(name)
		if err != nil {
			return Unavailable(name, err)
		}
		named := make([]any, len(values))
		for i, v := range values {
			named[i] = sql.Named(proc.params[i], v)
		}
		rows, err = stmt.QueryContext(ctx, named...)
	}
	if err != nil {
		return Unavailable(name, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return Unavailable(name, err)
	}
	return Available(result)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// RawRows returns per-day work rows ordered by date then insertion.
func (db *DB) RawRows(ctx context.Context, f Filter) ([]Sample, error) {
	query, args := db.rawQuery(f)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: "raw rows", Err: err}
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.EntityID, &s.Date, &s.Count, &s.GroupKey, &s.GroupName); err != nil {
			return nil, &StoreError{Op: "raw rows", Err: err}
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "raw rows", Err: err}
	}
	return samples, nil
}

func (db *DB) rawQuery(f Filter) (string, []any) {
	dateExpr := "w.date"
	if db.dialect == DialectPostgres {
		dateExpr = "to_char(w.date, 'YYYY-MM-DD')"
	}

	groupKey, groupName := "''", "''"
	switch f.Group {
	case GroupUser:
		groupKey = "CASE WHEN COALESCE(u.name, '') = '' THEN '' ELSE CAST(u.id AS TEXT) END"
		groupName = "COALESCE(u.name, '')"
	case GroupTeam:
		groupKey = "COALESCE(CAST(t.id AS TEXT), '')"
		groupName = "COALESCE(t.name, '')"
	}

	var (
		where []string
		args  []any
	)
	placeholder := func(v any) string {
		args = append(args, v)
		if db.dialect == DialectPostgres {
			return fmt.Sprintf("$%d", len(args))
		}
		return "?"
	}
	if f.EntityID != "" {
		where = append(where, "w.work_done_by = "+placeholder(f.EntityID))
	}
	if f.From != "" {
		where = append(where, "w.date >= "+placeholder(f.From))
	}
	if f.To != "" {
		where = append(where, "w.date <= "+placeholder(f.To))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT CAST(w.work_done_by AS TEXT), %s, COALESCE(w.emails_submitted, 0), %s, %s", dateExpr, groupKey, groupName)
	b.WriteString(" FROM work_logs w")
	b.WriteString(" LEFT JOIN users u ON u.id = w.work_done_by")
	b.WriteString(" LEFT JOIN teams t ON t.id = u.team_id")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY w.date, w.id")
	return b.String(), args
}

// Profile looks up a user and their team name.
func (db *DB) Profile(ctx context.Context, userID string) (Profile, error) {
	query := `SELECT CAST(u.id AS TEXT), COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.role, ''),
			COALESCE(CAST(t.id AS TEXT), ''), COALESCE(t.name, '')
		FROM users u LEFT JOIN teams t ON t.id = u.team_id WHERE u.id = ?`

	var p Profile
	err := db.QueryRowContext(ctx, db.rebind(query), userID).Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.TeamID, &p.Team)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, &StoreError{Op: "profile", Err: err}
	}
	return p, nil
}

// SetRole updates one user's role. An unknown user is ErrNotFound.
func (db *DB) SetRole(ctx context.Context, userID, role string) error {
	res, err := db.ExecContext(ctx, db.rebind(`UPDATE users SET role = ? WHERE id = ?`), role, userID)
	if err != nil {
		return &StoreError{Op: "set role", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "set role", Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			db.logger.Warn("Failed to close prepared statement", "procedure", name, "error", err)
		}
	}
	db.prepared = make(map[Procedure]*sql.Stmt)

	return db.DB.Close()
}
