// Package datastore is the boundary to the persistent store. It exposes two
// query shapes: named pre-aggregated procedures, whose absence or failure is
// an expected Unavailable outcome, and raw per-day work rows.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Procedure names a pre-aggregated query known to the store.
type Procedure string

const (
	ProcEmailsStats           Procedure = "get_emails_stats"
	ProcIndividualLeaderboard Procedure = "get_individual_leaderboard"
	ProcTeamLeaderboard       Procedure = "get_team_leaderboard"
	ProcTeamPositionForUser   Procedure = "get_team_position_for_user"
	ProcTotalEmailsToday      Procedure = "get_total_emails_today"
	ProcUserGraphWeek         Procedure = "get_user_graph_week"
	ProcUserGraph30Days       Procedure = "get_user_graph_30days"
	ProcUserGraphAllTime      Procedure = "get_user_graph_all_time"
)

var (
	// ErrUnavailable marks a preferred-path failure. Callers recover from it.
	ErrUnavailable = errors.New("pre-aggregated procedure unavailable")
	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("not found")
)

// UnavailableError carries the procedure and the reason it could not run.
type UnavailableError struct {
	Procedure Procedure
	Cause     error
}

func (e *UnavailableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("procedure %s unavailable", e.Procedure)
	}
	return fmt.Sprintf("procedure %s unavailable: %v", e.Procedure, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// StoreError is a failure of the raw-row path. It is surfaced to callers.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Args are the named arguments of a procedure call.
type Args map[string]any

// Row is one result row keyed by column name.
type Row map[string]any

// Int reads a numeric column. Drivers disagree on the Go type of integer
// aggregates (int64, float64, numeric text) so every form is accepted.
func (r Row) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseFloat(string(v), 64)
		return int64(n)
	case string:
		n, _ := strconv.ParseFloat(v, 64)
		return int64(n)
	}
	return 0
}

// String reads a text column. Dates come back as YYYY-MM-DD.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format("2006-01-02")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Outcome is the result of a preferred-path call: rows, or Unavailable.
type Outcome struct {
	Rows        []Row
	Unavailable error
}

// OK reports whether the rows can be trusted.
func (o Outcome) OK() bool { return o.Unavailable == nil }

// Available wraps a successful call.
func Available(rows []Row) Outcome {
	if rows == nil {
		rows = []Row{}
	}
	return Outcome{Rows: rows}
}

// Unavailable wraps a failed or missing procedure.
func Unavailable(proc Procedure, cause error) Outcome {
	return Outcome{Unavailable: &UnavailableError{Procedure: proc, Cause: cause}}
}

// Group selects the grouping key joined onto raw rows.
type Group int

const (
	GroupNone Group = iota
	GroupUser
	GroupTeam
)

// Filter narrows raw rows. From and To are inclusive YYYY-MM-DD dates; an
// empty bound is open. An empty EntityID matches every entity.
type Filter struct {
	EntityID string
	From     string
	To       string
	Group    Group
}

// Sample is one per-day work row. GroupKey is empty when the requested join
// found nothing, e.g. a user without a team.
type Sample struct {
	EntityID  string
	Date      string
	Count     int64
	GroupKey  string
	GroupName string
}

// Gateway is the store capability the aggregation layer consumes. The
// Directory lookup backs fallbacks that need membership rather than work rows.
type Gateway interface {
	PreAggregated(ctx context.Context, proc Procedure, args Args) Outcome
	RawRows(ctx context.Context, f Filter) ([]Sample, error)
	Directory
}

// Profile describes a user for the dashboard header.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"username"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
	TeamID string `json:"-"`
	Team   string `json:"team,omitempty"`
}

// Directory resolves user profiles. An unknown user is ErrNotFound.
type Directory interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// RoleWriter changes a user's self-declared role.
type RoleWriter interface {
	SetRole(ctx context.Context, userID, role string) error
}
