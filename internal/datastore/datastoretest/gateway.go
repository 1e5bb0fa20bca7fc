// Package datastoretest provides an in-memory Gateway for tests.
package datastoretest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/workpulse/internal/datastore"
)

// Member describes a user known to the fake.
type Member struct {
	Name     string
	TeamID   string
	TeamName string
}

// Call records one PreAggregated invocation.
type Call struct {
	Procedure datastore.Procedure
	Args      datastore.Args
}

// Gateway serves canned procedure rows and filters in-memory samples. A
// procedure without canned rows is Unavailable.
type Gateway struct {
	mu         sync.Mutex
	procedures map[datastore.Procedure][]datastore.Row
	members    map[string]Member
	samples    []datastore.Sample

	// RawErr, when set, fails every RawRows call.
	RawErr error

	calls    []Call
	rawCalls []datastore.Filter
}

// New returns an empty fake.
func New() *Gateway {
	return &Gateway{
		procedures: make(map[datastore.Procedure][]datastore.Row),
		members:    make(map[string]Member),
	}
}

// Serve makes proc available with the given rows.
func (g *Gateway) Serve(proc datastore.Procedure, rows ...datastore.Row) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rows == nil {
		rows = []datastore.Row{}
	}
	g.procedures[proc] = rows
	return g
}

// AddMember registers a user for grouped raw rows.
func (g *Gateway) AddMember(id string, m Member) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[id] = m
	return g
}

// Log appends a work sample in insertion order.
func (g *Gateway) Log(entityID, date string, count int64) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.samples = append(g.samples, datastore.Sample{EntityID: entityID, Date: date, Count: count})
	return g
}

func (g *Gateway) PreAggregated(_ context.Context, proc datastore.Procedure, args datastore.Args) datastore.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Procedure: proc, Args: args})
	rows, ok := g.procedures[proc]
	if !ok {
		return datastore.Unavailable(proc, errors.New("not served by fake"))
	}
	return datastore.Available(rows)
}

func (g *Gateway) RawRows(_ context.Context, f datastore.Filter) ([]datastore.Sample, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rawCalls = append(g.rawCalls, f)
	if g.RawErr != nil {
		return nil, &datastore.StoreError{Op: "raw rows", Err: g.RawErr}
	}

	out := []datastore.Sample{}
	for _, s := range g.samples {
		if f.EntityID != "" && s.EntityID != f.EntityID {
			continue
		}
		if f.From != "" && s.Date < f.From {
			continue
		}
		if f.To != "" && s.Date > f.To {
			continue
		}
		m, known := g.members[s.EntityID]
		switch f.Group {
		case datastore.GroupUser:
			if known && m.Name != "" {
				s.GroupKey, s.GroupName = s.EntityID, m.Name
			}
		case datastore.GroupTeam:
			if known && m.TeamID != "" {
				s.GroupKey, s.GroupName = m.TeamID, m.TeamName
			}
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Profile answers from registered members.
func (g *Gateway) Profile(_ context.Context, userID string) (datastore.Profile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[userID]
	if !ok {
		return datastore.Profile{}, datastore.ErrNotFound
	}
	return datastore.Profile{ID: userID, Name: m.Name, TeamID: m.TeamID, Team: m.TeamName}, nil
}

// Calls returns the procedures invoked so far.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// RawCalls returns the raw-row filters requested so far.
func (g *Gateway) RawCalls() []datastore.Filter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]datastore.Filter(nil), g.rawCalls...)
}
