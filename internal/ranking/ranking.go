// Package ranking orders (name, score) pairs into a leaderboard and locates a
// participant inside it.
package ranking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownScope is returned for an unrecognised scope selector.
var ErrUnknownScope = errors.New("unknown leaderboard scope")

// Scope tags whether a leaderboard ranks individuals or teams. Both reduce to
// the same (name, score) pairs once aggregated.
type Scope int

const (
	Individual Scope = iota
	Team
)

// ParseScope reads the externally visible scope selector.
func ParseScope(s string) (Scope, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "individual":
		return Individual, nil
	case "team":
		return Team, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

func (s Scope) String() string {
	if s == Team {
		return "team"
	}
	return "individual"
}

// Score is one unranked participant.
type Score struct {
	Name  string
	Score int64
}

// Entry is one ranked row of a leaderboard.
type Entry struct {
	Name  string `json:"name"`
	Score int64  `json:"score"`
	Rank  int    `json:"rank"`
}

// Position is a participant's place within a board.
type Position struct {
	Rank              int    `json:"rank"`
	Name              string `json:"name"`
	Score             int64  `json:"score"`
	TotalParticipants int    `json:"total_participants"`
}

// Board is an ordered leaderboard.
type Board struct {
	entries []Entry
}

// Rank sorts descending by score. Ties keep their input order and ranks are
// assigned by position, so equal scores never share a rank.
func Rank(scores []Score) Board {
	sorted := make([]Score, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	entries := make([]Entry, len(sorted))
	for i, s := range sorted {
		entries[i] = Entry{Name: s.Name, Score: s.Score, Rank: i + 1}
	}
	return Board{entries: entries}
}

// Ranked wraps entries whose order and ranks were already computed upstream.
func Ranked(entries []Entry) Board {
	if entries == nil {
		entries = []Entry{}
	}
	return Board{entries: entries}
}

// Entries returns the ordered rows. The slice is never nil.
func (b Board) Entries() []Entry {
	if b.entries == nil {
		return []Entry{}
	}
	return b.entries
}

func (b Board) Len() int { return len(b.entries) }

// Locate finds the first entry with an exact name match.
func (b Board) Locate(name string) (Position, bool) {
	for _, e := range b.entries {
		if e.Name == name {
			return Position{
				Rank:              e.Rank,
				Name:              e.Name,
				Score:             e.Score,
				TotalParticipants: b.Len(),
			}, true
		}
	}
	return Position{}, false
}
