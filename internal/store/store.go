// ABOUTME: Store interface and data types for AI conversation persistence
// ABOUTME: Defines Turn, TurnContext, UserProfile and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Turn is one prompt/response exchange, persisted as a single record.
// Turns are immutable once written; the only delete path is ClearTurns.
type Turn struct {
	ID        string
	UserID    string
	Prompt    string
	Response  string
	Context   TurnContext
	CreatedAt time.Time
}

// TurnContext is the structured metadata stored alongside each turn.
type TurnContext struct {
	TokensUsed    int       `json:"tokens_used"`
	ContextLength int       `json:"context_length"`
	Fallback      bool      `json:"fallback"`
	Streamed      bool      `json:"streamed,omitempty"`
	Interrupted   bool      `json:"interrupted,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// UserProfile carries the display fields attached to the human side of a
// rendered turn. The relay only ever reads profiles; ownership of the users
// table lives with the surrounding application.
type UserProfile struct {
	ID           string
	FirstName    string
	LastName     string
	ProfilePhoto *string
}

// Stats aggregates a user's conversation history for the dashboard.
type Stats struct {
	TotalTurns        int
	TodayTurns        int
	WeekTurns         int
	AvgPromptLength   int
	AvgResponseLength int
	FirstTurnAt       *time.Time
	LastTurnAt        *time.Time
}

// DayActivity is a per-day turn count. Days with no activity are omitted,
// not zero-filled; the display layer fills gaps if it wants them.
type DayActivity struct {
	Date  string // YYYY-MM-DD (UTC)
	Count int
}

// Store defines the persistence operations the relay and API need.
type Store interface {
	// AppendTurn persists a single turn as the atomic unit of write.
	// The store assigns the ID and CreatedAt.
	AppendTurn(ctx context.Context, userID, prompt, response string, tc TurnContext) (*Turn, error)

	// RecentTurns returns up to limit turns for the user, newest first.
	// An empty history yields an empty slice, not an error.
	RecentTurns(ctx context.Context, userID string, limit int) ([]*Turn, error)

	// PageTurns returns a newest-first page of turns for history display.
	PageTurns(ctx context.Context, userID string, limit, offset int) ([]*Turn, error)

	// ClearTurns removes all turns for the user and reports how many went.
	// Clearing an empty history succeeds with count 0.
	ClearTurns(ctx context.Context, userID string) (int64, error)

	// TurnStats returns aggregate statistics for the user's history.
	TurnStats(ctx context.Context, userID string) (*Stats, error)

	// DailyActivity returns per-day counts for the trailing windowDays.
	DailyActivity(ctx context.Context, userID string, windowDays int) ([]DayActivity, error)

	// GetProfile returns display fields for a user.
	// Returns ErrNotFound if the user is unknown.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)

	// SaveProfile creates or replaces a user profile. Used by the
	// surrounding application and by tests; the relay never calls it.
	SaveProfile(ctx context.Context, profile *UserProfile) error

	Close() error
}

// FullName joins the profile's name fields the way the chat UI displays them.
func (p *UserProfile) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
