// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides turn/profile persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single connection: serializes writers and keeps in-memory databases
	// from splitting across pooled connections
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS ai_turns (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			context_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ai_turns_user_created
			ON ai_turns(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			profile_photo TEXT
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// AppendTurn persists a single turn. The store assigns a UUID and the
// creation timestamp; the caller's TurnContext is stored verbatim as JSON.
func (s *SQLiteStore) AppendTurn(ctx context.Context, userID, prompt, response string, tc TurnContext) (*Turn, error) {
	turn := &Turn{
		ID:        uuid.New().String(),
		UserID:    userID,
		Prompt:    prompt,
		Response:  response,
		Context:   tc,
		CreatedAt: time.Now().UTC(),
	}

	contextJSON, err := json.Marshal(tc)
	if err != nil {
		return nil, fmt.Errorf("encoding turn context: %w", err)
	}

	query := `
		INSERT INTO ai_turns (id, user_id, prompt, response, context_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		turn.ID,
		turn.UserID,
		turn.Prompt,
		turn.Response,
		string(contextJSON),
		turn.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting turn: %w", err)
	}

	s.logger.Debug("appended turn", "id", turn.ID, "user_id", userID, "fallback", tc.Fallback)
	return turn, nil
}

// RecentTurns returns up to limit turns for the user, newest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, userID string, limit int) ([]*Turn, error) {
	return s.queryTurns(ctx, userID, limit, 0)
}

// PageTurns returns a newest-first page of turns for history display.
func (s *SQLiteStore) PageTurns(ctx context.Context, userID string, limit, offset int) ([]*Turn, error) {
	return s.queryTurns(ctx, userID, limit, offset)
}

// queryTurns runs the shared newest-first turn query.
// Ties on created_at break by rowid so insertion order always wins.
func (s *SQLiteStore) queryTurns(ctx context.Context, userID string, limit, offset int) ([]*Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, user_id, prompt, response, context_json, created_at
		FROM ai_turns
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	turns := make([]*Turn, 0, limit)
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turn rows: %w", err)
	}

	return turns, nil
}

func scanTurn(rows *sql.Rows) (*Turn, error) {
	var turn Turn
	var contextJSON, createdAtStr string

	if err := rows.Scan(&turn.ID, &turn.UserID, &turn.Prompt, &turn.Response, &contextJSON, &createdAtStr); err != nil {
		return nil, fmt.Errorf("scanning turn row: %w", err)
	}

	if err := json.Unmarshal([]byte(contextJSON), &turn.Context); err != nil {
		return nil, fmt.Errorf("decoding turn context: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	turn.CreatedAt = createdAt

	return &turn, nil
}

// ClearTurns removes all turns for the user. Idempotent.
func (s *SQLiteStore) ClearTurns(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ai_turns WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clearing turns: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	s.logger.Debug("cleared turns", "user_id", userID, "removed", removed)
	return removed, nil
}

// GetProfile returns display fields for a user.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	query := `SELECT id, first_name, last_name, profile_photo FROM users WHERE id = ?`

	var profile UserProfile
	var photo sql.NullString

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.FirstName,
		&profile.LastName,
		&photo,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	if photo.Valid {
		profile.ProfilePhoto = &photo.String
	}

	return &profile, nil
}

// SaveProfile creates or replaces a user profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile *UserProfile) error {
	query := `
		INSERT OR REPLACE INTO users (id, first_name, last_name, profile_photo)
		VALUES (?, ?, ?, ?)
	`

	var photo any
	if profile.ProfilePhoto != nil {
		photo = *profile.ProfilePhoto
	}

	_, err := s.db.ExecContext(ctx, query, profile.ID, profile.FirstName, profile.LastName, photo)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	s.logger.Debug("saved profile", "user_id", profile.ID)
	return nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
