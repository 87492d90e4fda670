package sources

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kayz/weave/internal/logger"
)

// Turn is one stored conversation exchange served by the turns source.
type Turn struct {
	ID             int64
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// TurnStore persists conversation turns in SQLite.
type TurnStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenTurnStore opens (or creates) the turn database at path.
func OpenTurnStore(path string) (*TurnStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &TurnStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return s, nil
}

func (s *TurnStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id  TEXT NOT NULL,
			role             TEXT NOT NULL,
			content          TEXT,
			created_at       TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id);
		CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`)
	return err
}

// AddTurn appends a turn to a conversation.
func (s *TurnStore) AddTurn(conversationID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO turns (conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, role, content, time.Now().Format(time.RFC3339Nano))
	return err
}

// Recent returns up to limit turns of a conversation in chronological
// order, newest-biased: when the conversation is longer than limit the
// oldest turns are the ones dropped.
func (s *TurnStore) Recent(conversationID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, content, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	var reversed []Turn
	for rows.Next() {
		var t Turn
		var content sql.NullString
		var createdAt string
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Content = content.String
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			t.CreatedAt = ts
		}
		reversed = append(reversed, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// reverse to chronological order
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	return reversed, nil
}

// Close closes the database connection.
func (s *TurnStore) Close() error {
	return s.db.Close()
}

// LoadTurns reads a conversation from a database file without keeping a
// store open; a missing file is an empty history, not an error.
func LoadTurns(dbPath, conversationID string, limit int) ([]Turn, error) {
	if _, err := os.Stat(dbPath); err != nil {
		logger.Warn("Turn database not found, skipping: %s", dbPath)
		return nil, nil
	}

	dsn := dbPath
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + filepath.ToSlash(dbPath) + "?mode=ro&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	s := &TurnStore{db: db}
	return s.Recent(conversationID, limit)
}

// TurnsHandler wires the store to the "turns" source. Args select the
// conversation and an optional limit:
//
//	{"source": "turns", "args": {"conversation": "c-1", "limit": 40}}
//
// A missing conversation arg falls back to the ref passed at open time.
func (s *TurnStore) TurnsHandler(defaults ConversationRef) OrderedHandler {
	return func(args, ctx any, order string) (any, error) {
		conv := defaults.ID
		limit := defaults.Limit
		if m, ok := args.(map[string]any); ok {
			if v, ok := m["conversation"].(string); ok && v != "" {
				conv = v
			}
			if n, ok := m["limit"].(float64); ok && n > 0 {
				limit = int(n)
			}
		}
		if conv == "" {
			return nil, fmt.Errorf("turns source needs a conversation id")
		}

		turns, err := s.Recent(conv, limit)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(turns))
		for _, t := range turns {
			out = append(out, map[string]any{
				"role":    t.Role,
				"content": t.Content,
				"at":      t.CreatedAt.Format(time.RFC3339),
			})
		}
		if order == "desc" {
			for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
				out[i], out[j] = out[j], out[i]
			}
		}
		return out, nil
	}
}
