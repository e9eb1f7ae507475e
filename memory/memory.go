// Package memory persists conversation history between the user and
// the model. Training correctness does not depend on it: callers fall
// back to a volatile store when the database cannot be opened.
package memory

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Interaction is one user/assistant exchange.
type Interaction struct {
	Timestamp time.Time
	UserInput string
	Response  string
}

// Store abstracts interaction history persistence.
type Store interface {
	AddInteraction(userInput, response string) error
	Recent(n int) ([]Interaction, error)
	Close() error
}

// SQLStore persists interactions in a SQLite database.
type SQLStore struct {
	conn *sql.DB
}

// Open creates (or opens) the interaction database at path and runs
// pending schema migrations. Use ":memory:" for tests.
func Open(path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create memory directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping memory database: %w", err)
	}

	s := &SQLStore{conn: conn}
	if err := s.migrateUp(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrateUp() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// AddInteraction appends one exchange to the history.
func (s *SQLStore) AddInteraction(userInput, response string) error {
	_, err := s.conn.Exec(
		`INSERT INTO interactions (created_at, user_input, response) VALUES (?, ?, ?)`,
		time.Now().UTC(), userInput, response,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// Recent returns the n most recent interactions in chronological order.
func (s *SQLStore) Recent(n int) ([]Interaction, error) {
	rows, err := s.conn.Query(
		`SELECT created_at, user_input, response
		   FROM (SELECT id, created_at, user_input, response
		           FROM interactions ORDER BY id DESC LIMIT ?)
		  ORDER BY id ASC`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var it Interaction
		if err := rows.Scan(&it.Timestamp, &it.UserInput, &it.Response); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}
	return out, nil
}

// Close releases the database connection.
func (s *SQLStore) Close() error {
	return s.conn.Close()
}

// VolatileStore keeps interactions in memory only. It is the fallback
// when the durable store cannot be opened.
type VolatileStore struct {
	mu           sync.Mutex
	interactions []Interaction
}

// NewVolatile creates an empty in-memory store.
func NewVolatile() *VolatileStore {
	return &VolatileStore{}
}

// AddInteraction appends one exchange to the in-memory history.
func (v *VolatileStore) AddInteraction(userInput, response string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.interactions = append(v.interactions, Interaction{
		Timestamp: time.Now().UTC(),
		UserInput: userInput,
		Response:  response,
	})
	return nil
}

// Recent returns up to the n most recent interactions, oldest first.
func (v *VolatileStore) Recent(n int) ([]Interaction, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > len(v.interactions) {
		n = len(v.interactions)
	}
	out := make([]Interaction, n)
	copy(out, v.interactions[len(v.interactions)-n:])
	return out, nil
}

// Close is a no-op for the volatile store.
func (v *VolatileStore) Close() error {
	return nil
}
