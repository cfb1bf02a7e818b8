package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/engine"
)

// EventStore persists the engine's audit trail.
type EventStore interface {
	SaveEvent(ev engine.Event) error
	LoadEvents(limit int) ([]engine.Event, error)
	Close() error
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// PostgresEventStore implements EventStore with PostgreSQL persistence.
type PostgresEventStore struct {
	db *sql.DB
}

// NewPostgresEventStore connects, pings, and migrates the event table.
func NewPostgresEventStore(config *PostgresConfig) (*PostgresEventStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresEventStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresEventStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS market_events (
		id BIGSERIAL PRIMARY KEY,
		kind VARCHAR(64) NOT NULL,
		job_id BIGINT NOT NULL,
		carrier VARCHAR(128) NOT NULL,
		account VARCHAR(128) NOT NULL,
		detail TEXT NOT NULL,
		occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_market_events_job ON market_events(job_id);
	CREATE INDEX IF NOT EXISTS idx_market_events_kind ON market_events(kind);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveEvent appends one event to the audit table.
func (s *PostgresEventStore) SaveEvent(ev engine.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_events (kind, job_id, carrier, account, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(ev.Kind),
		int64(ev.JobID),
		ev.Carrier.String(),
		ev.Account.String(),
		ev.Detail,
		ev.At,
	)
	return err
}

// LoadEvents returns the most recent events, oldest first.
func (s *PostgresEventStore) LoadEvents(limit int) ([]engine.Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, job_id, carrier, account, detail, occurred_at FROM (
			SELECT id, kind, job_id, carrier, account, detail, occurred_at
			FROM market_events ORDER BY id DESC LIMIT $1
		) recent ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []engine.Event
	for rows.Next() {
		var (
			kind    string
			jobID   int64
			carrier string
			account string
			detail  string
			at      time.Time
		)
		if err := rows.Scan(&kind, &jobID, &carrier, &account, &detail, &at); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		events = append(events, engine.Event{
			Kind:    engine.EventKind(kind),
			JobID:   engine.JobID(jobID),
			Carrier: crypto.Account(carrier),
			Account: crypto.Account(account),
			Detail:  detail,
			At:      at,
		})
	}

	return events, rows.Err()
}

// Close closes the database connection.
func (s *PostgresEventStore) Close() error {
	return s.db.Close()
}

// MemoryEventStore implements EventStore for tests and single-node dev runs.
type MemoryEventStore struct {
	mu     sync.Mutex
	events []engine.Event
}

// NewMemoryEventStore creates an empty in-memory store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

// SaveEvent appends one event.
func (s *MemoryEventStore) SaveEvent(ev engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// LoadEvents returns the most recent events, oldest first.
func (s *MemoryEventStore) LoadEvents(limit int) ([]engine.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	out := make([]engine.Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out, nil
}

// Close is a no-op.
func (s *MemoryEventStore) Close() error {
	return nil
}

// StoreSink adapts an EventStore to the engine's Sink interface. Store
// failures are logged, never propagated: the engine's state transition has
// already committed by the time the sink runs.
type StoreSink struct {
	Store EventStore
	Log   *slog.Logger
}

// Append persists the event, logging on failure.
func (s *StoreSink) Append(ev engine.Event) {
	if err := s.Store.SaveEvent(ev); err != nil {
		s.Log.Error("Persisting market event failed", "kind", ev.Kind, "err", err)
	}
}
