// Package corpus handles SQLite storage for generated samples, so a
// campaign's streams can be queried and replayed later.
package corpus

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSampleNotFound indicates the requested sample doesn't exist
var ErrSampleNotFound = errors.New("sample not found")

// Sample is one stored stream with its provenance.
type Sample struct {
	ID        int64
	Protocol  int
	Seed      uint64
	Mutators  string // comma-separated, empty for pure generation
	Valid     bool
	Violation string // empty when Valid
	Data      []byte
	Trace     []byte // CBOR-encoded trace, may be nil
	CreatedAt time.Time
}

// Store handles SQLite storage for samples
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates a sample store backed by the given database path
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Create table if needed
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		protocol INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		mutators TEXT NOT NULL DEFAULT '',
		valid INTEGER NOT NULL,
		violation TEXT NOT NULL DEFAULT '',
		data BLOB NOT NULL,
		trace BLOB,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists a sample and returns its assigned id
func (s *Store) Save(sample *Sample) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO samples (protocol, seed, mutators, valid, violation, data, trace)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sample.Protocol, int64(sample.Seed), sample.Mutators,
		sample.Valid, sample.Violation, sample.Data, sample.Trace,
	)
	if err != nil {
		return 0, fmt.Errorf("saving sample: %w", err)
	}
	return res.LastInsertId()
}

// Load retrieves a sample by id
func (s *Store) Load(id int64) (*Sample, error) {
	var sample Sample
	var seed int64
	err := s.db.QueryRow(
		`SELECT id, protocol, seed, mutators, valid, violation, data, trace, created_at
		 FROM samples WHERE id = ?`, id,
	).Scan(&sample.ID, &sample.Protocol, &seed, &sample.Mutators,
		&sample.Valid, &sample.Violation, &sample.Data, &sample.Trace,
		&sample.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSampleNotFound
		}
		return nil, fmt.Errorf("querying sample: %w", err)
	}
	sample.Seed = uint64(seed)
	return &sample, nil
}

// FindInvalid returns the ids of every stored sample that failed validation
func (s *Store) FindInvalid() ([]int64, error) {
	rows, err := s.db.Query("SELECT id FROM samples WHERE valid = 0 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying invalid samples: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of stored samples
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting samples: %w", err)
	}
	return n, nil
}
