package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/tinithink/internal/domain"
	"github.com/conorfennell/tinithink/internal/scope"
)

var _ scope.Store = (*DB)(nil)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveCourse inserts the course or replaces its stored path.
func (db *DB) SaveCourse(ctx context.Context, course string, path domain.Path) error {
	encoded, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("failed to encode path for course %s: %w", course, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO courses (name, path, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET path = excluded.path, updated_at = excluded.updated_at
	`, course, string(encoded), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save course %s: %w", course, err)
	}
	return nil
}

// DeleteCourse removes the course and every card filed under it.
func (db *DB) DeleteCourse(ctx context.Context, course string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete of course %s: %w", course, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE course = ?`, course); err != nil {
		return fmt.Errorf("failed to delete cards of course %s: %w", course, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE name = ?`, course); err != nil {
		return fmt.Errorf("failed to delete course %s: %w", course, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of course %s: %w", course, err)
	}
	return nil
}

// SaveCard inserts a new card.
func (db *DB) SaveCard(ctx context.Context, card domain.Card) error {
	encoded, err := json.Marshal(card.Path)
	if err != nil {
		return fmt.Errorf("failed to encode path for card %s: %w", card.ID, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO cards (id, question, answer, course, path, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.Question,
		card.Answer,
		card.Path.Course(),
		string(encoded),
		card.Hash,
		card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// DeleteCard removes a card by id. Deleting a missing card is not an error.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return nil
}

// Load reads every course and card, cards in insertion order.
func (db *DB) Load(ctx context.Context) (scope.Snapshot, error) {
	snap := scope.Snapshot{Courses: make(map[string]domain.Path)}

	rows, err := db.conn.QueryContext(ctx, `SELECT name, path FROM courses`)
	if err != nil {
		return snap, fmt.Errorf("failed to load courses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, encoded string
		if err := rows.Scan(&name, &encoded); err != nil {
			return snap, fmt.Errorf("failed to scan course row: %w", err)
		}
		var path domain.Path
		if err := json.Unmarshal([]byte(encoded), &path); err != nil {
			return snap, fmt.Errorf("failed to decode path of course %s: %w", name, err)
		}
		snap.Courses[name] = path
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("failed to read courses: %w", err)
	}

	cards, err := db.queryCards(ctx, `
		SELECT id, question, answer, path, hash, created_at
		FROM cards ORDER BY seq
	`)
	if err != nil {
		return snap, err
	}
	snap.Cards = cards
	return snap, nil
}

func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var (
			card    domain.Card
			encoded string
		)
		if err := rows.Scan(&card.ID, &card.Question, &card.Answer, &encoded, &card.Hash, &card.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &card.Path); err != nil {
			return nil, fmt.Errorf("failed to decode path of card %s: %w", card.ID, err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	return cards, nil
}

// RecordSource inserts the source or bumps its last import time.
func (db *DB) RecordSource(ctx context.Context, path, kind string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, kind, last_imported)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET kind = excluded.kind, last_imported = excluded.last_imported
	`, path, kind, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record source %s: %w", path, err)
	}
	return nil
}

// ListSources retrieves all stored sources, oldest first.
func (db *DB) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT path, kind, last_imported
		FROM sources ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var (
			s            domain.Source
			lastImported sql.NullTime
		)
		if err := rows.Scan(&s.Path, &s.Kind, &lastImported); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		if lastImported.Valid {
			s.LastImported = lastImported.Time
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
