// Package gormstore persists the flashcard collection through gorm, on
// sqlite or postgres.
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // Registers the pure-Go "sqlite" driver used by the sqlite dialector

	"github.com/conorfennell/tinithink/internal/domain"
	"github.com/conorfennell/tinithink/internal/scope"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var _ scope.Store = (*Store)(nil)

// Store implements scope.Store on a gorm connection.
type Store struct {
	db *gorm.DB
}

// Open connects with the named driver and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn})
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(&Course{}, &Card{}, &Source{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) SaveCourse(ctx context.Context, course string, path domain.Path) error {
	encoded, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("failed to encode path for course %s: %w", course, err)
	}
	row := Course{Name: course, Path: string(encoded), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"path", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save course %s: %w", course, err)
	}
	return nil
}

func (s *Store) DeleteCourse(ctx context.Context, course string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course = ?", course).Delete(&Card{}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", course).Delete(&Course{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete course %s: %w", course, err)
	}
	return nil
}

func (s *Store) SaveCard(ctx context.Context, card domain.Card) error {
	encoded, err := json.Marshal(card.Path)
	if err != nil {
		return fmt.Errorf("failed to encode path for card %s: %w", card.ID, err)
	}
	row := Card{
		PublicID:  card.ID,
		Question:  card.Question,
		Answer:    card.Answer,
		Course:    card.Path.Course(),
		Path:      string(encoded),
		Hash:      card.Hash,
		CreatedAt: card.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create card %s: %w", card.ID, err)
	}
	return nil
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("public_id = ?", id).Delete(&Card{}).Error; err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (scope.Snapshot, error) {
	snap := scope.Snapshot{Courses: make(map[string]domain.Path)}
	db := s.db.WithContext(ctx)

	var courses []Course
	if err := db.Find(&courses).Error; err != nil {
		return snap, fmt.Errorf("failed to load courses: %w", err)
	}
	for _, c := range courses {
		var path domain.Path
		if err := json.Unmarshal([]byte(c.Path), &path); err != nil {
			return snap, fmt.Errorf("failed to decode path of course %s: %w", c.Name, err)
		}
		snap.Courses[c.Name] = path
	}

	var rows []Card
	if err := db.Order("seq").Find(&rows).Error; err != nil {
		return snap, fmt.Errorf("failed to load cards: %w", err)
	}
	snap.Cards = make([]domain.Card, 0, len(rows))
	for _, r := range rows {
		card := domain.Card{
			ID:        r.PublicID,
			Question:  r.Question,
			Answer:    r.Answer,
			Hash:      r.Hash,
			CreatedAt: r.CreatedAt,
		}
		if err := json.Unmarshal([]byte(r.Path), &card.Path); err != nil {
			return snap, fmt.Errorf("failed to decode path of card %s: %w", r.PublicID, err)
		}
		snap.Cards = append(snap.Cards, card)
	}
	return snap, nil
}

// RecordSource inserts the source or bumps its last import time.
func (s *Store) RecordSource(ctx context.Context, path, kind string) error {
	now := time.Now()
	row := Source{Path: path, Kind: kind, LastImported: &now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "last_imported"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record source %s: %w", path, err)
	}
	return nil
}

// ListSources returns every recorded source, oldest first.
func (s *Store) ListSources(ctx context.Context) ([]domain.Source, error) {
	var rows []Source
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	sources := make([]domain.Source, 0, len(rows))
	for _, r := range rows {
		src := domain.Source{Path: r.Path, Kind: r.Kind}
		if r.LastImported != nil {
			src.LastImported = *r.LastImported
		}
		sources = append(sources, src)
	}
	return sources, nil
}
