package gormstore

import "time"

// Course is the registry row for one course.
type Course struct {
	Name      string `gorm:"primaryKey;size:200"`
	Path      string `gorm:"not null"`
	UpdatedAt time.Time
}

// Card is a stored flashcard. Seq preserves insertion order.
type Card struct {
	Seq       uint   `gorm:"primaryKey;autoIncrement"`
	PublicID  string `gorm:"not null;size:64;uniqueIndex"`
	Question  string `gorm:"not null"`
	Answer    string `gorm:"not null"`
	Course    string `gorm:"not null;size:200;index"`
	Path      string `gorm:"not null"`
	Hash      string `gorm:"not null;size:64;index"`
	CreatedAt time.Time
}

// Source is a deck directory or repository imported from.
type Source struct {
	ID           uint   `gorm:"primaryKey"`
	Path         string `gorm:"not null;uniqueIndex"`
	Kind         string `gorm:"not null;size:16"`
	LastImported *time.Time
}
