package storage

const schema = `
-- One row per course; path holds the deepest path built for it as a JSON
-- array of {"level","name"} objects.
CREATE TABLE IF NOT EXISTS courses (
    name TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

-- seq keeps insertion order; course duplicates path[0].name for cascades.
CREATE TABLE IF NOT EXISTS cards (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    course TEXT NOT NULL,
    path TEXT NOT NULL,
    hash TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_course ON cards(course);
CREATE INDEX IF NOT EXISTS idx_cards_hash ON cards(hash);

-- Deck directories and git repositories cards were imported from.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    last_imported DATETIME
);
`
