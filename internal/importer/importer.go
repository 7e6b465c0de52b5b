// Package importer loads markdown decks from a directory or git repository
// into a collection.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/conorfennell/tinithink/internal/domain"
	"github.com/conorfennell/tinithink/internal/gitsource"
	"github.com/conorfennell/tinithink/internal/knol"
	"github.com/conorfennell/tinithink/internal/parser"
	"github.com/conorfennell/tinithink/internal/scope"
)

const (
	KindLocal = "local"
	KindGit   = "git"
)

// SourceRecorder remembers where decks were imported from.
type SourceRecorder interface {
	RecordSource(ctx context.Context, path, kind string) error
}

// Report summarizes one import run.
type Report struct {
	Files      int
	Parsed     int
	Added      int
	Duplicates int
	Skipped    int
	Errors     []error
}

// Importer feeds parsed deck cards into a Collection.
type Importer struct {
	coll     *scope.Collection
	sources  SourceRecorder
	reposDir string
	logger   *slog.Logger
}

// New returns an Importer writing into coll. Git sources are checked out
// under reposDir. sources may be nil.
func New(coll *scope.Collection, reposDir string, sources SourceRecorder) *Importer {
	return &Importer{
		coll:     coll,
		sources:  sources,
		reposDir: reposDir,
		logger:   slog.Default(),
	}
}

// Run imports every .md deck under source. Cards without at least a course
// and subject are skipped, as are cards whose content hash is already in
// the collection.
func (im *Importer) Run(ctx context.Context, source string) (Report, error) {
	var report Report

	kind, dir := KindLocal, source
	if gitsource.IsRemote(source) {
		kind = KindGit
		localPath, err := gitsource.LocalPath(im.reposDir, source)
		if err != nil {
			return report, err
		}
		if err := gitsource.Sync(ctx, source, localPath); err != nil {
			return report, err
		}
		dir = localPath
	}
	im.logger.Info("Importing source", "source", source, "type", kind, "path", dir)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		report.Files++
		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, card := range cards {
			report.Parsed++
			im.add(ctx, path, card, &report)
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	if im.sources != nil {
		if err := im.sources.RecordSource(ctx, source, kind); err != nil {
			im.logger.Warn("Failed to record source", "source", source, "error", err)
			report.Errors = append(report.Errors, err)
		}
	}

	im.logger.Info("import complete",
		"source", source,
		"files", report.Files,
		"parsed_cards", report.Parsed,
		"added", report.Added,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (im *Importer) add(ctx context.Context, file string, card domain.Card, report *Report) {
	if len(card.Path) < 2 {
		report.Skipped++
		im.logger.Debug("Card has no subject, skipping", "file", file, "question", card.Question)
		return
	}
	if im.coll.HasHash(knol.Hash(card)) {
		report.Duplicates++
		return
	}

	if _, err := im.coll.Import(ctx, card.Path, card.Question, card.Answer); err != nil {
		var verr *scope.ValidationError
		if errors.As(err, &verr) {
			report.Skipped++
		}
		report.Errors = append(report.Errors, fmt.Errorf("importing %q from %s: %w", card.Question, file, err))
		return
	}
	report.Added++
}
