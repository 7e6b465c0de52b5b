package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/tinithink/internal/config"
	"github.com/conorfennell/tinithink/internal/domain"
	"github.com/conorfennell/tinithink/internal/importer"
	"github.com/conorfennell/tinithink/internal/scope"
	"github.com/conorfennell/tinithink/internal/storage"
	"github.com/conorfennell/tinithink/internal/storage/gormstore"
	"github.com/conorfennell/tinithink/internal/web"
)

const usage = `Usage: tinithink [command] [flags]

Commands:
  serve              Run the HTTP server (default)
  import <source>... Import markdown decks from directories or git URLs
  courses            List courses; --remove NAME deletes one after confirmation
  sources            List the directories and repositories decks were imported from
`

// backend is what every storage driver provides.
type backend interface {
	scope.Store
	importer.SourceRecorder
	ListSources(ctx context.Context) ([]domain.Source, error)
	io.Closer
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("tinithink failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	flags := pflag.NewFlagSet("tinithink "+cmd, pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	config.Flags(flags)
	remove := flags.String("remove", "", "Course to delete, with all of its flashcards (courses command)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(cfg.Log.Handler()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("Database opened successfully", "driver", cfg.DB.Driver)

	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	coll := scope.New(scope.WithStore(store))
	coll.Restore(snap)

	switch cmd {
	case "serve":
		return serve(ctx, cfg.Server, coll)
	case "import":
		return runImport(ctx, coll, store, cfg.Import.ReposDir, flags.Args())
	case "courses":
		return runCourses(ctx, coll, *remove)
	case "sources":
		sources, err := store.ListSources(ctx)
		if err != nil {
			return err
		}
		printSources(os.Stdout, sources)
		return nil
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openStore(cfg config.DB) (backend, error) {
	switch cfg.Driver {
	case "sqlite":
		return storage.Open(cfg.DSN)
	case "gorm-sqlite":
		return gormstore.Open(gormstore.DriverSQLite, cfg.DSN)
	case "postgres":
		return gormstore.Open(gormstore.DriverPostgres, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

func serve(ctx context.Context, cfg config.Server, coll *scope.Collection) error {
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: web.NewServer(coll, cfg.AllowedOrigins),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", cfg.Addr, "origins", cfg.AllowedOrigins)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(ctx context.Context, coll *scope.Collection, sources importer.SourceRecorder, reposDir string, args []string) error {
	if len(args) == 0 {
		return errors.New("import needs at least one directory or git URL")
	}

	im := importer.New(coll, reposDir, sources)
	for _, source := range args {
		report, err := im.Run(ctx, source)
		if err != nil {
			return fmt.Errorf("import of %s failed: %w", source, err)
		}

		fmt.Printf("%s: found %d cards in %d files, added %d, %d duplicates, %d skipped, %d errors.\n",
			source, report.Parsed, report.Files, report.Added, report.Duplicates, report.Skipped, len(report.Errors))
		if len(report.Errors) > 0 {
			fmt.Println("\nErrors:")
			for _, e := range report.Errors {
				fmt.Printf("- %s\n", e)
			}
		}
	}
	return nil
}

func runCourses(ctx context.Context, coll *scope.Collection, remove string) error {
	if remove != "" {
		err := coll.RemoveCourse(ctx, remove, promptConfirmer(os.Stdin, os.Stdout))
		if errors.Is(err, scope.ErrNotConfirmed) {
			fmt.Println("Cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	counts := make(map[string]int)
	for _, card := range coll.Records() {
		counts[card.Path.Course()]++
	}
	for _, name := range coll.Courses() {
		path, _ := coll.CoursePath(name)
		fmt.Printf("%-20s %-50s %d cards\n", name, path.Label(), counts[name])
	}
	return nil
}

// printSources writes one line per source; never-imported sources show "-".
func printSources(w io.Writer, sources []domain.Source) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "No sources imported yet.")
		return
	}
	for _, src := range sources {
		last := "-"
		if !src.LastImported.IsZero() {
			last = src.LastImported.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%-6s %-20s %s\n", src.Kind, last, src.Path)
	}
}

// promptConfirmer asks on out and accepts "y" or "yes" from in.
func promptConfirmer(in io.Reader, out io.Writer) scope.Confirmer {
	reader := bufio.NewReader(in)
	return scope.ConfirmFunc(func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N] ", prompt)
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	})
}
