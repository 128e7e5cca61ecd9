package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knolsched/internal/config"
	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/fsrs"
	"github.com/conorfennell/knolsched/internal/knol"
	"github.com/conorfennell/knolsched/internal/review"
	"github.com/conorfennell/knolsched/internal/storage"
	"github.com/conorfennell/knolsched/internal/sync"
	"github.com/conorfennell/knolsched/internal/web"
)

const usage = `Usage: knolsched [flags] <command> [args]

Commands:
  add-source <path|url>   Register a local directory or git repository of decks
  sync                    Reconcile all sources into the database
  due                     List cards that are due now
  preview <hash>          Show what each rating would do to a card
  review <hash> <rating>  Record a review (again, hard, good, easy or 1-4)
  history <hash>          Show a card's review log
  serve                   Serve the JSON API

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("knolsched failed", "error", err)
		os.Exit(1)
	}
}

// app is what every command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	db      *storage.DB
	reviews *review.Service
	out     io.Writer
}

func run(ctx context.Context, args []string, out io.Writer) error {
	flags := config.Flags("knolsched")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.NewLogger())

	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return errors.New("no command given")
	}

	params, err := cfg.Parameters()
	if err != nil {
		return err
	}
	scheduler, err := fsrs.NewScheduler(params)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Debug("Database opened successfully", "path", cfg.DB)

	a := &app{cfg: cfg, db: db, reviews: review.NewService(db, scheduler), out: out}
	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "add-source":
		return a.addSource(ctx, cmdArgs)
	case "sync":
		return a.sync(ctx)
	case "due":
		return a.due(ctx)
	case "preview":
		return a.preview(ctx, cmdArgs)
	case "review":
		return a.review(ctx, cmdArgs)
	case "history":
		return a.history(ctx, cmdArgs)
	case "serve":
		return a.serve(ctx)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func wantArgs(cmd string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d argument(s), got %d", cmd, n, len(args))
	}
	return nil
}

func (a *app) addSource(ctx context.Context, args []string) error {
	if err := wantArgs("add-source", args, 1); err != nil {
		return err
	}
	path := args[0]
	sourceType := domain.DetectSourceType(path)
	id, err := a.db.InsertSource(ctx, path, sourceType)
	if errors.Is(err, storage.ErrExists) {
		return fmt.Errorf("%s is already a source", path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s source %d: %s\n", sourceType, id, path)
	return nil
}

func (a *app) sync(ctx context.Context) error {
	report, err := sync.RunSync(ctx, a.db, a.cfg.ReposDir, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Synced %d sources: %d cards parsed, %d new, %d removed, %d errors.\n",
		report.Sources, report.Parsed, report.Inserted, report.Deleted, len(report.Errors))
	for _, e := range report.Errors {
		fmt.Fprintf(a.out, "- %s\n", e)
	}
	return nil
}

func (a *app) due(ctx context.Context) error {
	now := time.Now()
	cards, err := a.db.DueCards(ctx, now, 0)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tSTATE\tDUE\tQUESTION")
	for _, c := range cards {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", knol.Short(c.Hash), c.Memory.State, c.Memory.Due.Local().Format(time.DateTime), firstLine(c.Question))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d cards due.\n", len(cards))
	return nil
}

func (a *app) preview(ctx context.Context, args []string) error {
	if err := wantArgs("preview", args, 1); err != nil {
		return err
	}
	p, err := a.reviews.Preview(ctx, args[0], time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s  [%s, retrievability %.2f]\n%s\n\n",
		knol.Short(p.Card.Hash), p.Card.Memory.State, p.Retrievability, p.Card.Question)

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RATING\tSTATE\tINTERVAL\tDUE\tSTABILITY\tDIFFICULTY")
	for r, info := range p.Outcomes.All() {
		c := info.Card
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%.2f\n",
			r, c.State, interval(c.Due.Sub(info.ReviewLog.Review)), c.Due.Local().Format(time.DateTime), c.Stability, c.Difficulty)
	}
	return tw.Flush()
}

func (a *app) review(ctx context.Context, args []string) error {
	if err := wantArgs("review", args, 2); err != nil {
		return err
	}
	rating, err := fsrs.ParseRating(args[1])
	if err != nil {
		return err
	}
	res, err := a.reviews.Answer(ctx, args[0], rating, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s rated %s: %s, next review %s (%s)\n",
		knol.Short(res.Card.Hash), rating, res.Card.Memory.State,
		res.Card.Memory.Due.Local().Format(time.DateTime), interval(res.Card.Memory.Due.Sub(res.ReviewLog.Review)))
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	if err := wantArgs("history", args, 1); err != nil {
		return err
	}
	logs, err := a.reviews.History(ctx, args[0])
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REVIEWED\tRATING\tFROM\tELAPSED\tSCHEDULED")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dd\t%dd\n", l.Review.Local().Format(time.DateTime), l.Rating, l.State, l.ElapsedDays, l.ScheduledDays)
	}
	return tw.Flush()
}

func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           web.NewServer(a.db, a.reviews, a.cfg.ReposDir),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", a.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}
	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// interval renders a scheduling gap the way a reviewer thinks about it.
func interval(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Round(time.Minute).Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Round(time.Hour).Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Round(24*time.Hour).Hours()/24))
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
