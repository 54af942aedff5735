package status

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oshokin/ghd/internal/logger"
	"github.com/oshokin/ghd/internal/repository/history"
	"github.com/oshokin/ghd/internal/service/syncer"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	emptyCell  = "-"
)

// Options are inputs accepted by the status entry point.
type Options struct {
	// ConfigPath is the optional path to the settings file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
	// Home is the directory defaults are derived from. Empty means the user's home.
	Home string
	// Out receives the table. Nil means stdout.
	Out io.Writer
}

// Run prints the newest history entry of every package.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "status")

	cfg, err := syncer.LoadSettings(opts.ConfigPath, opts.Home, opts.LogLevel)
	if err != nil {
		return err
	}

	repo, err := history.Open(ctx, cfg.HistoryPath)
	if err != nil {
		return err
	}

	defer repo.Close()

	entries, err := repo.Latest(ctx)
	if err != nil {
		return err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if len(entries) == 0 {
		logger.Info(ctx, "No syncs recorded yet")
		return nil
	}

	return Render(out, entries)
}

// Render writes entries as an aligned table.
func Render(out io.Writer, entries []*history.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PACKAGE\tTAG\tASSET\tINSTALLED\tSTATUS\tSYNCED AT\tDURATION")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Package,
			cell(e.Tag),
			cell(e.Asset),
			cell(strings.Join(e.Installed, ",")),
			statusOf(e),
			e.StartedAt.Local().Format(timeLayout),
			e.Duration.Round(time.Millisecond))
	}

	return w.Flush()
}

func statusOf(e *history.Entry) string {
	switch {
	case !e.Succeeded():
		return "failed (" + e.ErrorKind + ")"
	case e.Truncated:
		return "ok (truncated)"
	default:
		return "ok"
	}
}

func cell(value string) string {
	if value == "" {
		return emptyCell
	}

	return value
}
