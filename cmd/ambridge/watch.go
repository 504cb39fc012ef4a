package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/ambridge/internal/events"
	"github.com/kalambet/ambridge/internal/live"
	"github.com/kalambet/ambridge/internal/storage"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print live values as they change",
	Long: `Print the live projections (theme, favorites, installed apps, launcher
selection and setup state) and reprint each one whenever it changes.

Writes made by other processes are picked up by re-reading the database
every --interval. Stop with Ctrl+C.`,
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := s.facade.Migrate(ctx); err != nil {
			return err
		}
		return watch(ctx, s.store, s.logger, cmd.OutOrStdout(), interval)
	}),
}

func init() {
	watchCmd.Flags().Duration("interval", 2*time.Second, "poll interval for external writes (0 disables polling)")
	rootCmd.AddCommand(watchCmd)
}

// lineWriter serializes lines from concurrent printers.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lineWriter) printf(format string, args ...any) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	fmt.Fprintf(lw.w, format, args...)
}

func watch(ctx context.Context, store *storage.Store, logger *slog.Logger, out io.Writer, interval time.Duration) error {
	hooks := live.NewHooks(store, live.WithLogger(logger))
	lw := &lineWriter{w: out}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hooks.Run(ctx) })
	g.Go(func() error { return printValues(ctx, lw, hooks.Theme) })
	g.Go(func() error { return printValues(ctx, lw, hooks.FavoriteApps) })
	g.Go(func() error { return printValues(ctx, lw, hooks.InstalledApps) })
	g.Go(func() error { return printValues(ctx, lw, hooks.LauncherSelection) })
	g.Go(func() error { return printValues(ctx, lw, hooks.IsFirstTime) })

	if interval > 0 {
		g.Go(func() error {
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					logger.Debug("polling for external writes")
					for _, table := range storage.Tables {
						store.Bus().Publish(events.Change{Table: table, Op: events.OpPut})
					}
				}
			}
		})
	}
	return g.Wait()
}

// printValues prints q's value whenever its JSON rendering changes.
func printValues[T any](ctx context.Context, lw *lineWriter, q *live.Query[T]) error {
	values, cancel := q.Subscribe()
	defer cancel()

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-values:
			if !ok {
				return nil
			}
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", q.Name(), err)
			}
			if string(b) == last {
				continue
			}
			last = string(b)
			lw.printf("%s %s\n", colorize(colorBold, q.Name()+":"), b)
		}
	}
}
