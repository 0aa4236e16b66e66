package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aellingwood/mdenhance/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build, then rebuild whenever content changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd, false, buildOverrides(cmd))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		builder := newBuilder(a)
		var mu sync.Mutex
		rebuild := func(changed []string) {
			mu.Lock()
			defer mu.Unlock()

			result, err := builder.Build(ctx)
			if err != nil {
				a.log.Error("rebuild failed", zap.Strings("changed", changed), zap.Error(err))
				return
			}
			a.log.Info("rebuilt",
				zap.Int("pages", result.PagesRendered),
				zap.Duration("duration", result.Duration))
		}

		rebuild(nil)

		out, err := filepath.Abs(a.cfg.Build.Destination)
		if err != nil {
			return err
		}
		w := watch.New([]string{a.cfg.Build.Content}, a.cfg.Watch.Debounce, rebuild,
			watch.WithLogger(a.log),
			watch.WithIgnore(func(path string) bool {
				abs, err := filepath.Abs(path)
				if err != nil {
					return false
				}
				return abs == out || strings.HasPrefix(abs, out+string(filepath.Separator))
			}),
		)

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (press Ctrl+C to stop)\n", a.cfg.Build.Content)
		return w.Run(ctx)
	},
}

func init() {
	addBuildFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", 200*time.Millisecond, "quiet period before a rebuild")

	rootCmd.AddCommand(watchCmd)
}
