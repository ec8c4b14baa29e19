// cb0t is a personal crypto accumulation bot for Kraken: it evaluates RSI
// and weekly SMA signals on a schedule, places accelerated DCA buys, and
// serves read-only HTML pages for ticker, balance and backtest data.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/r0nny8000/cb0t/internal/config"
	"github.com/r0nny8000/cb0t/internal/costbasis"
	"github.com/r0nny8000/cb0t/internal/kraken"
	"github.com/r0nny8000/cb0t/internal/scheduler"
	"github.com/r0nny8000/cb0t/internal/server"
	"github.com/r0nny8000/cb0t/internal/trading"
)

var (
	cfgFile string
	port    int
	once    bool
)

var rootCmd = &cobra.Command{
	Use:           "cb0t",
	Short:         "Personal crypto accumulation bot for Kraken",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides config)")
	rootCmd.Flags().BoolVar(&once, "once", false, "run one accumulation pass and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := kraken.NewClient(cfg.APIKey, cfg.APISecret, nil, log)
	costBasis := costbasis.New(client, log)
	trader := trading.New(client, cfg.Environment, log)
	sched := scheduler.New(cfg.Assets, client, trader, cfg.ScheduleInterval, log)

	if once {
		sched.Tick(ctx)
		return nil
	}

	go sched.Run(ctx)

	handler := server.New(client, costBasis, cfg, log)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
