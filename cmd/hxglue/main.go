package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"hxglue/internal/hxglue"
	"hxglue/internal/swap"
	"hxglue/internal/timefmt"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "hxglue",
	Short: "htmx glue: before-swap error override and time helpers",
	Long: `hxglue sits in front of an htmx app. It serves the client glue script,
injects it into HTML pages and can force swaps of 400/401/403/500 responses
on the server side.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the front proxy",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the generated client script",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noHelpers, _ := cmd.Flags().GetBool("no-helpers")
		b, err := swap.Script(swap.ScriptOptions{Helpers: !noHelpers})
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

var formatCmd = &cobra.Command{
	Use:   "format [time]",
	Short: "Print a timestamp in display and form-input formats",
	Example: `  hxglue format 2024-03-04T14:05
  hxglue format 1709579100000 --tz America/New_York`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tz, _ := cmd.Flags().GetString("tz")
		loc := time.Local
		if tz != "" {
			var err error
			if loc, err = time.LoadLocation(tz); err != nil {
				return err
			}
		}
		f := timefmt.New(loc)
		if _, err := f.Parse(args[0]); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, f.FormatTime(args[0]))
		fmt.Fprintln(out, f.FormFormatTime(args[0]))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", getenvDefault("HXGLUE_CONFIG", "./hxglue.yaml"), "path to hxglue.yaml, empty to configure from the environment only")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	scriptCmd.Flags().Bool("no-helpers", false, "omit formatTime and formFormatTime")
	formatCmd.Flags().String("tz", "", "IANA zone to render in (default local)")

	rootCmd.AddCommand(serveCmd, scriptCmd, formatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := hxglue.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Level())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, err := hxglue.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		svc.Close()
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("hxglue listening", zap.String("addr", addr), zap.String("origin", cfg.Server.Origin))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		return errors.Join(err, svc.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return err
	}
	logger.Info("hxglue stopped")
	return nil
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
