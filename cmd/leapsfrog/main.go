// leapsfrog - a poor-man's covered call backtester driven by historical
// option chains.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tylerautera/LEAPSfrog/internal/config"
	"github.com/tylerautera/LEAPSfrog/internal/provider"
	"github.com/tylerautera/LEAPSfrog/internal/report"
	"github.com/tylerautera/LEAPSfrog/internal/retry"
	"github.com/tylerautera/LEAPSfrog/internal/strategy"
	"github.com/tylerautera/LEAPSfrog/internal/trace"
)

var (
	version    = "0.1.0"
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "leapsfrog",
		Short: "Poor-man's covered call simulator",
		Long: `leapsfrog simulates the poor-man's covered call strategy over
historical option chains: it buys a deep in-the-money LEAP per ticker, sells
successive short-dated calls against it, detects assignment, and reports the
realized returns.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file")

	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(leapsCmd())
	rootCmd.AddCommand(tickersCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("leapsfrog version %s\n", version)
		},
	}
}

func simulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run the full covered-call simulation and write the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.shutdown()
			return app.simulate()
		},
	}
}

func leapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaps",
		Short: "Select the qualifying LEAP per ticker and print it, without simulating",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.shutdown()
			return app.printLeaps()
		},
	}
}

func tickersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tickers",
		Short: "Show which configured tickers have history covering the start date",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.shutdown()
			return app.printTickers()
		},
	}
}

// app wires the configuration, logger and provider chain for one command
// invocation.
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	provider provider.ChainProvider
	ctx      context.Context
	cancel   context.CancelFunc
}

func bootstrap() (*app, error) {
	// Optional .env for the API token; a missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := trace.Init(); err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	api := provider.NewOratsAPIWithBaseURL(cfg.Provider.Token, cfg.Provider.BaseURL).
		WithTimeout(cfg.RequestTimeout())
	breaker := provider.NewCircuitBreakerProvider(api, logger)
	chain := retry.NewClient(breaker, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &app{
		cfg:      cfg,
		logger:   logger,
		provider: chain,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (a *app) shutdown() {
	a.cancel()
	if err := trace.Shutdown(context.Background()); err != nil {
		a.logger.WithError(err).Warn("failed to flush traces")
	}
}

func (a *app) simulate() error {
	ctx, span := trace.StartSpan(a.ctx, "simulate")
	defer span.End()

	tickers, err := a.activeTickers(ctx)
	if err != nil {
		return err
	}

	selector := strategy.NewSelector(a.provider, a.logger)
	positions, err := selector.FindLeaps(ctx, a.cfg.LeapStrategyConfig(), tickers, a.cfg.StartDate())
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return fmt.Errorf("no qualifying LEAP for any ticker on %s", a.cfg.Simulation.StartDate)
	}

	engine := strategy.NewEngine(a.provider, a.logger).WithMaxIterations(a.cfg.MaxIterations())
	if err := engine.Run(ctx, positions, a.cfg.CoveredCallStrategyConfig(), a.cfg.StartDate()); err != nil {
		return err
	}

	if err := report.WriteFile(a.cfg.Output.Path, positions); err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"positions": len(positions),
		"path":      a.cfg.Output.Path,
	}).Info("simulation complete")
	return nil
}

func (a *app) printLeaps() error {
	ctx, span := trace.StartSpan(a.ctx, "leaps")
	defer span.End()

	tickers, err := a.activeTickers(ctx)
	if err != nil {
		return err
	}

	selector := strategy.NewSelector(a.provider, a.logger)
	positions, err := selector.FindLeaps(ctx, a.cfg.LeapStrategyConfig(), tickers, a.cfg.StartDate())
	if err != nil {
		return err
	}

	data, err := report.Marshal(positions)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func (a *app) printTickers() error {
	ctx, span := trace.StartSpan(a.ctx, "tickers")
	defer span.End()

	tickers, err := a.activeTickers(ctx)
	if err != nil {
		return err
	}
	for _, ticker := range tickers {
		fmt.Println(ticker)
	}
	return nil
}

// activeTickers pre-filters the configured tickers down to those whose trade
// history covers the simulation start date.
func (a *app) activeTickers(ctx context.Context) ([]string, error) {
	tickers, err := strategy.FilterTickersByWindow(ctx, a.provider, a.logger,
		a.cfg.Simulation.Tickers, a.cfg.StartDate())
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no ticker has history covering %s", a.cfg.Simulation.StartDate)
	}
	return tickers, nil
}
