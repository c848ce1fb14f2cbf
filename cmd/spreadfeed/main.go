package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/spreadfeed/internal/config"
	"github.com/sawpanic/spreadfeed/internal/decimal"
	"github.com/sawpanic/spreadfeed/internal/discovery"
	"github.com/sawpanic/spreadfeed/internal/orchestrator"
	"github.com/sawpanic/spreadfeed/internal/registry"
	"github.com/sawpanic/spreadfeed/internal/snapshot"
	"github.com/sawpanic/spreadfeed/internal/tracker"
	"github.com/sawpanic/spreadfeed/internal/venue"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd := &cobra.Command{
		Use:     "spreadfeed",
		Short:   "Cross-venue derivatives spread tracker",
		Version: version,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the ingest pipeline and block until interrupted",
		RunE:  runPipeline,
	}
	runCmd.Flags().String("config", "config.yaml", "path to the YAML config file")
	runCmd.Flags().String("discovery-url", "", "HTTP endpoint returning a 24h-ticker list (defaults to config's binance.rest_url)")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print a one-shot JSON snapshot and exit",
		Long:  "Intended for local smoke-testing the query surface shape; starts the pipeline, waits briefly, then prints one snapshot.",
		RunE:  runSnapshotOnce,
	}
	snapshotCmd.Flags().String("config", "config.yaml", "path to the YAML config file")
	snapshotCmd.Flags().Duration("warmup", 3*time.Second, "how long to let the pipeline ingest before snapshotting")
	snapshotCmd.Flags().String("discovery-url", "", "HTTP endpoint returning a 24h-ticker list (defaults to config's binance.rest_url)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(runCmd, snapshotCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("spreadfeed exited with error")
	}
}

// configureLogging sets the global zerolog logger per the config's
// log_level/log_format, falling back to a plain-text console writer only
// when the terminal is interactive and the config asked for "console".
func configureLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" && term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// discoverInstruments resolves the discovery endpoint (explicit flag, else
// the config's binance.rest_url) and fetches the volume-filtered instrument
// list. An empty endpoint is valid and yields an empty list rather than an
// error: discovery is an external collaborator, not a hard dependency.
func discoverInstruments(ctx context.Context, cfg config.Config, discoveryURL string) ([]string, error) {
	if discoveryURL == "" {
		discoveryURL = cfg.BinanceRESTURL
	}
	if discoveryURL == "" {
		return nil, nil
	}
	fetcher := discovery.NewFetcher(discoveryURL)
	return fetcher.Discover(ctx, cfg.MinVolume24h)
}

// buildPipeline wires config -> discovery -> registry -> tracker -> venue
// clients -> orchestrator, the same assembly order regardless of entry
// point. Discovery must run before Registry.Init: Init is single-shot, so
// it has to be called once with the real instrument list rather than an
// empty one patched in later.
func buildPipeline(ctx context.Context, cfgPath, discoveryURL string) (*orchestrator.Orchestrator, *snapshot.View, config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, config.Config{}, fmt.Errorf("load config: %w", err)
	}
	configureLogging(cfg)

	names, err := discoverInstruments(ctx, cfg, discoveryURL)
	if err != nil {
		log.Warn().Err(err).Msg("discovery failed, starting with an empty instrument list")
		names = nil
	} else {
		log.Info().Int("count", len(names)).Msg("discovered instruments")
	}

	reg := registry.New(cfg.MaxInstruments)
	if err := reg.Init(names); err != nil {
		return nil, nil, config.Config{}, fmt.Errorf("init registry: %w", err)
	}

	trk := tracker.New(cfg.MaxInstruments, decimal.FromRaw(cfg.OpportunityThreshold), cfg.WindowDuration())
	view := snapshot.NewView(trk, reg)

	clientA := venue.NewBinanceClient(cfg.BinanceWSURL, reg, venue.NewAliasTable(nil))
	clientB := venue.NewBybitClient(cfg.BybitWSURL, reg, venue.NewAliasTable(nil))

	orch := orchestrator.New([]venue.Client{clientA, clientB}, view, cfg.QueueCapacity)
	return orch, view, cfg, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	discoveryURL, _ := cmd.Flags().GetString("discovery-url")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orch, _, _, err := buildPipeline(ctx, cfgPath, discoveryURL)
	if err != nil {
		return err
	}

	log.Info().Msg("starting pipeline")
	orch.Run(ctx)
	log.Info().Msg("pipeline stopped")
	return nil
}

func runSnapshotOnce(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	warmup, _ := cmd.Flags().GetDuration("warmup")
	discoveryURL, _ := cmd.Flags().GetString("discovery-url")

	discoverCtx, cancelDiscover := context.WithTimeout(context.Background(), warmup)
	orch, view, _, err := buildPipeline(discoverCtx, cfgPath, discoveryURL)
	cancelDiscover()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), warmup)
	defer cancel()

	orch.Run(ctx)

	snap := view.Snapshot(time.Now())
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	fmt.Println(string(payload))
	return nil
}
