// Command indexer is the control surface of spec.md §6.5: it loads
// configuration, opens the persistent store, and runs the A6
// orchestrator against a directory of precomputed blocks.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/blockforge/mina-indexer-core/config"
	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/indexer"
	"github.com/blockforge/mina-indexer-core/metrics"
	"github.com/blockforge/mina-indexer-core/model"
	"github.com/blockforge/mina-indexer-core/store"
	"github.com/blockforge/mina-indexer-core/util"
)

// exitCode maps an ierrors.ERR to the process exit code spec.md §6.5
// assigns it: 0 normal shutdown, 100 genesis ledger unparseable, 111
// domain socket (web port) already in use, 1 every other unrecoverable
// error. Configuration/storage/consistency failures have no dedicated
// code in spec.md's table, so they fall through to 1 — see DESIGN.md's
// "Open Question decisions" for the rationale.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, errors.ErrGenesisLedger):
		return 100
	case errors.Is(err, errors.ErrAddressInUse):
		return 111
	default:
		return 1
	}
}

func main() {
	app := &cli.App{
		Name:  "mina-indexer-core",
		Usage: "index Mina precomputed blocks into a queryable best ledger and canonical chain",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "genesis-ledger"},
			&cli.StringFlag{Name: "block-startup-dir"},
			&cli.StringFlag{Name: "block-watch-dir"},
			&cli.StringFlag{Name: "ledger-startup-dir"},
			&cli.StringFlag{Name: "ledger-watch-dir"},
			&cli.StringFlag{Name: "database-dir", Value: "./database"},
			&cli.StringFlag{Name: "log-dir", Value: "./logs"},
			&cli.StringFlag{Name: "log-level", Value: "INFO"},
			&cli.IntFlag{Name: "canonical-threshold", Value: 10},
			&cli.IntFlag{Name: "canonical-update-threshold", Value: 2},
			&cli.StringFlag{Name: "web-hostname", Value: "127.0.0.1"},
			&cli.IntFlag{Name: "web-port", Value: 3086},
		},
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "run the indexer as a long-lived process",
				Subcommands: []*cli.Command{
					{Name: "start", Usage: "watch the configured directories and serve indefinitely", Action: runServer},
					{Name: "sync", Usage: "ingest the startup directories once, then exit", Action: runSync},
					{Name: "replay", Usage: "re-ingest the startup directory against a fresh database", Action: runReplay},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// settingsFromFlags resolves the effective Settings per spec.md §6.5's
// layering: an explicitly-passed urfave/cli flag always wins; anything
// left at its flag default instead falls through to config.Load's
// gocore.Config() layer (environment variables, then a gocore.app.conf
// file), so an operator can pin an argument via env/app.conf without
// repeating it on every invocation.
func settingsFromFlags(c *cli.Context) *config.Settings {
	layered, _ := config.Load()
	if layered == nil {
		layered = &config.Settings{}
	}

	str := func(name string, fallback string) string {
		if c.IsSet(name) {
			return c.String(name)
		}
		if fallback != "" {
			return fallback
		}
		return c.String(name)
	}
	num := func(name string, fallback int) int {
		if c.IsSet(name) {
			return c.Int(name)
		}
		if fallback != 0 {
			return fallback
		}
		return c.Int(name)
	}

	return &config.Settings{
		GenesisLedger:            str("genesis-ledger", layered.GenesisLedger),
		BlockStartupDir:          str("block-startup-dir", layered.BlockStartupDir),
		BlockWatchDir:            str("block-watch-dir", layered.BlockWatchDir),
		LedgerStartupDir:         str("ledger-startup-dir", layered.LedgerStartupDir),
		LedgerWatchDir:           str("ledger-watch-dir", layered.LedgerWatchDir),
		DatabaseDir:              str("database-dir", layered.DatabaseDir),
		LogDir:                   str("log-dir", layered.LogDir),
		LogLevel:                 str("log-level", layered.LogLevel),
		CanonicalThreshold:       num("canonical-threshold", layered.CanonicalThreshold),
		CanonicalUpdateThreshold: num("canonical-update-threshold", layered.CanonicalUpdateThreshold),
		WebHostname:              str("web-hostname", layered.WebHostname),
		WebPort:                  num("web-port", layered.WebPort),
	}
}

func buildIndexer(c *cli.Context) (*indexer.Indexer, *store.Store, error) {
	settings := settingsFromFlags(c)
	if err := settings.Validate(); err != nil {
		return nil, nil, err
	}

	log := util.NewLogger("indexer", settings.LogLevel)

	st, err := store.Open(settings.DatabaseDir, log)
	if err != nil {
		return nil, nil, err
	}

	if err := settings.Dump(settings.DatabaseDir); err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	if settings.GenesisLedger != "" {
		accounts, err := config.LoadGenesisLedger(settings.GenesisLedger)
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		if err := st.SeedGenesisLedger(accounts); err != nil {
			_ = st.Close()
			return nil, nil, err
		}
	}

	genesis := &model.Block{StateHash: model.MainnetGenesisHash, BlockchainLength: 0}
	idx := indexer.New(settings, st, log, metrics.New(prometheus.DefaultRegisterer), genesis)
	return idx, st, nil
}

func runServer(c *cli.Context) error {
	idx, st, err := buildIndexer(c)
	if err != nil {
		return err
	}
	defer st.Close()

	settings := settingsFromFlags(c)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	addr := fmt.Sprintf("%s:%d", settings.WebHostname, settings.WebPort)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewAddressInUseError("web endpoint %s: %v", addr, err)
	}

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	serveErr := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	runErr := idx.Run(ctx)
	stop()
	_ = srv.Close()
	if err := <-serveErr; err != nil {
		fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
	}
	return runErr
}

func runSync(c *cli.Context) error {
	idx, st, err := buildIndexer(c)
	if err != nil {
		return err
	}
	defer st.Close()

	settings := settingsFromFlags(c)
	if settings.BlockStartupDir == "" {
		return errors.NewConfigurationError("sync requires block-startup-dir")
	}
	return idx.ScanStartupDir(settings.BlockStartupDir)
}

func runReplay(c *cli.Context) error {
	settings := settingsFromFlags(c)
	if err := os.RemoveAll(settings.DatabaseDir); err != nil {
		return errors.Wrap(errors.ErrStorage, err, "clear database dir %s for replay", settings.DatabaseDir)
	}
	return runSync(c)
}
