// Package config implements the core's configuration layer, grounded
// on the teacher's gocore.Config() idiom (flags → env → app.conf file).
// Load reads the environment/app.conf layer directly; cmd/indexer
// layers its urfave/cli flags on top via settingsFromFlags, so an
// explicit CLI flag always wins but env/app.conf can supply any
// argument the operator didn't pass on the command line.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ordishs/gocore"

	"github.com/blockforge/mina-indexer-core/errors"
)

// Settings is the fully-populated configuration for one run of the
// indexer, covering every flag spec.md §6.5 lists.
type Settings struct {
	GenesisLedger    string `json:"genesis_ledger"`
	BlockStartupDir  string `json:"block_startup_dir"`
	BlockWatchDir    string `json:"block_watch_dir"`
	LedgerStartupDir string `json:"ledger_startup_dir"`
	LedgerWatchDir   string `json:"ledger_watch_dir"`
	DatabaseDir      string `json:"database_dir"`
	LogDir           string `json:"log_dir"`
	LogLevel         string `json:"log_level"`

	LedgerCadence            int `json:"ledger_cadence"`
	ReportingFreq            int `json:"reporting_freq"`
	PruneInterval            int `json:"prune_interval"`
	CanonicalThreshold       int `json:"canonical_threshold"`
	CanonicalUpdateThreshold int `json:"canonical_update_threshold"`

	WebHostname string `json:"web_hostname"`
	WebPort     int    `json:"web_port"`
}

// Load reads every setting from gocore.Config(), which itself layers
// command-line flags, environment variables, and a gocore.app.conf
// file (the teacher's pattern throughout util/logger.go and main.go).
func Load() (*Settings, error) {
	c := gocore.Config()

	genesisLedger, _ := c.Get("genesis_ledger", "")
	blockStartupDir, _ := c.Get("block_startup_dir", "")
	blockWatchDir, _ := c.Get("block_watch_dir", "")
	ledgerStartupDir, _ := c.Get("ledger_startup_dir", "")
	ledgerWatchDir, _ := c.Get("ledger_watch_dir", "")
	databaseDir, _ := c.Get("database_dir", "./database")
	logDir, _ := c.Get("log_dir", "./logs")
	logLevel, _ := c.Get("log_level", "INFO")
	webHostname, _ := c.Get("web_hostname", "127.0.0.1")

	ledgerCadence, _ := c.GetInt("ledger_cadence", 1000)
	reportingFreq, _ := c.GetInt("reporting_freq", 100)
	pruneInterval, _ := c.GetInt("prune_interval", 10)
	canonicalThreshold, _ := c.GetInt("canonical_threshold", 10)
	canonicalUpdateThreshold, _ := c.GetInt("canonical_update_threshold", 2)
	webPort, _ := c.GetInt("web_port", 3086)

	s := &Settings{
		GenesisLedger:    genesisLedger,
		BlockStartupDir:  blockStartupDir,
		BlockWatchDir:    blockWatchDir,
		LedgerStartupDir: ledgerStartupDir,
		LedgerWatchDir:   ledgerWatchDir,
		DatabaseDir:      databaseDir,
		LogDir:           logDir,
		LogLevel:         logLevel,

		LedgerCadence:            ledgerCadence,
		ReportingFreq:            reportingFreq,
		PruneInterval:            pruneInterval,
		CanonicalThreshold:       canonicalThreshold,
		CanonicalUpdateThreshold: canonicalUpdateThreshold,

		WebHostname: webHostname,
		WebPort:     webPort,
	}

	return s, s.Validate()
}

// Validate checks that every required directory is present, returning
// an ierrors.Error coded ErrConfiguration otherwise.
func (s *Settings) Validate() error {
	if s.GenesisLedger == "" {
		return errors.NewConfigurationError("genesis-ledger is required")
	}
	if s.DatabaseDir == "" {
		return errors.NewConfigurationError("database-dir is required")
	}
	required := map[string]string{
		"block-watch-dir":  s.BlockWatchDir,
		"ledger-watch-dir": s.LedgerWatchDir,
	}
	for flag, val := range required {
		if val == "" {
			return errors.NewConfigurationError("%s is required", flag)
		}
	}
	return nil
}

// Dump writes config.json alongside the database directory, capturing
// the startup invocation's effective arguments (spec.md §6.3).
func (s *Settings) Dump(dir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrConfiguration, err, "marshal settings")
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrConfiguration, err, "write %s", path)
	}
	return nil
}
