// slangdict runs the slang dictionary web app and its maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/maxhully/slangdict"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Set up by rootCmd before any subcommand runs.
	cfg    *slangdict.Config
	logger *zap.Logger

	configPath string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "slangdict",
	Short: "A crowd-sourced slang dictionary",
	Long: `slangdict is a community slang dictionary. Users add definitions, vote on
them and browse by letter or tag. Known slang in any text on the site links to
its definition, and the brain-rot translator turns plain text into slang.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = slangdict.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = slangdict.NewLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "slangdict.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Filename of the SQLite database (overrides the config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(serveCmd, seedCmd, brainrotCmd, linkCmd, backfillAvatarsCmd, faceCmd)
}

func openDB() (*slangdict.DB, error) {
	db, err := slangdict.NewDB(cfg.DBPath, cfg.DBPoolSize)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened database", zap.String("path", cfg.DBPath), zap.Int("pool_size", cfg.DBPoolSize))
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
