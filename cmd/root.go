package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crm-import",
	Short: "Validate and import CRM spreadsheets",
	Long: `Maps Arabic/English CSV and XLSX headers to CRM fields, normalizes and
validates every row against the CRM reference data, and commits the approved rows.

Settings come from ./config.yaml (or --config), CRMIMPORT_* environment
variables, and the global flags below, in increasing precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.LoadFile(path)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyFlagOverrides(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("store", cfg.Store.Driver),
		)
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

// addGlobalFlags registers the flags every subcommand inherits.
func addGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (default ./config.yaml)")
	pf.String("log-level", "", "override log.level (debug, info, warn, error)")
	pf.String("store-driver", "", "override store.driver (sqlite or postgres)")
	pf.String("database-url", "", "override store.database_url")
}

// applyFlagOverrides copies explicitly set global flags onto c.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	set := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	set("log-level", &c.Log.Level)
	set("store-driver", &c.Store.Driver)
	set("database-url", &c.Store.DatabaseURL)
}

func init() {
	addGlobalFlags(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
