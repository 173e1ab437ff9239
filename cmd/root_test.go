package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"validate", "cities", "imports", "migrate", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "crm-import", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestValidateCommand_Flags(t *testing.T) {
	for _, name := range []string{"entity", "resolve", "report", "format", "output", "commit", "rows"} {
		assert.NotNil(t, validateCmd.Flags().Lookup(name), "validate should have --%s", name)
	}
	assert.Equal(t, "e", validateCmd.Flags().Lookup("entity").Shorthand)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCitiesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range citiesCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["add"])
	assert.NotNil(t, citiesAddCmd.Flags().Lookup("code"))
}

func TestImportsCommand_Flags(t *testing.T) {
	flag := importsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "store-driver", "database-url"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "root should have --%s", name)
	}
	assert.NotNil(t, validateCmd.InheritedFlags().Lookup("database-url"))
}

func TestApplyFlagOverrides(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want config.Config
	}{
		{
			name: "no flags keeps config",
			want: config.Config{
				Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: "crm-import.db"},
				Log:   config.LogConfig{Level: "info"},
			},
		},
		{
			name: "explicit flags win",
			args: []string{"--log-level", "debug", "--store-driver", "postgres", "--database-url", "postgres://localhost/crm"},
			want: config.Config{
				Store: config.StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/crm"},
				Log:   config.LogConfig{Level: "debug"},
			},
		},
		{
			name: "empty value still overrides",
			args: []string{"--database-url="},
			want: config.Config{
				Store: config.StoreConfig{Driver: "sqlite"},
				Log:   config.LogConfig{Level: "info"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "test"}
			addGlobalFlags(cmd)
			require.NoError(t, cmd.ParseFlags(tt.args))

			c := &config.Config{
				Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: "crm-import.db"},
				Log:   config.LogConfig{Level: "info"},
			}
			applyFlagOverrides(cmd, c)
			assert.Equal(t, tt.want, *c)
		})
	}
}
