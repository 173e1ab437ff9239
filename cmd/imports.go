package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "List committed imports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("imports"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListImports(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "imports list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No imports found.")
			return nil
		}

		formatImportsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	importsCmd.Flags().Int("limit", 50, "max number of imports to display")
	rootCmd.AddCommand(importsCmd)
}
