package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/importer"
	"github.com/sells-group/crm-import/internal/model"
)

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Manage the city registry",
	Long:  "Commands for listing and adding cities that import rows are validated against.",
}

// -- cities list --

var citiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known cities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cities"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stored, err := st.Cities(ctx)
		if err != nil {
			return eris.Wrap(err, "cities list")
		}
		seed, err := seedCities(cfg)
		if err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")
		cities := stored
		if all {
			cities = importer.Gazetteer(stored, seed).Cities()
		}
		if len(cities) == 0 {
			fmt.Fprintln(os.Stderr, "No cities stored. Use --all to include the built-in list.")
			return nil
		}
		formatCities(cmd.OutOrStdout(), cities)
		return nil
	},
}

// -- cities add --

var citiesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a city",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cities"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		code, _ := cmd.Flags().GetString("code")
		c := model.City{Name: args[0], Code: code}

		// Codes must also stay unique against the built-in list.
		stored, err := st.Cities(ctx)
		if err != nil {
			return eris.Wrap(err, "cities add")
		}
		seed, err := seedCities(cfg)
		if err != nil {
			return err
		}
		if err := importer.Gazetteer(stored, seed).CheckAdd(c); err != nil {
			return err
		}

		if err := st.AddCity(ctx, c); err != nil {
			return eris.Wrapf(err, "cities add %s", c.Name)
		}
		zap.L().Info("city added", zap.String("name", c.Name), zap.String("code", c.Code))
		return nil
	},
}

func init() {
	citiesListCmd.Flags().Bool("all", false, "include seed/built-in cities")
	citiesAddCmd.Flags().String("code", "", "optional unique city code")

	citiesCmd.AddCommand(citiesListCmd)
	citiesCmd.AddCommand(citiesAddCmd)
	rootCmd.AddCommand(citiesCmd)
}
