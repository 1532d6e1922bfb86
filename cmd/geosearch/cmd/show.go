package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	geoerrors "github.com/raghaviCJanaswamy/GEOSearch/internal/errors"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/output"
)

func newShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "show <accession>",
		Short:   "Show a stored GEO series and its MeSH terms",
		Example: `  geosearch show GSE10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid format %q: use text or json", format)
			}
			ctx := cmd.Context()
			acc := strings.ToUpper(strings.TrimSpace(args[0]))

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.store.GetSeries(ctx, []string{acc})
			if err != nil {
				return geoerrors.DatabaseError("failed to load series", err)
			}
			s, ok := found[acc]
			if !ok {
				return geoerrors.NotFound("series", acc)
			}
			assocs, err := a.store.GetAssociations(ctx, []string{acc}, nil)
			if err != nil {
				return geoerrors.DatabaseError("failed to load term associations", err)
			}

			out := output.NewAuto(cmd.OutOrStdout())
			if format == "json" {
				return out.JSON(struct {
					Series any `json:"series"`
					Terms  any `json:"mesh_terms"`
				}{s, assocs})
			}
			out.Series(s, assocs, a.terms.Current())
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}
