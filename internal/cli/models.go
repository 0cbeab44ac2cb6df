// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/koharyou1215/multi-chat/internal/model"
	"github.com/koharyou1215/multi-chat/internal/util"
)

func modelsCmd(g *globalFlags) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog, or the provider's models with --remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !remote {
				if g.jsonOutput {
					return writeJSON(out, "models", model.All())
				}
				printCatalog(out)
				return nil
			}
			return withApp(cmd, g, OpenOptions{SetupLogging: true, Ephemeral: true}, func(ctx context.Context, app *App) error {
				if err := app.Gate.Check(); err != nil {
					return err
				}
				models, err := app.Client.ListModels(ctx)
				if err != nil {
					return err
				}
				if g.jsonOutput {
					return writeJSON(out, "models", models)
				}
				for _, m := range models {
					fmt.Fprintf(out, "%s %s\n", util.PadRight(m.ID, 48), color.HiBlackString(util.TruncateWidth(m.Name, 40)))
				}
				fmt.Fprintf(out, "\n%d models\n", len(models))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "query the provider instead of the local catalog")
	return cmd
}

// printCatalog prints the catalog grouped by provider family.
func printCatalog(out io.Writer) {
	for _, grp := range model.GroupedByProvider() {
		fmt.Fprintln(out, SectionStyle.Render(grp.Name))
		for _, m := range grp.Models {
			marker := "  "
			if m.ID == model.DefaultModelID {
				marker = color.GreenString("* ")
			}
			fmt.Fprintf(out, "%s%s %s %s\n",
				marker,
				util.PadRight(m.ID, 44),
				util.PadRight(m.Name, 24),
				color.HiBlackString("%s ctx, %s", m.ContextString(), m.CostString()))
		}
	}
	fmt.Fprintln(out, DimStyle.Render("* default model"))
}
