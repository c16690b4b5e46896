package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franckalain/cropguard/internal/apperrors"
	"github.com/franckalain/cropguard/internal/catalog"
	"github.com/franckalain/cropguard/internal/projector"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [label]",
		Short: "List known diseases or print the guidance for one",
		Example: `  cropguard catalog
  cropguard catalog "Powdery Mildew"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.Default()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				for _, label := range cat.Labels() {
					fmt.Fprintln(out, label)
				}
				return nil
			}

			entry, ok := cat.Lookup(args[0])
			if !ok {
				return apperrors.ErrUnknownDisease.WithContext("disease", args[0])
			}
			printView(out, projector.View{
				Disease:    args[0],
				Treatments: entry.Treatments,
				Tips:       entry.Tips,
				Schedule:   entry.Schedule,
			})
			return nil
		},
	}
}
