package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/claytondukes/dibo-gems/internal/domain"
)

func newKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key <stars> <name>",
		Short: "Print the item key and file name for a gem",
		Example: `  gems-api key 2 "Berserker's Eye"
  gems-api key 5star Blood-Soaked Jade`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := domain.ParseTier(args[0])
			if err != nil {
				return err
			}
			name := strings.Join(args[1:], " ")
			key, err := domain.NewItemKey(tier, name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "item_key: %s\n", key)
			fmt.Fprintf(out, "file:     %s/%s\n", tier.Dir(), domain.FileName(name))
			return nil
		},
	}
}
