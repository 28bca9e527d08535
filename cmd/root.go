package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onrbuild",
		Short: "Batch card image generator driven through a browser card editor",
		Long: `onrbuild walks a list of card editor URLs, patches each card's text,
builds the card PNG in the editor and saves it together with the card's
original art, then writes a cards.json manifest.

It also indexes generated trees into a browsable catalog and serves it locally.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}
