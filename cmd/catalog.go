package cmd

import (
	"fmt"

	"github.com/onrbuild/onrbuild/internal/catalog"
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	var (
		opts        catalog.Options
		fromParquet string
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Index front and back image trees into dist/cards.json",
		Long: `Walks the front and back image trees (laid out as side/faction/type/...),
pairs files that share a path and stem, and writes the index to
<dist>/cards.json. Both trees are copied into the dist directory so the
catalog can be served as-is. Dot-prefixed files and directories are ignored.`,
		Example: `  # Index ./front and ./back into ./dist
  onrbuild catalog

  # Index a generate run's output and also export parquet
  onrbuild catalog --front=output --back=originals --parquet=cards.parquet

  # Rebuild dist/cards.json from that export
  onrbuild catalog --from-parquet=cards.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromParquet != "" {
				res, err := catalog.Restore(fromParquet, opts.DistDir)
				if err != nil {
					return err
				}
				fmt.Printf("Restored %d card records to %s from %s\n", len(res.Entries), res.ManifestPath, fromParquet)
				return nil
			}

			res, err := catalog.Build(opts)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d card records to %s (%d files copied)\n", len(res.Entries), res.ManifestPath, res.Copied)
			if opts.ParquetPath != "" {
				fmt.Printf("Parquet catalog saved to %s\n", opts.ParquetPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.FrontDir, "front", "front", "Directory of card fronts")
	cmd.Flags().StringVar(&opts.BackDir, "back", "back", "Directory of card backs")
	cmd.Flags().StringVar(&opts.DistDir, "dist", "dist", "Output directory")
	cmd.Flags().StringVar(&opts.ParquetPath, "parquet", "", "Also write the index as parquet to this path")
	cmd.Flags().StringVar(&fromParquet, "from-parquet", "", "Rewrite <dist>/cards.json from a parquet export instead of walking the trees")

	return cmd
}
