package cli

import (
	"github.com/spf13/cobra"

	"github.com/constracktor/concretor/pkg/cache"
)

func newCacheCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the plan cache",
	}
	cmd.PersistentFlags().StringVar(&dir, "cache-dir", defaultCacheDir(), "plan cache directory")

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Remove all cached plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cache.NewFileCache(dir)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.(*cache.FileCache).Purge(); err != nil {
				return err
			}
			loggerFromContext(cmd.Context()).Info("plan cache purged", "dir", dir)
			return nil
		},
	}

	cmd.AddCommand(purge)
	return cmd
}
