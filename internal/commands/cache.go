package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the response cache",
	}
	cmd.AddCommand(newCacheClearCommand(global), newCacheResetCommand(global))
	return cmd
}

func newCacheClearCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear KEY...",
		Short: "Delete the named cache entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, global, func(ctx context.Context, rt *session) error {
				c := rt.manager.Cache()
				for _, key := range args {
					if err := c.Delete(ctx, key); err != nil {
						return fmt.Errorf("clear %s: %w", key, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", key)
				}
				return nil
			})
		},
	}
}

func newCacheResetCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove every entry in the configured namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, global, func(ctx context.Context, rt *session) error {
				if err := rt.manager.ResetCache(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset namespace %s\n", rt.config.Cache.Namespace)
				return nil
			})
		},
	}
}
