package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/cache"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/client"
)

func newLookupCmd(a *app) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "lookup <id>",
		Short: "Fetch a single brewery from the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(a.cfg.Client())
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}
			defer c.Close()
			if a.redis != nil && a.cfg.Redis.CacheLookups && !noCache {
				c.SetCache(cache.NewManager(a.redis, time.Duration(a.cfg.Redis.CacheRetain)))
			}

			rec, err := c.GetBrewery(cmd.Context(), args[0])
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("brewery %q not found", args[0])
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the Redis lookup cache")
	return cmd
}
