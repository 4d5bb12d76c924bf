package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check upstream credentials by fetching a token and the now-showing list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, tokens, err := newScopeClient(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			token, err := tokens.Token(ctx)
			if err != nil {
				return err
			}
			movies, err := client.NowShowing(ctx, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok now_showing=%d\n", len(movies))
			return nil
		},
	}
}
