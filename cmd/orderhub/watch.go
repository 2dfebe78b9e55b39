package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"orderhub/pkg/config"
	"orderhub/pkg/order"
	"orderhub/pkg/order/redis"
)

func watchCmd() *cobra.Command {
	def := config.Default()
	var addr, channel string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print accepted orders published on Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			client := goredis.NewClient(&goredis.Options{Addr: addr})
			defer client.Close()

			out := cmd.OutOrStdout()
			return redis.Watch(ctx, client, channel, func(e order.Event) error {
				_, err := fmt.Fprintln(out, formatEvent(e))
				return err
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "redis-addr", "localhost:6379", "Redis address")
	f.StringVar(&channel, "channel", def.RedisChannel, "pub/sub channel the server publishes on")
	return cmd
}

func formatEvent(e order.Event) string {
	kind := "order"
	if e.Created {
		kind = "new client"
	}
	return fmt.Sprintf("%s %s: %s (%d) %s x%d",
		e.At.Format(time.RFC3339), kind, e.Order.Name, e.Order.BusinessID, e.Order.Item, e.Order.Quantity)
}
