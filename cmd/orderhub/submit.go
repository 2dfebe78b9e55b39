package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"orderhub/pkg/client"
	"orderhub/pkg/order"
	"orderhub/pkg/protocol"
)

var codeMeaning = map[protocol.Code]string{
	protocol.Accepted:     "order accepted",
	protocol.Invalid:      "missing or invalid fields",
	protocol.NameMismatch: "business id registered under a different name",
	protocol.BadQuantity:  "quantity must be positive",
}

func submitCmd() *cobra.Command {
	var (
		addr    string
		o       order.Order
		item    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit [-]",
		Short: "Send an order to a running server",
		Long: `Send one order built from flags, or pass "-" to send every line read
from standard input as a raw protocol message.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c, err := client.Dial(ctx, addr)
			if err != nil {
				return err
			}
			defer c.Disconnect()

			if len(args) == 1 && args[0] == "-" {
				return submitLines(ctx, c, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			o.Item = order.Item(item)
			code, err := c.Submit(ctx, o)
			if err != nil {
				return err
			}
			printCode(cmd.OutOrStdout(), protocol.Format(o), code)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "localhost:9999", "server address")
	f.StringVar(&o.Name, "name", "", "business name")
	f.IntVar(&o.BusinessID, "id", 0, "5-digit business id")
	f.IntVar(&item, "item", int(order.Sunglasses), "item type: 1 sunglasses, 2 belts, 3 scarves")
	f.IntVar(&o.Quantity, "qty", 1, "quantity")
	f.DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	return cmd
}

func submitLines(ctx context.Context, c *client.Client, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := sc.Text()
		if protocol.IsDisconnect(line) {
			return nil
		}
		code, err := c.SubmitLine(ctx, line)
		if err != nil {
			return err
		}
		printCode(out, line, code)
	}
	return sc.Err()
}

func printCode(w io.Writer, line string, code protocol.Code) {
	fmt.Fprintf(w, "%s -> %s (%s)\n", line, code, codeMeaning[code])
}
