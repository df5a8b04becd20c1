// cmd/labctl/cmd/exchange.go
package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"instrument-service/internal/controller"
)

var queryCmd = &cobra.Command{
	Use:   "query <command>",
	Short: "Write a command and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(ctx context.Context, c *controller.GenericSerialController) error {
			resp, err := c.Query(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printResponse(cmd, resp)
			return nil
		})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <command>",
	Short: "Write a command without reading",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(ctx context.Context, c *controller.GenericSerialController) error {
			return c.Write(ctx, strings.Join(args, " "))
		})
	},
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Print whatever the instrument has sent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(ctx context.Context, c *controller.GenericSerialController) error {
			resp, err := c.ReadLines(ctx, true)
			if err != nil {
				return err
			}
			printResponse(cmd, resp)
			return nil
		})
	},
}

var idnCmd = &cobra.Command{
	Use:   "idn",
	Short: "Ask the instrument for its identification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(ctx context.Context, c *controller.GenericSerialController) error {
			resp, err := c.Idn(ctx)
			if err != nil {
				return err
			}
			printResponse(cmd, resp)
			return nil
		})
	},
}
