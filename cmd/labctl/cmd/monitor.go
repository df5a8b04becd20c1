// cmd/labctl/cmd/monitor.go
package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"instrument-service/internal/controller"
)

var (
	intervalFlag time.Duration
	countFlag    int
	commandFlag  string
)

func init() {
	monitorCmd.Flags().DurationVarP(&intervalFlag, "interval", "i", time.Second, "Time between reads")
	monitorCmd.Flags().IntVarP(&countFlag, "count", "n", 0, "Stop after n reads (0 runs until interrupted)")
	monitorCmd.Flags().StringVarP(&commandFlag, "command", "c", "", "Query this command each interval instead of reading")
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Read or poll an instrument periodically",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(ctx context.Context, c *controller.GenericSerialController) error {
			ticker := time.NewTicker(intervalFlag)
			defer ticker.Stop()

			for n := 0; countFlag == 0 || n < countFlag; n++ {
				if err := monitorOnce(ctx, cmd, c); err != nil {
					return err
				}

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
			return nil
		})
	},
}

func monitorOnce(ctx context.Context, cmd *cobra.Command, c *controller.GenericSerialController) error {
	if commandFlag != "" {
		resp, err := c.Query(ctx, commandFlag)
		if err != nil {
			return err
		}
		printResponse(cmd, resp)
		return nil
	}

	resp, err := c.ReadLines(ctx, true)
	if err != nil {
		return err
	}
	printResponse(cmd, resp)
	return nil
}
