// cmd/labctl/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"instrument-service/internal/controller"
	"instrument-service/internal/model"
	"instrument-service/pkg/driver"
)

var (
	portFlag        string
	baudFlag        int
	connTypeFlag    string
	readTimeoutFlag time.Duration
	writeTermFlag   string
	readTermFlag    string
	encodingFlag    string
	dummyFlag       bool
	verboseFlag     bool
	statsFlag       bool
)

var rootCmd = &cobra.Command{
	Use:   "labctl",
	Short: "Talk to line-oriented lab instruments",
	Long: `Send commands to serial and TCP instruments and read their answers with
the adaptive line reader used by instrument-service.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&portFlag, "port", "p", "", "Serial port or host:port")
	flags.IntVarP(&baudFlag, "baud", "b", 9600, "Baud rate")
	flags.StringVarP(&connTypeFlag, "type", "t", string(model.ConnectionTypeSerial), "Connection type (serial, tcp)")
	flags.DurationVar(&readTimeoutFlag, "read-timeout", controller.DefaultReadTimeout, "Initial read deadline")
	flags.StringVar(&writeTermFlag, "write-termination", `\n`, "Appended to every command")
	flags.StringVar(&readTermFlag, "read-termination", `\n`, "Marks the end of an answer")
	flags.StringVar(&encodingFlag, "encoding", controller.DefaultEncoding, "Text encoding")
	flags.BoolVar(&dummyFlag, "dummy", false, "Use the in-memory dummy port")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Log link activity to stderr")
	flags.BoolVar(&statsFlag, "stats", false, "Print read statistics after each answer")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(idnCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(monitorCmd)
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func newLogger() *zap.Logger {
	if !verboseFlag {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openController builds a controller from the flags and opens its link
func openController(ctx context.Context) (*controller.GenericSerialController, error) {
	settings, err := controller.ParseSettings(map[string]interface{}{
		"name":              "labctl",
		"port":              portFlag,
		"baudrate":          baudFlag,
		"read_timeout":      readTimeoutFlag.String(),
		"write_termination": writeTermFlag,
		"read_termination":  readTermFlag,
		"encoding":          encodingFlag,
		"dummy":             dummyFlag,
	})
	if err != nil {
		return nil, err
	}

	connType := model.ConnectionType(strings.ToLower(connTypeFlag))
	c, err := controller.NewGenericSerialController(settings, connType, newLogger())
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// withController opens a controller, runs fn and closes the link
func withController(cmd *cobra.Command, fn func(ctx context.Context, c *controller.GenericSerialController) error) error {
	ctx := cmd.Context()
	c, err := openController(ctx)
	if err != nil {
		return err
	}
	defer c.Finalize()

	return fn(ctx, c)
}

func printResponse(cmd *cobra.Command, resp *driver.Response) {
	out := cmd.OutOrStdout()
	for _, line := range resp.Lines {
		fmt.Fprintln(out, line)
	}
	if statsFlag {
		fmt.Fprintf(cmd.ErrOrStderr(), "bytes=%d terminated=%t expired=%t polls=%d extensions=%d elapsed=%s\n",
			resp.ByteCount(), resp.Terminated, resp.Expired, resp.Polls, resp.Extensions, resp.Elapsed)
	}
}
