// internal/instrument/base.go
package instrument

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/units"
	"instrument-service/pkg/driver"
)

var (
	// ErrNoResponse is returned when a query expected an answer and got none
	ErrNoResponse = errors.New("no response from instrument")

	// ErrRejected is returned when the instrument refused a command
	ErrRejected = errors.New("command rejected by instrument")

	// ErrUnexpectedResponse is returned when an answer cannot be interpreted
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Base is the instrument layer shared by all kinds: it owns a controller
// and the unit converter
type Base struct {
	name       string
	kind       string
	controller driver.Controller
	converter  *units.Converter
	logger     *zap.Logger
}

// NewBase creates the shared instrument layer
func NewBase(name, kind string, controller driver.Controller, converter *units.Converter, logger *zap.Logger) *Base {
	return &Base{
		name:       name,
		kind:       kind,
		controller: controller,
		converter:  converter,
		logger:     logger.With(zap.String("instrument", name), zap.String("kind", kind)),
	}
}

// Initialize opens the connection to the device
func (b *Base) Initialize(ctx context.Context) error {
	b.logger.Info("Opening connection to device")
	return b.controller.Initialize(ctx)
}

// Finalize closes the connection to the device
func (b *Base) Finalize() error {
	b.logger.Info("Closing connection to device")
	return b.controller.Finalize()
}

// IsInitialized returns whether the controller link is open
func (b *Base) IsInitialized() bool {
	return b.controller.IsInitialized()
}

// Name returns the configured instrument name
func (b *Base) Name() string {
	return b.name
}

// Kind returns the registry key the instrument was built from
func (b *Base) Kind() string {
	return b.kind
}

// Controller returns the underlying controller
func (b *Base) Controller() driver.Controller {
	return b.controller
}

// Capabilities returns the controller-level capabilities
func (b *Base) Capabilities() []model.Capability {
	return driver.CapabilitiesOf(b.controller)
}

// Idn returns the first identification line
func (b *Base) Idn(ctx context.Context) (string, error) {
	b.logger.Debug("Ask IDN to device")
	resp, err := b.controller.Idn(ctx)
	if err != nil {
		return "", err
	}
	if len(resp.Lines) == 0 {
		return "", ErrNoResponse
	}
	return resp.First(), nil
}

// queryLine sends command and returns the first answer line
func (b *Base) queryLine(ctx context.Context, command string) (string, error) {
	resp, err := b.controller.Query(ctx, command)
	if err != nil {
		return "", err
	}
	if len(resp.Lines) == 0 {
		return "", fmt.Errorf("%s: %w", command, ErrNoResponse)
	}
	return strings.TrimSpace(resp.First()), nil
}

// queryDecimal sends command and parses the answer as a number
func (b *Base) queryDecimal(ctx context.Context, command string) (decimal.Decimal, error) {
	line, err := b.queryLine(ctx, command)
	if err != nil {
		return decimal.Zero, err
	}
	value, err := decimal.NewFromString(line)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w: %q", command, ErrUnexpectedResponse, line)
	}
	return value, nil
}

// command sends a setter and checks the acknowledgement
func (b *Base) command(ctx context.Context, command, ack string) error {
	line, err := b.queryLine(ctx, command)
	if err != nil {
		return err
	}
	if !strings.EqualFold(line, ack) {
		return fmt.Errorf("%s: %w: %q", command, ErrRejected, line)
	}
	return nil
}
