// internal/controller/generic.go
package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/protocol"
	"instrument-service/internal/timeutil"
	"instrument-service/pkg/driver"
)

// IdentifyCommand is the SCPI identification query
const IdentifyCommand = "*IDN?"

// GenericSerialController drives a line-oriented instrument over one link.
// It has no internal locking: callers serialise exchanges.
type GenericSerialController struct {
	settings       *Settings
	connectionType model.ConnectionType
	codec          *Codec
	terminators    [][]byte
	port           protocol.Connection
	clock          timeutil.Clock
	responder      protocol.Responder
	logger         *zap.Logger
	initialized    bool
}

// Option configures a GenericSerialController
type Option func(*GenericSerialController)

// WithClock replaces the real clock, typically with a fake one in tests
func WithClock(clock timeutil.Clock) Option {
	return func(c *GenericSerialController) {
		c.clock = clock
	}
}

// WithResponder sets how the simulated device answers in dummy mode
func WithResponder(responder protocol.Responder) Option {
	return func(c *GenericSerialController) {
		c.responder = responder
	}
}

// WithConnection uses the given link instead of creating one from settings
func WithConnection(conn protocol.Connection) Option {
	return func(c *GenericSerialController) {
		c.port = conn
	}
}

// NewGenericSerialController creates an uninitialized controller
func NewGenericSerialController(settings *Settings, connectionType model.ConnectionType, logger *zap.Logger, opts ...Option) (*GenericSerialController, error) {
	if settings == nil {
		settings = DefaultSettings()
	}

	codec, err := NewCodec(settings.Encoding)
	if err != nil {
		return nil, err
	}
	if connectionType == "" {
		connectionType = model.ConnectionTypeSerial
	}

	c := &GenericSerialController{
		settings:       settings,
		connectionType: connectionType,
		codec:          codec,
		terminators:    [][]byte{codec.MustEncode("\n"), codec.MustEncode("\r")},
		clock:          timeutil.RealClock{},
		logger: logger.With(
			zap.String("controller", settings.Name),
			zap.String("port", settings.Port),
		),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("Generic serial controller created",
		zap.Bool("dummy", settings.Dummy),
		zap.String("encoding", codec.Name()),
	)
	return c, nil
}

// Initialize opens the link. It is a no-op when already initialized.
func (c *GenericSerialController) Initialize(ctx context.Context) error {
	if c.initialized {
		return nil
	}

	if c.port == nil {
		conn, err := c.createConnection()
		if err != nil {
			return err
		}
		c.port = conn
	}

	if err := c.port.Open(ctx); err != nil {
		return fmt.Errorf("failed to initialize %s: %w", c.settings.Name, err)
	}

	c.initialized = true
	c.logger.Info("Initialized connection",
		zap.String("link", c.port.Name()),
		zap.String("framing", c.port.Framing().String()),
	)
	return nil
}

// createConnection builds a dummy or real link from the settings
func (c *GenericSerialController) createConnection() (protocol.Connection, error) {
	if c.settings.Dummy {
		name := c.settings.Port
		if name == "" {
			name = "dummy"
		}
		return protocol.NewDummyPort(name, c.settings.Framing, c.responder, c.settings.ReadTermination), nil
	}

	if err := c.settings.Validate(); err != nil {
		return nil, err
	}
	if err := protocol.ValidateConfig(c.connectionType, c.settings.Raw); err != nil {
		return nil, err
	}
	return protocol.CreatePort(c.connectionType, c.settings.Raw, c.logger)
}

// Finalize closes the link. Finalizing before initializing only logs a warning.
func (c *GenericSerialController) Finalize() error {
	defer func() { c.initialized = false }()

	if !c.initialized {
		c.logger.Warn("Finalizing before initializing connection")
		return nil
	}

	if err := c.port.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", c.settings.Name, err)
	}

	c.logger.Info("Connection closed")
	return nil
}

// IsInitialized returns whether the link is open
func (c *GenericSerialController) IsInitialized() bool {
	return c.initialized
}

// Write sends message followed by the write terminator
func (c *GenericSerialController) Write(ctx context.Context, message string) error {
	if !c.initialized {
		return fmt.Errorf("write %q: %w", message, ErrNotInitialized)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := c.codec.Encode(message + c.settings.WriteTermination)
	if err != nil {
		return err
	}

	c.logger.Debug("Sending to device", zap.String("message", message))
	n, err := c.port.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrIncompleteWrite, n, len(data))
	}
	return nil
}

// ReadBuffer collects the raw response. With waitForTermination unset it
// returns after the first poll.
func (c *GenericSerialController) ReadBuffer(ctx context.Context, waitForTermination bool) (*driver.Response, error) {
	if !c.initialized {
		return nil, fmt.Errorf("read: %w", ErrNotInitialized)
	}

	resp, err := ReadBuffer(ctx, c.port, c.clock, ReadOptions{
		Timeout:            c.settings.ReadTimeout,
		WaitForTermination: waitForTermination,
		Terminators:        c.terminators,
	})

	c.logger.Debug("Bytes received",
		zap.Int("bytes", len(resp.Raw)),
		zap.Int("polls", resp.Polls),
		zap.Int("extensions", resp.Extensions),
		zap.Bool("terminated", resp.Terminated),
	)
	return resp, err
}

// ReadLines reads a terminated response and splits it into lines
func (c *GenericSerialController) ReadLines(ctx context.Context, strip bool) (*driver.Response, error) {
	resp, err := c.ReadBuffer(ctx, true)
	if resp == nil {
		return nil, err
	}

	text, decodeErr := c.codec.Decode(resp.Raw)
	if decodeErr != nil && err == nil {
		err = decodeErr
	}
	resp.Lines = DecodeLines(text, strip)
	return resp, err
}

// Query clears both buffers, sends message and reads the answer lines
func (c *GenericSerialController) Query(ctx context.Context, message string) (*driver.Response, error) {
	if !c.initialized {
		return nil, fmt.Errorf("query %q: %w", message, ErrNotInitialized)
	}

	if err := c.clearBuffers(); err != nil {
		return nil, err
	}
	if err := c.Write(ctx, message); err != nil {
		return nil, err
	}

	resp, err := c.ReadLines(ctx, true)
	if resp != nil {
		c.logger.Debug("Received message",
			zap.String("message", message),
			zap.Strings("lines", resp.Lines),
		)
	}
	return resp, err
}

// Exchange clears both buffers, sends message and returns the raw answer
// without splitting it into lines
func (c *GenericSerialController) Exchange(ctx context.Context, message string, waitForTermination bool) (*driver.Response, error) {
	if !c.initialized {
		return nil, fmt.Errorf("exchange %q: %w", message, ErrNotInitialized)
	}

	if err := c.clearBuffers(); err != nil {
		return nil, err
	}
	if err := c.Write(ctx, message); err != nil {
		return nil, err
	}
	return c.ReadBuffer(ctx, waitForTermination)
}

// Idn asks the device to identify itself
func (c *GenericSerialController) Idn(ctx context.Context) (*driver.Response, error) {
	c.logger.Debug("Ask *IDN? to device")
	return c.Query(ctx, IdentifyCommand)
}

// Ping checks the underlying link
func (c *GenericSerialController) Ping(ctx context.Context) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	return c.port.Ping(ctx)
}

// Info describes the link
func (c *GenericSerialController) Info() driver.ControllerInfo {
	info := driver.ControllerInfo{
		Name:             c.settings.Name,
		Port:             c.settings.Port,
		ConnectionType:   c.connectionType,
		Framing:          c.settings.Framing.String(),
		Encoding:         c.codec.Name(),
		WriteTermination: c.settings.WriteTermination,
		ReadTermination:  c.settings.ReadTermination,
		ReadTimeout:      c.settings.ReadTimeout,
		Dummy:            c.settings.Dummy,
	}
	if c.port != nil {
		info.Port = c.port.Name()
		info.Framing = c.port.Framing().String()
	}
	return info
}

// Stats returns the link statistics
func (c *GenericSerialController) Stats() protocol.ProtocolStats {
	if c.port == nil {
		return protocol.ProtocolStats{}
	}
	return c.port.Stats()
}

// Settings returns the parsed settings
func (c *GenericSerialController) Settings() *Settings {
	return c.settings
}

// clearBuffers discards stale bytes from a previous unanswered exchange
func (c *GenericSerialController) clearBuffers() error {
	if err := c.port.ResetOutputBuffer(); err != nil {
		return err
	}
	return c.port.ResetInputBuffer()
}

var _ driver.Controller = (*GenericSerialController)(nil)
