// internal/service/instrument_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/config"
	internalDriver "instrument-service/internal/driver"
	"instrument-service/internal/events"
	"instrument-service/internal/model"
	"instrument-service/internal/repository"
	"instrument-service/internal/units"
	"instrument-service/internal/utils"
	"instrument-service/pkg/driver"
)

var (
	// ErrInstrumentNotFound is returned for a name that is not configured
	ErrInstrumentNotFound = errors.New("instrument not found")

	// ErrCapabilityNotSupported is returned when the instrument kind lacks an operation
	ErrCapabilityNotSupported = errors.New("capability not supported")

	// ErrEmptyCommand is returned for a blank query or write
	ErrEmptyCommand = errors.New("command is required")
)

// operationReadWindows is the smallest operation timeout, in read timeouts
const operationReadWindows = 10

// managedInstrument is one configured instrument. linkMu serialises every
// access to the link; stateMu guards the status fields and the cached link
// description, which readers use instead of touching the controller.
type managedInstrument struct {
	def    model.InstrumentDefinition
	inst   driver.Instrument
	logger *utils.InstrumentLogger

	linkMu sync.Mutex

	stateMu       sync.RWMutex
	info          driver.ControllerInfo
	capabilities  []model.Capability
	connected     bool
	status        model.InstrumentStatus
	lastActivity  *time.Time
	lastError     *string
	lastErrorTime *time.Time
	lastSuccess   *time.Time
	exchangeCount int64
	errorCount    int64
}

// InstrumentService owns the configured instruments
type InstrumentService struct {
	instruments map[string]*managedInstrument
	names       []string
	exchanges   *ExchangeService
	publisher   events.Publisher
	converter   *units.Converter
	config      *config.Config
	logger      *utils.ServiceLogger
}

// NewInstrumentService builds every configured instrument through the registry
func NewInstrumentService(
	cfg *config.Config,
	registry *internalDriver.Registry,
	converter *units.Converter,
	exchanges *ExchangeService,
	publisher events.Publisher,
	logger *zap.Logger,
) (*InstrumentService, error) {
	is := &InstrumentService{
		instruments: make(map[string]*managedInstrument, len(cfg.Instruments)),
		exchanges:   exchanges,
		publisher:   publisher,
		converter:   converter,
		config:      cfg,
		logger:      utils.NewServiceLogger(logger, "instrument-service"),
	}

	for _, def := range cfg.Instruments {
		if _, exists := is.instruments[def.Name]; exists {
			return nil, fmt.Errorf("duplicate instrument name %q", def.Name)
		}

		inst, err := registry.Create(&def)
		if err != nil {
			return nil, err
		}

		is.instruments[def.Name] = &managedInstrument{
			def:          def,
			inst:         inst,
			logger:       utils.NewInstrumentLogger(logger, def.Name, def.Kind, string(def.ConnectionType)),
			info:         inst.Controller().Info(),
			capabilities: inst.Capabilities(),
			status:       model.InstrumentStatusDisconnected,
		}
		is.names = append(is.names, def.Name)
	}
	sort.Strings(is.names)

	is.logger.Info("Instruments configured", zap.Strings("instruments", is.names))
	return is, nil
}

// List returns the runtime view of every instrument
func (is *InstrumentService) List(ctx context.Context) []*model.Instrument {
	list := make([]*model.Instrument, 0, len(is.names))
	for _, name := range is.names {
		list = append(list, is.instruments[name].snapshot())
	}
	return list
}

// Get returns the runtime view of one instrument
func (is *InstrumentService) Get(ctx context.Context, name string) (*model.Instrument, error) {
	mi, err := is.lookup(name)
	if err != nil {
		return nil, err
	}
	return mi.snapshot(), nil
}

// Connect opens the link of an instrument
func (is *InstrumentService) Connect(ctx context.Context, name string) error {
	mi, err := is.lookup(name)
	if err != nil {
		return err
	}

	mi.linkMu.Lock()
	defer mi.linkMu.Unlock()

	if mi.inst.IsInitialized() {
		return nil
	}
	mi.setStatus(model.InstrumentStatusConnecting)

	connectCtx, cancel := is.operationContext(ctx, mi)
	defer cancel()

	err = mi.inst.Initialize(connectCtx)
	mi.refreshLink()
	if err != nil {
		mi.logger.LogConnection("connect", false, err)
		mi.recordFailure(err)
		mi.setStatus(model.InstrumentStatusError)
		is.publish(model.EventInstrumentError, name, model.SeverityError, model.JSONObject{"error": err.Error()})
		return fmt.Errorf("failed to connect %s: %w", name, err)
	}

	mi.setStatus(model.InstrumentStatusConnected)
	mi.touch()
	mi.logger.LogConnection("connect", true, nil)
	is.publish(model.EventInstrumentConnected, name, model.SeverityInfo, model.JSONObject{
		"port": mi.linkInfo().Port,
	})
	return nil
}

// ConnectAll connects every instrument marked auto_connect. Failures are
// logged and returned per instrument.
func (is *InstrumentService) ConnectAll(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, name := range is.names {
		if !is.instruments[name].def.AutoConnect {
			continue
		}
		if err := is.Connect(ctx, name); err != nil {
			failures[name] = err
		}
	}
	return failures
}

// Disconnect closes the link of an instrument
func (is *InstrumentService) Disconnect(ctx context.Context, name string) error {
	mi, err := is.lookup(name)
	if err != nil {
		return err
	}

	mi.linkMu.Lock()
	defer mi.linkMu.Unlock()

	err = mi.inst.Finalize()
	mi.refreshLink()
	mi.setStatus(model.InstrumentStatusDisconnected)
	mi.logger.LogConnection("disconnect", err == nil, err)
	is.publish(model.EventInstrumentDisconnected, name, model.SeverityInfo, nil)

	if err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", name, err)
	}
	return nil
}

// Query writes a command and reads the answer lines
func (is *InstrumentService) Query(ctx context.Context, name, command string) (*model.Exchange, error) {
	if command == "" {
		return nil, ErrEmptyCommand
	}
	return is.exchange(ctx, name, model.ExchangeKindQuery, command, func(ctx context.Context, c driver.Controller) (*driver.Response, error) {
		return c.Query(ctx, command)
	})
}

// Write sends a command without reading
func (is *InstrumentService) Write(ctx context.Context, name, command string) (*model.Exchange, error) {
	if command == "" {
		return nil, ErrEmptyCommand
	}
	return is.exchange(ctx, name, model.ExchangeKindWrite, command, func(ctx context.Context, c driver.Controller) (*driver.Response, error) {
		return nil, c.Write(ctx, command)
	})
}

// Read collects whatever the instrument has sent
func (is *InstrumentService) Read(ctx context.Context, name string) (*model.Exchange, error) {
	return is.exchange(ctx, name, model.ExchangeKindRead, "", func(ctx context.Context, c driver.Controller) (*driver.Response, error) {
		return c.ReadLines(ctx, true)
	})
}

// Idn asks the instrument to identify itself
func (is *InstrumentService) Idn(ctx context.Context, name string) (*model.Exchange, error) {
	return is.exchange(ctx, name, model.ExchangeKindQuery, "*IDN?", func(ctx context.Context, c driver.Controller) (*driver.Response, error) {
		return c.Idn(ctx)
	})
}

// exchange runs fn on the controller under the link lock and records it
func (is *InstrumentService) exchange(ctx context.Context, name string, kind model.ExchangeKind, request string,
	fn func(context.Context, driver.Controller) (*driver.Response, error)) (*model.Exchange, error) {
	mi, err := is.lookup(name)
	if err != nil {
		return nil, err
	}

	mi.linkMu.Lock()
	defer mi.linkMu.Unlock()

	opCtx, cancel := is.operationContext(ctx, mi)
	defer cancel()

	exchange, exLogger := is.exchanges.Begin(name, kind, request)
	resp, err := fn(opCtx, mi.inst.Controller())
	is.exchanges.Complete(ctx, exchange, exLogger, resp, err)

	mi.touch()
	mi.stateMu.Lock()
	mi.exchangeCount++
	mi.stateMu.Unlock()

	if err != nil {
		mi.recordFailure(err)
		return exchange, err
	}
	mi.recordSuccess()
	return exchange, nil
}

// PowerSetpoint reads the power setpoint, converted to unit when given
func (is *InstrumentService) PowerSetpoint(ctx context.Context, name, unit string) (units.Quantity, error) {
	var q units.Quantity
	err := is.withCapability(ctx, name, func(ctx context.Context, inst driver.Instrument) error {
		ps, ok := inst.(driver.PowerSettable)
		if !ok {
			return fmt.Errorf("%s: power setpoint: %w", name, ErrCapabilityNotSupported)
		}
		var err error
		q, err = ps.PowerSetpoint(ctx)
		return err
	})
	if err != nil {
		return units.Quantity{}, err
	}
	return is.convert(q, unit)
}

// SetPowerSetpoint changes the power setpoint
func (is *InstrumentService) SetPowerSetpoint(ctx context.Context, name string, power units.Quantity) error {
	return is.withCapability(ctx, name, func(ctx context.Context, inst driver.Instrument) error {
		ps, ok := inst.(driver.PowerSettable)
		if !ok {
			return fmt.Errorf("%s: power setpoint: %w", name, ErrCapabilityNotSupported)
		}
		return ps.SetPowerSetpoint(ctx, power)
	})
}

// Power reads the measured output power, converted to unit when given
func (is *InstrumentService) Power(ctx context.Context, name, unit string) (units.Quantity, error) {
	var q units.Quantity
	err := is.withCapability(ctx, name, func(ctx context.Context, inst driver.Instrument) error {
		pr, ok := inst.(driver.PowerReadable)
		if !ok {
			return fmt.Errorf("%s: power: %w", name, ErrCapabilityNotSupported)
		}
		var err error
		q, err = pr.Power(ctx)
		return err
	})
	if err != nil {
		return units.Quantity{}, err
	}
	return is.convert(q, unit)
}

// Enable switches the output of an instrument
func (is *InstrumentService) Enable(ctx context.Context, name string, on bool) error {
	return is.withCapability(ctx, name, func(ctx context.Context, inst driver.Instrument) error {
		sw, ok := inst.(driver.Switchable)
		if !ok {
			return fmt.Errorf("%s: switch: %w", name, ErrCapabilityNotSupported)
		}
		return sw.Enable(ctx, on)
	})
}

// Enabled reports whether the output of an instrument is on
func (is *InstrumentService) Enabled(ctx context.Context, name string) (bool, error) {
	var on bool
	err := is.withCapability(ctx, name, func(ctx context.Context, inst driver.Instrument) error {
		sw, ok := inst.(driver.Switchable)
		if !ok {
			return fmt.Errorf("%s: switch: %w", name, ErrCapabilityNotSupported)
		}
		var err error
		on, err = sw.Enabled(ctx)
		return err
	})
	return on, err
}

// Fault reads the fault register of an instrument
func (is *InstrumentService) Fault(ctx context.Context, name string) (driver.FaultStatus, error) {
	var status driver.FaultStatus
	err := is.withCapability(ctx, name, func(ctx context.Context, inst driver.Instrument) error {
		fr, ok := inst.(driver.FaultReporting)
		if !ok {
			return fmt.Errorf("%s: fault: %w", name, ErrCapabilityNotSupported)
		}
		var err error
		status, err = fr.FaultStatus(ctx)
		return err
	})
	if err == nil && status.Active {
		is.publish(model.EventInstrumentError, name, model.SeverityWarning, model.JSONObject{
			"fault_code": status.Code,
			"fault":      status.Description,
		})
	}
	return status, err
}

// ClearFault resets the fault register of an instrument
func (is *InstrumentService) ClearFault(ctx context.Context, name string) error {
	return is.withCapability(ctx, name, func(ctx context.Context, inst driver.Instrument) error {
		fr, ok := inst.(driver.FaultReporting)
		if !ok {
			return fmt.Errorf("%s: fault: %w", name, ErrCapabilityNotSupported)
		}
		return fr.ClearFault(ctx)
	})
}

// InterlockOpen reports whether the interlock of an instrument is open
func (is *InstrumentService) InterlockOpen(ctx context.Context, name string) (bool, error) {
	var open bool
	err := is.withCapability(ctx, name, func(ctx context.Context, inst driver.Instrument) error {
		fr, ok := inst.(driver.FaultReporting)
		if !ok {
			return fmt.Errorf("%s: interlock: %w", name, ErrCapabilityNotSupported)
		}
		var err error
		open, err = fr.InterlockOpen(ctx)
		return err
	})
	return open, err
}

// withCapability runs fn on the instrument under the link lock
func (is *InstrumentService) withCapability(ctx context.Context, name string, fn func(context.Context, driver.Instrument) error) error {
	mi, err := is.lookup(name)
	if err != nil {
		return err
	}

	mi.linkMu.Lock()
	defer mi.linkMu.Unlock()

	opCtx, cancel := is.operationContext(ctx, mi)
	defer cancel()

	err = fn(opCtx, mi.inst)
	if errors.Is(err, ErrCapabilityNotSupported) {
		return err
	}

	mi.touch()
	if err != nil {
		mi.recordFailure(err)
		return err
	}
	mi.recordSuccess()
	return nil
}

// convert expresses q in unit, or returns it unchanged when unit is empty
func (is *InstrumentService) convert(q units.Quantity, unit string) (units.Quantity, error) {
	if unit == "" {
		return q, nil
	}
	return is.converter.Convert(q, unit)
}

// Exchanges returns the recent exchanges of an instrument
func (is *InstrumentService) Exchanges(ctx context.Context, name string, limit int) ([]*model.Exchange, error) {
	if _, err := is.lookup(name); err != nil {
		return nil, err
	}
	return is.exchanges.List(ctx, name, limit)
}

// ExchangeStats summarises the exchanges of an instrument
func (is *InstrumentService) ExchangeStats(ctx context.Context, name string) (*repository.ExchangeStats, error) {
	if _, err := is.lookup(name); err != nil {
		return nil, err
	}
	return is.exchanges.Stats(ctx, name)
}

// Health returns the health metrics of one instrument
func (is *InstrumentService) Health(ctx context.Context, name string) (*driver.HealthMetrics, error) {
	mi, err := is.lookup(name)
	if err != nil {
		return nil, err
	}
	return is.ping(ctx, mi), nil
}

// HealthSummary is the result of one health pass over all instruments
type HealthSummary struct {
	Total        int                              `json:"total"`
	Connected    int                              `json:"connected"`
	Errored      int                              `json:"errored"`
	Disconnected []string                         `json:"disconnected,omitempty"`
	Instruments  map[string]*driver.HealthMetrics `json:"instruments"`
	CheckedAt    time.Time                        `json:"checked_at"`
}

// HealthCheck pings every connected instrument and publishes a summary
func (is *InstrumentService) HealthCheck(ctx context.Context) *HealthSummary {
	summary := &HealthSummary{
		Total:       len(is.names),
		Instruments: make(map[string]*driver.HealthMetrics, len(is.names)),
		CheckedAt:   time.Now(),
	}

	for _, name := range is.names {
		mi := is.instruments[name]
		metrics := is.ping(ctx, mi)
		summary.Instruments[name] = metrics

		switch metrics.Status {
		case string(model.InstrumentStatusConnected):
			summary.Connected++
		case string(model.InstrumentStatusError):
			summary.Errored++
		default:
			summary.Disconnected = append(summary.Disconnected, name)
		}
	}

	is.publish(model.EventHealthUpdate, "", model.SeverityInfo, model.JSONObject{
		"health": model.HealthUpdateEventData{
			Total:        summary.Total,
			Connected:    summary.Connected,
			Errored:      summary.Errored,
			Disconnected: summary.Disconnected,
		},
	})
	return summary
}

// ping checks the link of a connected instrument. It does not wait for an
// exchange in progress: a busy link counts as healthy.
func (is *InstrumentService) ping(ctx context.Context, mi *managedInstrument) *driver.HealthMetrics {
	metrics := mi.metrics()
	if metrics.Status != string(model.InstrumentStatusConnected) {
		return metrics
	}
	if !mi.linkMu.TryLock() {
		return metrics
	}
	defer mi.linkMu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := mi.inst.Controller().Ping(pingCtx)
	metrics.ResponseTime = time.Since(start)

	if err != nil {
		mi.recordFailure(err)
		mi.setStatus(model.InstrumentStatusError)
		is.publish(model.EventInstrumentError, mi.def.Name, model.SeverityError, model.JSONObject{"error": err.Error()})
		metrics = mi.metrics()
		metrics.ResponseTime = time.Since(start)
	}
	mi.logger.LogHealth(metrics.Healthy, metrics.ResponseTime, metrics.ErrorCount)
	return metrics
}

// PurgeExchanges deletes exchanges older than the retention window
func (is *InstrumentService) PurgeExchanges(ctx context.Context, retention time.Duration) (int64, error) {
	return is.exchanges.Purge(ctx, retention)
}

// Shutdown finalizes every instrument
func (is *InstrumentService) Shutdown(ctx context.Context) error {
	var errs []error
	for _, name := range is.names {
		if !is.instruments[name].isConnected() {
			continue
		}
		if err := is.Disconnect(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	is.logger.LogServiceStop("shutdown")
	return errors.Join(errs...)
}

// Kinds lists the distinct kinds in use
func (is *InstrumentService) Kinds() []string {
	seen := make(map[string]bool)
	var kinds []string
	for _, name := range is.names {
		kind := is.instruments[name].def.Kind
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func (is *InstrumentService) lookup(name string) (*managedInstrument, error) {
	mi, exists := is.instruments[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, name)
	}
	return mi, nil
}

// operationContext bounds one link operation. The bound never drops below
// operationReadWindows read timeouts of the instrument, so a read that
// simply expires is reported as Expired rather than as a context deadline.
func (is *InstrumentService) operationContext(ctx context.Context, mi *managedInstrument) (context.Context, context.CancelFunc) {
	timeout := operationTimeout(is.config.Monitor.OperationTimeout, mi.linkInfo().ReadTimeout)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// operationTimeout returns the configured timeout raised to the read floor.
// Zero or less means unbounded.
func operationTimeout(configured, readTimeout time.Duration) time.Duration {
	if configured <= 0 {
		return 0
	}
	if floor := operationReadWindows * readTimeout; configured < floor {
		return floor
	}
	return configured
}

func (is *InstrumentService) publish(eventType model.EventType, name, severity string, data model.JSONObject) {
	if is.publisher == nil {
		return
	}
	is.publisher.Publish(model.NewInstrumentEvent(eventType, name, severity, data))
}

// refreshLink copies the controller state into the cache. Callers hold linkMu.
func (mi *managedInstrument) refreshLink() {
	info := mi.inst.Controller().Info()
	connected := mi.inst.IsInitialized()

	mi.stateMu.Lock()
	defer mi.stateMu.Unlock()
	mi.info = info
	mi.connected = connected
}

func (mi *managedInstrument) linkInfo() driver.ControllerInfo {
	mi.stateMu.RLock()
	defer mi.stateMu.RUnlock()
	return mi.info
}

func (mi *managedInstrument) isConnected() bool {
	mi.stateMu.RLock()
	defer mi.stateMu.RUnlock()
	return mi.connected
}

func (mi *managedInstrument) setStatus(status model.InstrumentStatus) {
	mi.stateMu.Lock()
	defer mi.stateMu.Unlock()
	mi.status = status
}

func (mi *managedInstrument) touch() {
	now := time.Now()
	mi.stateMu.Lock()
	defer mi.stateMu.Unlock()
	mi.lastActivity = &now
}

func (mi *managedInstrument) recordFailure(err error) {
	now := time.Now()
	msg := err.Error()
	mi.stateMu.Lock()
	defer mi.stateMu.Unlock()
	mi.errorCount++
	mi.lastError = &msg
	mi.lastErrorTime = &now
}

func (mi *managedInstrument) recordSuccess() {
	now := time.Now()
	mi.stateMu.Lock()
	defer mi.stateMu.Unlock()
	mi.lastSuccess = &now
}

func (mi *managedInstrument) snapshot() *model.Instrument {
	mi.stateMu.RLock()
	defer mi.stateMu.RUnlock()

	info := mi.info

	return &model.Instrument{
		Name:           mi.def.Name,
		Kind:           mi.def.Kind,
		Description:    mi.def.Description,
		ConnectionType: info.ConnectionType,
		Port:           info.Port,
		Dummy:          info.Dummy,
		Status:         mi.status,
		Capabilities:   append([]model.Capability(nil), mi.capabilities...),
		LastActivity:   mi.lastActivity,
		LastError:      mi.lastError,
		ExchangeCount:  mi.exchangeCount,
		ErrorCount:     mi.errorCount,
	}
}

func (mi *managedInstrument) metrics() *driver.HealthMetrics {
	mi.stateMu.RLock()
	defer mi.stateMu.RUnlock()

	m := &driver.HealthMetrics{
		Healthy:         mi.status == model.InstrumentStatusConnected,
		Status:          string(mi.status),
		ErrorCount:      mi.errorCount,
		TotalOperations: mi.exchangeCount,
		LastErrorTime:   mi.lastErrorTime,
		LastSuccessTime: mi.lastSuccess,
	}
	if mi.lastError != nil {
		m.LastError = *mi.lastError
	}
	return m
}
