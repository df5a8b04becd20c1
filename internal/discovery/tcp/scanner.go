// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/discovery"
	"instrument-service/internal/model"
	"instrument-service/pkg/devicetypes"
)

// maxHosts bounds how many addresses one range may expand to
const maxHosts = 1024

// Scanner dials host:port candidates and reports those that accept a
// connection. Serial device servers and raw-socket instruments are found
// this way.
type Scanner struct {
	logger *zap.Logger
	config *Config
	dialer func(ctx context.Context, network, address string) (net.Conn, error)
}

// Config for TCP scanner
type Config struct {
	ScanTimeout   time.Duration `json:"scan_timeout"`
	Hosts         []string      `json:"hosts"`
	NetworkRanges []string      `json:"network_ranges"`
	Ports         []int         `json:"ports"`
	ConnTimeout   time.Duration `json:"connection_timeout"`
	MaxConcurrent int           `json:"max_concurrent"`
}

// DefaultPorts are raw socket ports common on LAN instruments: SCPI
// raw socket, telnet and serial device servers
var DefaultPorts = []int{5025, 23, 4001, 4002, 10001}

// NewScanner creates a new TCP scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = time.Duration(devicetypes.DefaultTimeouts["TCP_SCAN"]) * time.Second
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = time.Duration(devicetypes.DefaultTimeouts["TCP_DIAL"]) * time.Second
	}
	if len(config.Ports) == 0 {
		config.Ports = DefaultPorts
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 32
	}

	dialer := &net.Dialer{Timeout: config.ConnTimeout}
	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
		dialer: dialer.DialContext,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "tcp"
}

// IsAvailable reports whether any target is configured
func (s *Scanner) IsAvailable() bool {
	return len(s.config.Hosts) > 0 || len(s.config.NetworkRanges) > 0
}

// Scan dials every host and port combination
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	s.logger.Info("Starting TCP network scan")

	hosts, err := s.Targets()
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	addresses := make(chan string)
	var (
		mutex      sync.Mutex
		discovered []*discovery.DiscoveredPort
		wg         sync.WaitGroup
	)

	for i := 0; i < s.config.MaxConcurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for address := range addresses {
				if port := s.dial(scanCtx, address); port != nil {
					mutex.Lock()
					discovered = append(discovered, port)
					mutex.Unlock()
				}
			}
		}()
	}

feed:
	for _, host := range hosts {
		for _, p := range s.config.Ports {
			select {
			case addresses <- net.JoinHostPort(host, strconv.Itoa(p)):
			case <-scanCtx.Done():
				break feed
			}
		}
	}
	close(addresses)
	wg.Wait()

	discovery.SortByConfidence(discovered)
	s.logger.Info("TCP scan completed", zap.Int("ports_found", len(discovered)))
	return discovered, nil
}

func (s *Scanner) dial(ctx context.Context, address string) *discovery.DiscoveredPort {
	dialCtx, cancel := context.WithTimeout(ctx, s.config.ConnTimeout)
	defer cancel()

	conn, err := s.dialer(dialCtx, "tcp", address)
	if err != nil {
		return nil
	}
	_ = conn.Close()

	host, portStr, _ := net.SplitHostPort(address)
	port, _ := strconv.Atoi(portStr)

	return &discovery.DiscoveredPort{
		ConnectionType: model.ConnectionTypeTCP,
		Port:           address,
		SuggestedKind:  "generic_serial",
		Confidence:     0.3,
		Location:       host,
		Settings: map[string]interface{}{
			"host": host,
			"port": port,
		},
	}
}

// Targets expands hosts and network ranges into a unique address list
func (s *Scanner) Targets() ([]string, error) {
	seen := make(map[string]bool)
	var targets []string
	add := func(h string) {
		if !seen[h] {
			seen[h] = true
			targets = append(targets, h)
		}
	}

	for _, h := range s.config.Hosts {
		add(h)
	}

	for _, r := range s.config.NetworkRanges {
		prefix, err := netip.ParsePrefix(r)
		if err != nil {
			return nil, fmt.Errorf("invalid network range %q: %w", r, err)
		}
		prefix = prefix.Masked()

		count := 0
		for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
			if count >= maxHosts {
				return nil, fmt.Errorf("network range %q exceeds %d hosts", r, maxHosts)
			}
			if addr.Is4() && prefix.Bits() < 31 && (addr == prefix.Addr() || isBroadcast(addr, prefix)) {
				continue
			}
			add(addr.String())
			count++
		}
	}
	return targets, nil
}

func isBroadcast(addr netip.Addr, prefix netip.Prefix) bool {
	next := addr.Next()
	return !next.IsValid() || !prefix.Contains(next)
}
