// Package discovery advertises a running host's optional local HTTP
// facade (C7 over internal/api) over mDNS/Zeroconf via avahi's D-Bus
// API, so other tools on the LAN can find it without a hardcoded
// address.
//
// If avahi is unavailable (containers, cloud environments), advertising
// simply fails to start and the facade stays reachable by address —
// this is advisory convenience, not a requirement for correct operation.
package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
)

const (
	// ServiceType is the mDNS service type advertised for a novelhost.
	ServiceType = "_novelhost._tcp"

	// APIVersion is the current facade API version advertised in TXT records.
	APIVersion = "v1"
)

// Instance describes the host advertised over mDNS.
type Instance struct {
	ID   string
	Name string
}

// Service manages mDNS advertisement of the local API facade via avahi
// D-Bus.
type Service struct {
	conn       *dbus.Conn
	server     *avahi.Server
	entryGroup *avahi.EntryGroup
	logger     *slog.Logger
	mu         sync.Mutex
}

// New builds a discovery Service.
func New(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Start begins advertising the host's API facade via mDNS at port.
func (s *Service) Start(instance Instance, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect to system D-Bus: %w", err)
	}
	s.conn = conn

	server, err := avahi.ServerNew(conn)
	if err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("connect to avahi: %w", err)
	}
	s.server = server

	entryGroup, err := server.EntryGroupNew()
	if err != nil {
		s.conn.Close()
		s.conn = nil
		s.server = nil
		return fmt.Errorf("create entry group: %w", err)
	}
	s.entryGroup = entryGroup

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "novelhost"
	}

	txtRecords := [][]byte{
		[]byte("id=" + instance.ID),
		[]byte("name=" + instance.Name),
		[]byte("api=" + APIVersion),
	}

	err = entryGroup.AddService(
		avahi.InterfaceUnspec,
		avahi.ProtoUnspec,
		0,
		hostname,
		ServiceType,
		"local",
		"",
		uint16(port),
		txtRecords,
	)
	if err != nil {
		s.cleanup()
		return fmt.Errorf("add service: %w", err)
	}

	if err := entryGroup.Commit(); err != nil {
		s.cleanup()
		return fmt.Errorf("commit entry group: %w", err)
	}

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"port", port,
		"name", instance.Name,
		"id", instance.ID,
	)

	return nil
}

// Stop stops advertising and deregisters the service. Safe to call
// multiple times or if not started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Service) stopLocked() {
	if s.entryGroup != nil || s.conn != nil {
		s.cleanup()
		s.logger.Info("mDNS advertisement stopped")
	}
}

func (s *Service) cleanup() {
	if s.entryGroup != nil && s.server != nil {
		s.server.EntryGroupFree(s.entryGroup)
		s.entryGroup = nil
	}
	s.server = nil
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Running returns true if mDNS is currently advertising.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryGroup != nil
}
