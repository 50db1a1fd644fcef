package printer

import (
	"context"
	"sync"

	"github.com/nixxel-company-limited/escpos-checkin/adapter"
	"github.com/nixxel-company-limited/escpos-checkin/escpos"
)

// MockDriver is a scripted Driver that records calls
type MockDriver struct {
	mu sync.Mutex

	enabled    bool
	enableErr  error
	enabledErr error
	devices    []Device
	devicesErr error
	connectErr error
	initErr    error
	discErr    error
	printErr   error

	calls     []string
	connected string
	printed   []string
	options   []escpos.TextOptions
	raw       []byte
}

func newMockDriver(devices ...Device) *MockDriver {
	return &MockDriver{enabled: true, devices: devices}
}

func (m *MockDriver) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *MockDriver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockDriver) count(call string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (m *MockDriver) IsEnabled(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("IsEnabled")
	return m.enabled, m.enabledErr
}

func (m *MockDriver) Enable(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Enable")
	if m.enableErr != nil {
		return m.enableErr
	}
	m.enabled = true
	return nil
}

func (m *MockDriver) PairedDevices(ctx context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("PairedDevices")
	return m.devices, m.devicesErr
}

func (m *MockDriver) Connect(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Connect")
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = address
	return nil
}

func (m *MockDriver) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Disconnect")
	if m.discErr != nil {
		return m.discErr
	}
	m.connected = ""
	return nil
}

func (m *MockDriver) PrinterInit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("PrinterInit")
	return m.initErr
}

func (m *MockDriver) PrintText(ctx context.Context, text string, opts escpos.TextOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("PrintText")
	if m.printErr != nil {
		return m.printErr
	}
	m.printed = append(m.printed, text)
	m.options = append(m.options, opts)
	return nil
}

func (m *MockDriver) Write(ctx context.Context, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Write")
	if m.printErr != nil {
		return 0, m.printErr
	}
	m.raw = append(m.raw, data...)
	return len(data), nil
}

// MockAdapter is a mock implementation of the Adapter interface for testing
type MockAdapter struct {
	open      bool
	closed    int
	writeData []byte
	maxWrite  int
	writeErr  error
	closeErr  error
}

func (m *MockAdapter) Open() error {
	m.open = true
	return nil
}

func (m *MockAdapter) Write(data []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	n := len(data)
	if m.maxWrite > 0 && n > m.maxWrite {
		n = m.maxWrite
	}
	m.writeData = append(m.writeData, data[:n]...)
	return n, nil
}

func (m *MockAdapter) Read(buf []byte) (int, error) {
	return 0, nil
}

func (m *MockAdapter) Close() error {
	m.open = false
	m.closed++
	return m.closeErr
}

func (m *MockAdapter) IsOpen() bool {
	return m.open
}

var _ adapter.Adapter = (*MockAdapter)(nil)
