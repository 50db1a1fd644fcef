package printer

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-checkin/escpos"
)

// Manager maintains the single connection to a printer.
//
// All operations that touch the driver are serialized. Listeners run
// synchronously on the goroutine that completed the transition, after the
// operation lock is released and before the operation returns, so a
// listener may call any Manager method.
type Manager struct {
	driver        Driver
	permissions   PermissionFunc
	preferredName string
	logger        *zap.Logger

	opMu      sync.Mutex
	stateMu   sync.RWMutex
	state     State
	listeners listenerSet
}

// Option configures a Manager
type Option func(*Manager)

// WithPermissions sets the platform permission check
func WithPermissions(fn PermissionFunc) Option {
	return func(m *Manager) { m.permissions = fn }
}

// WithPreferredName sets the name fragment Connect looks for when no device
// is given
func WithPreferredName(name string) Option {
	return func(m *Manager) { m.preferredName = name }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a disconnected manager over driver
func NewManager(driver Driver, opts ...Option) *Manager {
	m := &Manager{
		driver:        driver,
		preferredName: DefaultPreferredName,
		logger:        zap.NewNop(),
		state:         Disconnected(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current connection state
func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// IsConnected reports whether a printer is connected
func (m *Manager) IsConnected() bool {
	return m.State().IsConnected()
}

// ConnectedDevice returns the connected device, if any
func (m *Manager) ConnectedDevice() (Device, bool) {
	return m.State().Device()
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

// AddListener registers fn and returns the handle that removes it
func (m *Manager) AddListener(fn Listener) ListenerID {
	return m.listeners.add(fn)
}

// RemoveListener removes exactly the registration id. It reports whether id
// was registered.
func (m *Manager) RemoveListener(id ListenerID) bool {
	return m.listeners.remove(id)
}

// Subscribe registers fn and returns a function that unregisters it
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	id := m.listeners.add(fn)
	var once sync.Once
	return func() {
		once.Do(func() { m.listeners.remove(id) })
	}
}

// RequestPermissions asks the platform for scan and connect capabilities.
// Without a permission check configured it always succeeds.
func (m *Manager) RequestPermissions(ctx context.Context) (bool, error) {
	if m.permissions == nil {
		return true, nil
	}
	granted, err := m.permissions(ctx)
	if err != nil {
		m.logger.Warn("Permission request failed", zap.Error(err))
		return false, err
	}
	return granted, nil
}

// ListPairedDevices enables the radio if needed and returns the paired
// devices
func (m *Manager) ListPairedDevices(ctx context.Context) ([]Device, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.pairedDevices(ctx)
}

func (m *Manager) pairedDevices(ctx context.Context) ([]Device, error) {
	if err := m.ensureEnabled(ctx); err != nil {
		return nil, err
	}

	devices, err := m.driver.PairedDevices(ctx)
	if err != nil {
		m.logger.Error("Get devices error", zap.Error(err))
		return nil, newError(KindTransport, "list paired devices", err)
	}
	return devices, nil
}

func (m *Manager) ensureEnabled(ctx context.Context) error {
	enabled, err := m.driver.IsEnabled(ctx)
	if err != nil {
		return newError(KindRadioUnavailable, "enable radio", err)
	}
	if enabled {
		return nil
	}

	m.logger.Info("Radio disabled, enabling")
	if err := m.driver.Enable(ctx); err != nil {
		return newError(KindRadioUnavailable, "enable radio", err)
	}
	return nil
}

// SelectDevice picks the first device whose name contains preferred
// (case-insensitive), else the first device. ok is false for an empty list.
func SelectDevice(devices []Device, preferred string) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}
	if preferred != "" {
		needle := strings.ToLower(preferred)
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				return d, true
			}
		}
	}
	return devices[0], true
}

// Connect opens a connection and initializes the printer. With device nil
// the target is chosen by SelectDevice from the paired devices. If a printer
// is already connected it is returned unchanged.
func (m *Manager) Connect(ctx context.Context, device *Device) (Device, error) {
	target, changed, err := m.connect(ctx, device)
	if changed {
		m.listeners.notify(Connected(target))
	}
	return target, err
}

func (m *Manager) connect(ctx context.Context, device *Device) (Device, bool, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if current, ok := m.State().Device(); ok {
		m.logger.Debug("Already connected", zap.String("device", current.String()))
		return current, false, nil
	}

	granted, err := m.RequestPermissions(ctx)
	if err != nil || !granted {
		return Device{}, false, newError(KindPermissionDenied, "connect", err)
	}

	if err := m.ensureEnabled(ctx); err != nil {
		return Device{}, false, err
	}

	var target Device
	if device != nil {
		target = *device
	} else {
		devices, err := m.pairedDevices(ctx)
		if err != nil {
			return Device{}, false, err
		}
		var ok bool
		if target, ok = SelectDevice(devices, m.preferredName); !ok {
			return Device{}, false, newError(KindNoPairedDevices, "connect", nil)
		}
	}

	if err := m.driver.Connect(ctx, target.Address); err != nil {
		m.logger.Error("Connection error", zap.String("address", target.Address), zap.Error(err))
		return Device{}, false, newError(KindConnectionFailed, "connect", err)
	}

	if err := m.driver.PrinterInit(ctx); err != nil {
		m.logger.Error("Printer init failed after connect",
			zap.String("address", target.Address), zap.Error(err))
		if derr := m.driver.Disconnect(ctx); derr != nil {
			m.logger.Warn("Failed to close half-open link", zap.Error(derr))
		}
		return Device{}, false, newError(KindConnectionFailed, "connect", err)
	}

	m.setState(Connected(target))
	m.logger.Info("Connected to printer",
		zap.String("name", target.Name),
		zap.String("address", target.Address))
	return target, true, nil
}

// Disconnect closes the connection. It is a no-op when disconnected.
func (m *Manager) Disconnect(ctx context.Context) error {
	changed, err := m.disconnect(ctx)
	if changed {
		m.listeners.notify(Disconnected())
	}
	return err
}

func (m *Manager) disconnect(ctx context.Context) (bool, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	device, ok := m.State().Device()
	if !ok {
		return false, nil
	}

	if err := m.driver.Disconnect(ctx); err != nil {
		m.logger.Error("Disconnect error", zap.Error(err))
		return false, newError(KindTransport, "disconnect", err)
	}

	m.setState(Disconnected())
	m.logger.Info("Disconnected from printer", zap.String("address", device.Address))
	return true, nil
}

// PrintText sends text and options to the connected printer
func (m *Manager) PrintText(ctx context.Context, text string, opts escpos.TextOptions) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.State().IsConnected() {
		return newError(KindNotConnected, "print text", nil)
	}
	if err := m.driver.PrintText(ctx, text, opts); err != nil {
		m.logger.Error("Print error", zap.Error(err))
		return newError(KindTransport, "print text", err)
	}
	return nil
}

// InitPrinter sends the printer reset command
func (m *Manager) InitPrinter(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.State().IsConnected() {
		return newError(KindNotConnected, "init printer", nil)
	}
	if err := m.driver.PrinterInit(ctx); err != nil {
		m.logger.Error("Init error", zap.Error(err))
		return newError(KindTransport, "init printer", err)
	}
	return nil
}

// WriteRaw sends pre-encoded ESC/POS bytes to the connected printer
func (m *Manager) WriteRaw(ctx context.Context, data []byte) (int, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.State().IsConnected() {
		return 0, newError(KindNotConnected, "write", nil)
	}
	n, err := m.driver.Write(ctx, data)
	if err != nil {
		m.logger.Error("Write error", zap.Error(err))
		return n, newError(KindTransport, "write", err)
	}
	return n, nil
}
