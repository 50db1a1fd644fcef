package adapter

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultBaudRate suits most Bluetooth SPP receipt printers
const DefaultBaudRate = 115200

// SerialAdapter talks to a printer behind a serial device node such as
// /dev/rfcomm0 or /dev/ttyUSB0
type SerialAdapter struct {
	portName    string
	mode        *serial.Mode
	readTimeout time.Duration
	port        serial.Port
	mu          sync.Mutex
	logger      *zap.Logger
}

// NewSerialAdapter creates a serial adapter; baudRate 0 selects DefaultBaudRate
func NewSerialAdapter(portName string, baudRate int, logger *zap.Logger) *SerialAdapter {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SerialAdapter{
		portName: portName,
		mode: &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		readTimeout: 3 * time.Second,
		logger:      logger,
	}
}

// PortName returns the serial device path
func (a *SerialAdapter) PortName() string {
	return a.portName
}

// Open opens the serial port
func (a *SerialAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port != nil {
		return ErrAlreadyOpen
	}

	port, err := serial.Open(a.portName, a.mode)
	if err != nil {
		return fmt.Errorf("failed to open port %s: %w", a.portName, err)
	}
	if err := port.SetReadTimeout(a.readTimeout); err != nil {
		a.logger.Warn("Failed to set read timeout", zap.String("port", a.portName), zap.Error(err))
	}

	a.port = port
	a.logger.Info("Serial port opened",
		zap.String("port", a.portName),
		zap.Int("baud_rate", a.mode.BaudRate))
	return nil
}

// Write sends data to the printer
func (a *SerialAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return 0, ErrNotOpen
	}

	n, err := a.port.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

// Read reads data from the printer
func (a *SerialAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return 0, ErrNotOpen
	}

	n, err := a.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close closes the serial port
func (a *SerialAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return nil
	}

	err := a.port.Close()
	a.port = nil
	if err != nil {
		return fmt.Errorf("failed to close port %s: %w", a.portName, err)
	}
	a.logger.Info("Serial port closed", zap.String("port", a.portName))
	return nil
}

// IsOpen returns whether the port is open
func (a *SerialAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port != nil
}

// ListSerialPorts returns the serial ports known to the OS
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial ports error: %w", err)
	}
	return ports, nil
}
