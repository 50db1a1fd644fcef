// Package adapter provides byte transports to receipt printers: USB
// printer-class devices, serial ports (including Bluetooth RFCOMM nodes) and
// control of the host Bluetooth radio.
package adapter

import "errors"

// Common errors
var (
	ErrNotOpen     = errors.New("device not open")
	ErrAlreadyOpen = errors.New("device already open")
	ErrNoPrinter   = errors.New("cannot find printer")
)

// Adapter defines the interface for printer communication adapters
type Adapter interface {
	// Open opens the connection to the printer
	Open() error

	// Write sends data to the printer
	Write(data []byte) (int, error)

	// Read reads data from the printer
	Read(buf []byte) (int, error)

	// Close closes the connection to the printer
	Close() error

	// IsOpen returns whether the connection is open
	IsOpen() bool
}
