// Package printer owns the connection to a receipt printer.
//
// A Manager holds at most one active connection, exposes connect, disconnect
// and print operations and notifies subscribers when the connection changes.
// The platform side (radio control, pairing, byte transport) sits behind the
// Driver interface.
package printer

import "fmt"

// DefaultPreferredName is matched case-insensitively against paired device
// names when Connect is called without an explicit device
const DefaultPreferredName = "p210"

// Device is a printer known to the platform
type Device struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// String returns the display name, falling back to the address
func (d Device) String() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Address
}

// State is either disconnected or connected to exactly one device
type State struct {
	connected bool
	device    Device
}

// Disconnected is the initial state
func Disconnected() State {
	return State{}
}

// Connected returns the state of an open connection to d
func Connected(d Device) State {
	return State{connected: true, device: d}
}

// IsConnected reports whether the state holds a connection
func (s State) IsConnected() bool {
	return s.connected
}

// Device returns the connected device; ok is false when disconnected
func (s State) Device() (Device, bool) {
	return s.device, s.connected
}

func (s State) String() string {
	if !s.connected {
		return "Disconnected"
	}
	return fmt.Sprintf("Connected(%s)", s.device)
}
