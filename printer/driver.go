package printer

import (
	"context"

	"github.com/nixxel-company-limited/escpos-checkin/escpos"
)

// Driver is the platform collaborator: radio control, pairing and the byte
// link to one printer at a time
type Driver interface {
	// IsEnabled reports whether the radio is on
	IsEnabled(ctx context.Context) (bool, error)

	// Enable turns the radio on
	Enable(ctx context.Context) error

	// PairedDevices lists devices known to the platform, in platform order
	PairedDevices(ctx context.Context) ([]Device, error)

	// Connect opens the link to the device at address
	Connect(ctx context.Context, address string) error

	// Disconnect closes the current link
	Disconnect(ctx context.Context) error

	// PrinterInit sends the printer reset command
	PrinterInit(ctx context.Context) error

	// PrintText sends text with formatting options
	PrintText(ctx context.Context, text string, opts escpos.TextOptions) error

	// Write sends pre-encoded ESC/POS bytes
	Write(ctx context.Context, data []byte) (int, error)
}

// PermissionFunc asks the platform for the capabilities needed to scan and
// connect. It returns false when they are denied.
type PermissionFunc func(ctx context.Context) (bool, error)
