package printer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-checkin/adapter"
)

// USBDriver drives a USB printer-class device. USB has no radio, so the
// driver always reports enabled and "paired" means attached.
type USBDriver struct {
	list   func() ([]adapter.USBPrinterInfo, error)
	open   func(adapter.USBSelector) (adapter.Adapter, error)
	logger *zap.Logger

	link
}

// NewUSBDriver creates a driver backed by libusb
func NewUSBDriver(logger *zap.Logger) *USBDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &USBDriver{
		list: func() ([]adapter.USBPrinterInfo, error) {
			return adapter.ListUSBPrinters(logger)
		},
		open: func(sel adapter.USBSelector) (adapter.Adapter, error) {
			a := adapter.NewUSBAdapter(sel, logger)
			if err := a.Open(); err != nil {
				return nil, err
			}
			return a, nil
		},
		logger: logger,
	}
}

// IsEnabled always reports true
func (d *USBDriver) IsEnabled(ctx context.Context) (bool, error) {
	return true, nil
}

// Enable is a no-op
func (d *USBDriver) Enable(ctx context.Context) error {
	return nil
}

// PairedDevices lists attached USB printers
func (d *USBDriver) PairedDevices(ctx context.Context) ([]Device, error) {
	printers, err := d.list()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(printers))
	for _, p := range printers {
		devices = append(devices, Device{Address: p.Address, Name: p.Name})
	}
	return devices, nil
}

// Connect opens the printer at a "vvvv:pppp[:serial]" address
func (d *USBDriver) Connect(ctx context.Context, address string) error {
	if d.attached() {
		return errors.New("link already open")
	}

	sel, err := adapter.ParseUSBAddress(address)
	if err != nil {
		return err
	}
	a, err := d.open(sel)
	if err != nil {
		return err
	}
	d.attach(a)
	return nil
}

// Disconnect closes the USB device
func (d *USBDriver) Disconnect(ctx context.Context) error {
	a := d.detach()
	if a == nil {
		return nil
	}
	return a.Close()
}
