package printer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-checkin/adapter"
)

// DefaultRFCOMMChannel is the SPP channel most receipt printers listen on
const DefaultRFCOMMChannel = 1

// BluetoothRadio is the host radio as used by BluetoothDriver
type BluetoothRadio interface {
	Powered(ctx context.Context) (bool, error)
	PowerOn(ctx context.Context) error
	PairedDevices(ctx context.Context) ([]adapter.PairedDevice, error)
	CheckAccess() (bool, error)
	BindRFCOMM(ctx context.Context, mac string, channel int) (string, error)
	ReleaseRFCOMM(ctx context.Context, devPath string) error
}

// LinkOpener opens the serial link behind a bound RFCOMM node
type LinkOpener func(devPath string) (adapter.Adapter, error)

// BluetoothDriver drives a Bluetooth SPP printer through an RFCOMM serial
// node
type BluetoothDriver struct {
	radio    BluetoothRadio
	channel  int
	openLink LinkOpener
	logger   *zap.Logger

	link
	devPath string
}

// NewBluetoothDriver creates a driver; openLink nil opens a serial port at
// baudRate on the bound node
func NewBluetoothDriver(radio BluetoothRadio, channel, baudRate int, openLink LinkOpener, logger *zap.Logger) *BluetoothDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel <= 0 {
		channel = DefaultRFCOMMChannel
	}
	if openLink == nil {
		openLink = func(devPath string) (adapter.Adapter, error) {
			a := adapter.NewSerialAdapter(devPath, baudRate, logger)
			if err := a.Open(); err != nil {
				return nil, err
			}
			return a, nil
		}
	}
	return &BluetoothDriver{
		radio:    radio,
		channel:  channel,
		openLink: openLink,
		logger:   logger,
	}
}

// Permissions reports whether RFCOMM links may be created by this process
func (d *BluetoothDriver) Permissions(ctx context.Context) (bool, error) {
	return d.radio.CheckAccess()
}

// IsEnabled reports whether the radio is powered
func (d *BluetoothDriver) IsEnabled(ctx context.Context) (bool, error) {
	return d.radio.Powered(ctx)
}

// Enable powers the radio on
func (d *BluetoothDriver) Enable(ctx context.Context) error {
	return d.radio.PowerOn(ctx)
}

// PairedDevices lists bonded devices
func (d *BluetoothDriver) PairedDevices(ctx context.Context) ([]Device, error) {
	paired, err := d.radio.PairedDevices(ctx)
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(paired))
	for _, p := range paired {
		devices = append(devices, Device{Address: p.Address, Name: p.Name})
	}
	return devices, nil
}

// Connect binds an RFCOMM node to address and opens it
func (d *BluetoothDriver) Connect(ctx context.Context, address string) error {
	if d.attached() {
		return errors.New("link already open")
	}

	devPath, err := d.radio.BindRFCOMM(ctx, address, d.channel)
	if err != nil {
		return err
	}

	a, err := d.openLink(devPath)
	if err != nil {
		if rerr := d.radio.ReleaseRFCOMM(context.Background(), devPath); rerr != nil {
			d.logger.Warn("Failed to release RFCOMM node", zap.String("device", devPath), zap.Error(rerr))
		}
		return fmt.Errorf("open %s: %w", devPath, err)
	}

	d.attach(a)
	d.devPath = devPath
	return nil
}

// Disconnect closes the serial link and releases the RFCOMM node
func (d *BluetoothDriver) Disconnect(ctx context.Context) error {
	a := d.detach()
	if a == nil {
		return nil
	}

	closeErr := a.Close()
	releaseErr := d.radio.ReleaseRFCOMM(ctx, d.devPath)
	d.devPath = ""

	return multierr.Combine(closeErr, releaseErr)
}
