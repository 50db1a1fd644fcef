package adapter

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/google/gousb"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Interface class codes
// Reference: http://www.usb.org/developers/defined_class
const (
	IfaceClassPrinter = 0x07
)

// USBSelector picks one USB printer. Zero fields match anything.
type USBSelector struct {
	Vendor  uint16
	Product uint16
	Serial  string
}

// USBPrinterInfo describes an attached USB printer-class device
type USBPrinterInfo struct {
	Address string
	Name    string
}

// ParseUSBAddress parses "vvvv:pppp" or "vvvv:pppp:serial" (hex IDs)
func ParseUSBAddress(address string) (USBSelector, error) {
	parts := strings.SplitN(strings.TrimSpace(address), ":", 3)
	if len(parts) < 2 {
		return USBSelector{}, fmt.Errorf("invalid usb address %q", address)
	}

	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return USBSelector{}, fmt.Errorf("invalid vendor id in %q: %w", address, err)
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return USBSelector{}, fmt.Errorf("invalid product id in %q: %w", address, err)
	}

	sel := USBSelector{Vendor: uint16(vid), Product: uint16(pid)}
	if len(parts) == 3 {
		sel.Serial = parts[2]
	}
	return sel, nil
}

// Address formats the selector the way ParseUSBAddress reads it
func (s USBSelector) Address() string {
	addr := fmt.Sprintf("%04x:%04x", s.Vendor, s.Product)
	if s.Serial != "" {
		addr += ":" + s.Serial
	}
	return addr
}

func (s USBSelector) matchesDesc(desc *gousb.DeviceDesc) bool {
	if s.Vendor != 0 && uint16(desc.Vendor) != s.Vendor {
		return false
	}
	if s.Product != 0 && uint16(desc.Product) != s.Product {
		return false
	}
	return true
}

// IsPrinterDesc checks if a device descriptor exposes a printer interface
func IsPrinterDesc(desc *gousb.DeviceDesc) bool {
	if desc == nil {
		return false
	}
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == IfaceClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// ListUSBPrinters returns every attached USB printer-class device
func ListUSBPrinters(logger *zap.Logger) ([]USBPrinterInfo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	devices, err := ctx.OpenDevices(IsPrinterDesc)
	defer func() {
		for _, dev := range devices {
			dev.Close()
		}
	}()
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate usb devices: %w", err)
	}

	printers := make([]USBPrinterInfo, 0, len(devices))
	for _, dev := range devices {
		sel := USBSelector{Vendor: uint16(dev.Desc.Vendor), Product: uint16(dev.Desc.Product)}
		if serial, err := dev.SerialNumber(); err == nil {
			sel.Serial = serial
		}
		printers = append(printers, USBPrinterInfo{
			Address: sel.Address(),
			Name:    deviceName(dev),
		})
		logger.Debug("Found usb printer", zap.String("address", sel.Address()))
	}
	return printers, nil
}

func deviceName(dev *gousb.Device) string {
	manufacturer, _ := dev.Manufacturer()
	product, _ := dev.Product()
	name := strings.TrimSpace(manufacturer + " " + product)
	if name == "" {
		name = dev.Desc.Vendor.String() + ":" + dev.Desc.Product.String()
	}
	return name
}

// USBAdapter manages USB printer communication
type USBAdapter struct {
	selector    USBSelector
	ctx         *gousb.Context
	device      *gousb.Device
	config      *gousb.Config
	iface       *gousb.Interface
	outEndpoint *gousb.OutEndpoint
	inEndpoint  *gousb.InEndpoint
	isOpen      bool
	mu          sync.Mutex
	logger      *zap.Logger
}

// NewUSBAdapter creates an adapter for the first printer matching selector
func NewUSBAdapter(selector USBSelector, logger *zap.Logger) *USBAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &USBAdapter{
		selector: selector,
		logger:   logger,
	}
}

func (a *USBAdapter) findDevice() (*gousb.Device, error) {
	devices, err := a.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return IsPrinterDesc(desc) && a.selector.matchesDesc(desc)
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate usb devices: %w", err)
	}

	var found *gousb.Device
	for _, dev := range devices {
		if found == nil && a.matchesSerial(dev) {
			found = dev
			continue
		}
		dev.Close()
	}
	if found == nil {
		return nil, ErrNoPrinter
	}
	return found, nil
}

func (a *USBAdapter) matchesSerial(dev *gousb.Device) bool {
	if a.selector.Serial == "" {
		return true
	}
	s, err := dev.SerialNumber()
	return err == nil && s == a.selector.Serial
}

// Open opens the USB device and claims the printer interface
func (a *USBAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isOpen {
		return ErrAlreadyOpen
	}

	a.ctx = gousb.NewContext()
	device, err := a.findDevice()
	if err != nil {
		a.release()
		return err
	}
	a.device = device

	// Set auto-detach kernel driver on Linux
	if runtime.GOOS == "linux" {
		if err := a.device.SetAutoDetach(true); err != nil {
			a.logger.Warn("Failed to enable kernel driver auto-detach", zap.Error(err))
		}
	}

	cfgNum, err := a.device.ActiveConfigNum()
	if err != nil {
		a.release()
		return fmt.Errorf("failed to get active config: %w", err)
	}

	cfg, err := a.device.Config(cfgNum)
	if err != nil {
		a.release()
		return fmt.Errorf("failed to get config: %w", err)
	}
	a.config = cfg

	ifaceNum, altNum := -1, 0
	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == IfaceClassPrinter {
				ifaceNum, altNum = iface.Number, alt.Alternate
				break
			}
		}
		if ifaceNum >= 0 {
			break
		}
	}
	if ifaceNum < 0 {
		a.release()
		return errors.New("no printer interface found")
	}

	iface, err := cfg.Interface(ifaceNum, altNum)
	if err != nil {
		a.release()
		return fmt.Errorf("failed to claim interface: %w", err)
	}
	a.iface = iface

	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut && a.outEndpoint == nil {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				a.outEndpoint = ep
			}
		}
		if epDesc.Direction == gousb.EndpointDirectionIn && a.inEndpoint == nil {
			if ep, err := iface.InEndpoint(epDesc.Number); err == nil {
				a.inEndpoint = ep
			}
		}
	}

	if a.outEndpoint == nil {
		a.release()
		return errors.New("cannot find output endpoint from printer")
	}

	a.isOpen = true
	a.logger.Info("USB printer opened", zap.String("address", a.selector.Address()))
	return nil
}

// Write sends data to the printer
func (a *USBAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}

	n, err := a.outEndpoint.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

// Read reads data from the printer
func (a *USBAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}
	if a.inEndpoint == nil {
		return 0, errors.New("input endpoint not available")
	}

	n, err := a.inEndpoint.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close closes the USB device
func (a *USBAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return nil
	}

	err := a.release()
	a.isOpen = false
	a.logger.Info("USB printer closed", zap.String("address", a.selector.Address()))

	if err != nil {
		return fmt.Errorf("close errors: %w", err)
	}
	return nil
}

// release frees every libusb handle held, in reverse order of acquisition
func (a *USBAdapter) release() error {
	var err error

	if a.iface != nil {
		a.iface.Close()
		a.iface = nil
	}
	a.outEndpoint = nil
	a.inEndpoint = nil

	if a.config != nil {
		err = multierr.Append(err, a.config.Close())
		a.config = nil
	}
	if a.device != nil {
		err = multierr.Append(err, a.device.Close())
		a.device = nil
	}
	if a.ctx != nil {
		err = multierr.Append(err, a.ctx.Close())
		a.ctx = nil
	}
	return err
}

// IsOpen returns whether the device is open
func (a *USBAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isOpen
}
