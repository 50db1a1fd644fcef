package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Bluetooth errors
var (
	ErrRadioUnavailable  = errors.New("bluetooth radio unavailable")
	ErrPrivilegeRequired = errors.New("root privileges required for RFCOMM")
	ErrNoRFCOMMSlot      = errors.New("no available RFCOMM device slots")
)

const maxRFCOMMDevices = 10

// PairedDevice is a Bluetooth peripheral bonded with the host
type PairedDevice struct {
	Name    string
	Address string
}

// CommandRunner executes an external program and returns its stdout
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Radio controls the host Bluetooth controller through the BlueZ tools
// (bluetoothctl and rfcomm)
type Radio struct {
	run      CommandRunner
	lookPath func(string) (string, error)
	exists   func(string) bool
	euid     func() int
	wait     time.Duration
	logger   *zap.Logger
}

// RadioOption configures a Radio
type RadioOption func(*Radio)

// WithCommandRunner replaces the command executor
func WithCommandRunner(run CommandRunner) RadioOption {
	return func(r *Radio) { r.run = run }
}

// WithLookPath replaces the executable lookup
func WithLookPath(fn func(string) (string, error)) RadioOption {
	return func(r *Radio) { r.lookPath = fn }
}

// WithDeviceCheck replaces the device node existence check
func WithDeviceCheck(fn func(string) bool) RadioOption {
	return func(r *Radio) { r.exists = fn }
}

// WithEffectiveUID replaces the effective user id lookup
func WithEffectiveUID(fn func() int) RadioOption {
	return func(r *Radio) { r.euid = fn }
}

// WithDeviceWait sets how long BindRFCOMM waits for the device node
func WithDeviceWait(d time.Duration) RadioOption {
	return func(r *Radio) { r.wait = d }
}

// NewRadio creates a radio controller
func NewRadio(logger *zap.Logger, opts ...RadioOption) *Radio {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Radio{
		run:      ExecRunner,
		lookPath: exec.LookPath,
		exists:   fileExists,
		euid:     os.Geteuid,
		wait:     5 * time.Second,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Powered reports whether the default controller is powered on
func (r *Radio) Powered(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "bluetoothctl", "show")
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	}
	return parsePowered(string(out))
}

func parsePowered(out string) (bool, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Powered:") {
			continue
		}
		return strings.TrimSpace(strings.TrimPrefix(line, "Powered:")) == "yes", nil
	}
	return false, fmt.Errorf("%w: no default controller", ErrRadioUnavailable)
}

// PowerOn powers the default controller on
func (r *Radio) PowerOn(ctx context.Context) error {
	out, err := r.run(ctx, "bluetoothctl", "power", "on")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	}
	if !strings.Contains(string(out), "succeeded") {
		return fmt.Errorf("%w: %s", ErrRadioUnavailable, strings.TrimSpace(string(out)))
	}
	r.logger.Info("Bluetooth radio powered on")
	return nil
}

// PairedDevices returns the devices bonded with the host, in bluetoothctl order
func (r *Radio) PairedDevices(ctx context.Context) ([]PairedDevice, error) {
	out, err := r.run(ctx, "bluetoothctl", "devices", "Paired")
	if err != nil {
		return nil, fmt.Errorf("failed to list paired devices: %w", err)
	}
	return parsePairedDevices(string(out)), nil
}

func parsePairedDevices(out string) []PairedDevice {
	devices := []PairedDevice{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Device ") {
			continue
		}
		// Format: "Device XX:XX:XX:XX:XX:XX DeviceName"
		parts := strings.SplitN(strings.TrimPrefix(line, "Device "), " ", 2)
		dev := PairedDevice{Address: parts[0]}
		if len(parts) == 2 {
			dev.Name = parts[1]
		}
		devices = append(devices, dev)
	}
	return devices
}

// CheckAccess reports whether RFCOMM bindings can be created: the rfcomm
// tool must exist and the process must be root or have sudo/pkexec
func (r *Radio) CheckAccess() (bool, error) {
	if _, err := r.lookPath("rfcomm"); err != nil {
		return false, fmt.Errorf("rfcomm not found - install with: sudo apt install bluez")
	}
	return r.privilegeHelper() != "" || r.euid() == 0, nil
}

func (r *Radio) privilegeHelper() string {
	if _, err := r.lookPath("pkexec"); err == nil {
		return "pkexec"
	}
	if _, err := r.lookPath("sudo"); err == nil {
		return "sudo"
	}
	return ""
}

func (r *Radio) rfcomm(ctx context.Context, args ...string) ([]byte, error) {
	if r.euid() == 0 {
		return r.run(ctx, "rfcomm", args...)
	}
	switch r.privilegeHelper() {
	case "pkexec":
		return r.run(ctx, "pkexec", append([]string{"rfcomm"}, args...)...)
	case "sudo":
		return r.run(ctx, "sudo", append([]string{"-n", "rfcomm"}, args...)...)
	}
	return nil, ErrPrivilegeRequired
}

// FindAvailableRFCOMMDevice finds an unused /dev/rfcommN device
func (r *Radio) FindAvailableRFCOMMDevice(ctx context.Context) (string, int, error) {
	for i := 0; i < maxRFCOMMDevices; i++ {
		devPath := fmt.Sprintf("/dev/rfcomm%d", i)
		out, _ := r.run(ctx, "rfcomm", "show", strconv.Itoa(i))
		if len(out) == 0 || strings.Contains(string(out), "No such device") {
			return devPath, i, nil
		}
	}
	return "", -1, ErrNoRFCOMMSlot
}

// BindRFCOMM binds an RFCOMM device node to mac and waits for it to appear.
// The link itself is established when the node is opened.
func (r *Radio) BindRFCOMM(ctx context.Context, mac string, channel int) (string, error) {
	devPath, devNum, err := r.FindAvailableRFCOMMDevice(ctx)
	if err != nil {
		return "", err
	}

	if _, err := r.rfcomm(ctx, "bind", strconv.Itoa(devNum), mac, strconv.Itoa(channel)); err != nil {
		return "", fmt.Errorf("failed to bind %s to %s: %w", devPath, mac, err)
	}

	deadline := time.Now().Add(r.wait)
	for {
		if r.exists(devPath) {
			r.logger.Info("RFCOMM device bound",
				zap.String("device", devPath),
				zap.String("address", mac),
				zap.Int("channel", channel))
			return devPath, nil
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			r.ReleaseRFCOMM(context.Background(), devPath)
			return "", ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	r.ReleaseRFCOMM(context.Background(), devPath)
	return "", fmt.Errorf("timeout waiting for %s to appear", devPath)
}

// ReleaseRFCOMM releases a device node created by BindRFCOMM
func (r *Radio) ReleaseRFCOMM(ctx context.Context, devPath string) error {
	if devPath == "" {
		return nil
	}
	num := strings.TrimPrefix(devPath, "/dev/rfcomm")
	if _, err := r.rfcomm(ctx, "release", num); err != nil {
		return fmt.Errorf("failed to release %s: %w", devPath, err)
	}
	r.logger.Info("RFCOMM device released", zap.String("device", devPath))
	return nil
}
