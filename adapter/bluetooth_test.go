package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and answers from a canned table keyed by the
// joined command line
type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	outputs  map[string]string
	failures map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs:  make(map[string]string),
		failures: make(map[string]error),
	}
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)

	if err, ok := f.failures[line]; ok {
		return nil, err
	}
	return []byte(f.outputs[line]), nil
}

func (f *fakeRunner) called(line string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == line {
			return true
		}
	}
	return false
}

func newTestRadio(f *fakeRunner, opts ...RadioOption) *Radio {
	base := []RadioOption{
		WithCommandRunner(f.run),
		WithLookPath(func(name string) (string, error) {
			if name == "rfcomm" || name == "sudo" {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		}),
		WithEffectiveUID(func() int { return 1000 }),
		WithDeviceCheck(func(string) bool { return true }),
		WithDeviceWait(50 * time.Millisecond),
	}
	return NewRadio(nil, append(base, opts...)...)
}

func TestRadioPowered(t *testing.T) {
	t.Run("On", func(t *testing.T) {
		f := newFakeRunner()
		f.outputs["bluetoothctl show"] = "Controller 00:1A:7D:DA:71:13 (public)\n\tName: host\n\tPowered: yes\n"
		powered, err := newTestRadio(f).Powered(context.Background())
		require.NoError(t, err)
		assert.True(t, powered)
	})

	t.Run("Off", func(t *testing.T) {
		f := newFakeRunner()
		f.outputs["bluetoothctl show"] = "Controller 00:1A:7D:DA:71:13 (public)\n\tPowered: no\n"
		powered, err := newTestRadio(f).Powered(context.Background())
		require.NoError(t, err)
		assert.False(t, powered)
	})

	t.Run("NoController", func(t *testing.T) {
		f := newFakeRunner()
		f.outputs["bluetoothctl show"] = "No default controller available\n"
		_, err := newTestRadio(f).Powered(context.Background())
		assert.ErrorIs(t, err, ErrRadioUnavailable)
	})

	t.Run("CommandFails", func(t *testing.T) {
		f := newFakeRunner()
		f.failures["bluetoothctl show"] = errors.New("exec: not found")
		_, err := newTestRadio(f).Powered(context.Background())
		assert.ErrorIs(t, err, ErrRadioUnavailable)
	})
}

func TestRadioPowerOn(t *testing.T) {
	f := newFakeRunner()
	f.outputs["bluetoothctl power on"] = "Changing power on succeeded\n"
	assert.NoError(t, newTestRadio(f).PowerOn(context.Background()))

	f = newFakeRunner()
	f.outputs["bluetoothctl power on"] = "Failed to set power on: org.bluez.Error.Blocked\n"
	assert.ErrorIs(t, newTestRadio(f).PowerOn(context.Background()), ErrRadioUnavailable)
}

func TestRadioPairedDevices(t *testing.T) {
	f := newFakeRunner()
	f.outputs["bluetoothctl devices Paired"] = strings.Join([]string{
		"Device 66:22:B2:3C:11:08 XP-P210",
		"Device 11:22:33:44:55:66 Headphones Pro",
		"garbage line",
		"Device AA:BB:CC:DD:EE:FF",
		"",
	}, "\n")

	devices, err := newTestRadio(f).PairedDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []PairedDevice{
		{Name: "XP-P210", Address: "66:22:B2:3C:11:08"},
		{Name: "Headphones Pro", Address: "11:22:33:44:55:66"},
		{Name: "", Address: "AA:BB:CC:DD:EE:FF"},
	}, devices)
}

func TestRadioCheckAccess(t *testing.T) {
	t.Run("WithSudo", func(t *testing.T) {
		ok, err := newTestRadio(newFakeRunner()).CheckAccess()
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NoHelperNotRoot", func(t *testing.T) {
		r := newTestRadio(newFakeRunner(), WithLookPath(func(name string) (string, error) {
			if name == "rfcomm" {
				return "/usr/bin/rfcomm", nil
			}
			return "", errors.New("not found")
		}))
		ok, err := r.CheckAccess()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("NoRFCOMM", func(t *testing.T) {
		r := newTestRadio(newFakeRunner(), WithLookPath(func(string) (string, error) {
			return "", errors.New("not found")
		}))
		_, err := r.CheckAccess()
		assert.Error(t, err)
	})
}

func TestRadioBindRFCOMM(t *testing.T) {
	f := newFakeRunner()
	f.outputs["rfcomm show 0"] = "rfcomm0: 11:22:33:44:55:66 channel 1 clean\n"

	devPath, err := newTestRadio(f).BindRFCOMM(context.Background(), "66:22:B2:3C:11:08", 1)
	require.NoError(t, err)
	assert.Equal(t, "/dev/rfcomm1", devPath)
	assert.True(t, f.called("sudo -n rfcomm bind 1 66:22:B2:3C:11:08 1"))
}

func TestRadioBindRFCOMMAsRoot(t *testing.T) {
	f := newFakeRunner()
	r := newTestRadio(f, WithEffectiveUID(func() int { return 0 }))

	devPath, err := r.BindRFCOMM(context.Background(), "66:22:B2:3C:11:08", 2)
	require.NoError(t, err)
	assert.Equal(t, "/dev/rfcomm0", devPath)
	assert.True(t, f.called("rfcomm bind 0 66:22:B2:3C:11:08 2"))
}

func TestRadioBindRFCOMMTimeout(t *testing.T) {
	f := newFakeRunner()
	r := newTestRadio(f, WithDeviceCheck(func(string) bool { return false }))

	_, err := r.BindRFCOMM(context.Background(), "66:22:B2:3C:11:08", 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.True(t, f.called("sudo -n rfcomm release 0"))
}

func TestRadioBindRFCOMMNoSlot(t *testing.T) {
	f := newFakeRunner()
	for i := 0; i < maxRFCOMMDevices; i++ {
		f.outputs["rfcomm show "+string(rune('0'+i))] = "bound"
	}

	_, err := newTestRadio(f).BindRFCOMM(context.Background(), "66:22:B2:3C:11:08", 1)
	assert.ErrorIs(t, err, ErrNoRFCOMMSlot)
}

func TestRadioReleaseRFCOMM(t *testing.T) {
	f := newFakeRunner()
	r := newTestRadio(f)

	assert.NoError(t, r.ReleaseRFCOMM(context.Background(), ""))
	assert.Empty(t, f.calls)

	require.NoError(t, r.ReleaseRFCOMM(context.Background(), "/dev/rfcomm3"))
	assert.True(t, f.called("sudo -n rfcomm release 3"))
}
