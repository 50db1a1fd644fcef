package printer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/escpos-checkin/escpos"
)

var (
	deviceA    = Device{Address: "AA:AA:AA:AA:AA:AA", Name: "Label Printer"}
	deviceB    = Device{Address: "BB:BB:BB:BB:BB:BB", Name: "Headset"}
	deviceP210 = Device{Address: "66:22:B2:3C:11:08", Name: "XP-P210 Receipt"}
)

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) listen(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func TestNewManager(t *testing.T) {
	m := NewManager(newMockDriver())

	assert.False(t, m.IsConnected())
	_, ok := m.ConnectedDevice()
	assert.False(t, ok)
	assert.Equal(t, "Disconnected", m.State().String())
}

func TestConnectSelectsPreferredDevice(t *testing.T) {
	driver := newMockDriver(deviceA, deviceB, deviceP210)
	m := NewManager(driver)
	rec := &recorder{}
	m.AddListener(rec.listen)

	device, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, deviceP210, device)
	assert.Equal(t, deviceP210.Address, driver.connected)
	assert.True(t, m.IsConnected())

	require.Equal(t, 1, rec.count())
	got, ok := rec.states[0].Device()
	assert.True(t, ok)
	assert.Equal(t, deviceP210, got)

	assert.Equal(t, 1, driver.count("Connect"))
	assert.Equal(t, 1, driver.count("PrinterInit"))
}

func TestConnectFallsBackToFirstDevice(t *testing.T) {
	driver := newMockDriver(deviceB, deviceA)
	m := NewManager(driver)

	device, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, deviceB, device)
}

func TestConnectWithExplicitDevice(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)

	device, err := m.Connect(context.Background(), &deviceA)
	require.NoError(t, err)
	assert.Equal(t, deviceA, device)
	assert.Equal(t, 0, driver.count("PairedDevices"))
}

func TestConnectIsIdempotent(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)
	rec := &recorder{}
	m.AddListener(rec.listen)

	first, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)

	second, err := m.Connect(context.Background(), &deviceA)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 1, driver.count("Connect"))
}

func TestConnectEnablesRadio(t *testing.T) {
	driver := newMockDriver(deviceP210)
	driver.enabled = false
	m := NewManager(driver)

	_, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, driver.count("Enable"))
}

func TestConnectFailures(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(*MockDriver)
		opts  []Option
		want  error
		kind  Kind
	}{
		{
			name: "PermissionDenied",
			opts: []Option{WithPermissions(func(context.Context) (bool, error) { return false, nil })},
			want: ErrPermissionDenied,
			kind: KindPermissionDenied,
		},
		{
			name: "PermissionError",
			opts: []Option{WithPermissions(func(context.Context) (bool, error) { return false, errors.New("prompt failed") })},
			want: ErrPermissionDenied,
			kind: KindPermissionDenied,
		},
		{
			name: "RadioUnavailable",
			setup: func(d *MockDriver) {
				d.enabled = false
				d.enableErr = errors.New("rfkill blocked")
			},
			want: ErrRadioUnavailable,
			kind: KindRadioUnavailable,
		},
		{
			name:  "NoPairedDevices",
			setup: func(d *MockDriver) { d.devices = nil },
			want:  ErrNoPairedDevices,
			kind:  KindNoPairedDevices,
		},
		{
			name:  "ScanFails",
			setup: func(d *MockDriver) { d.devicesErr = errors.New("dbus error") },
			want:  ErrTransport,
			kind:  KindTransport,
		},
		{
			name:  "ConnectRejected",
			setup: func(d *MockDriver) { d.connectErr = errors.New("host is down") },
			want:  ErrConnectionFailed,
			kind:  KindConnectionFailed,
		},
		{
			name:  "InitFails",
			setup: func(d *MockDriver) { d.initErr = errors.New("write timeout") },
			want:  ErrConnectionFailed,
			kind:  KindConnectionFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			driver := newMockDriver(deviceP210)
			if tc.setup != nil {
				tc.setup(driver)
			}
			m := NewManager(driver, tc.opts...)
			rec := &recorder{}
			m.AddListener(rec.listen)

			_, err := m.Connect(context.Background(), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.kind, KindOf(err))

			assert.False(t, m.IsConnected())
			assert.Equal(t, 0, rec.count())
		})
	}
}

func TestConnectInitFailureClosesLink(t *testing.T) {
	driver := newMockDriver(deviceP210)
	driver.initErr = errors.New("write timeout")
	m := NewManager(driver)

	_, err := m.Connect(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, driver.count("Disconnect"))
}

func TestDisconnect(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)
	rec := &recorder{}
	m.AddListener(rec.listen)

	_, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(context.Background()))
	assert.False(t, m.IsConnected())

	require.Equal(t, 2, rec.count())
	_, ok := rec.states[1].Device()
	assert.False(t, ok)
}

func TestDisconnectWhileDisconnectedIsNoop(t *testing.T) {
	driver := newMockDriver()
	m := NewManager(driver)
	rec := &recorder{}
	m.AddListener(rec.listen)

	require.NoError(t, m.Disconnect(context.Background()))
	assert.Equal(t, 0, rec.count())
	assert.Empty(t, driver.Calls())
}

func TestDisconnectFailureKeepsState(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)
	_, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)

	driver.discErr = errors.New("device busy")
	rec := &recorder{}
	m.AddListener(rec.listen)

	err = m.Disconnect(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, m.IsConnected())
	assert.Equal(t, 0, rec.count())
}

func TestPrintWhileDisconnected(t *testing.T) {
	driver := newMockDriver()
	m := NewManager(driver)

	err := m.PrintText(context.Background(), "hello", escpos.TextOptions{})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, KindNotConnected, KindOf(err))

	err = m.InitPrinter(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = m.WriteRaw(context.Background(), []byte{0x1B, 0x40})
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.Empty(t, driver.Calls())
}

func TestPrintWhileConnected(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)
	_, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)

	opts := escpos.TextOptions{Bold: true}
	require.NoError(t, m.PrintText(context.Background(), "hello\n", opts))
	require.NoError(t, m.InitPrinter(context.Background()))

	n, err := m.WriteRaw(context.Background(), []byte{0x1B, 0x40})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"hello\n"}, driver.printed)
	assert.Equal(t, []escpos.TextOptions{opts}, driver.options)
	assert.Equal(t, []byte{0x1B, 0x40}, driver.raw)
	assert.Equal(t, 2, driver.count("PrinterInit"))
}

func TestPrintTransportError(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)
	_, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)

	driver.printErr = errors.New("broken pipe")
	err = m.PrintText(context.Background(), "x", escpos.TextOptions{})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.True(t, m.IsConnected())
}

func TestListPairedDevices(t *testing.T) {
	driver := newMockDriver(deviceA, deviceB)
	driver.enabled = false
	m := NewManager(driver)

	devices, err := m.ListPairedDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Device{deviceA, deviceB}, devices)
	assert.Equal(t, []string{"IsEnabled", "Enable", "PairedDevices"}, driver.Calls())
}

func TestRequestPermissions(t *testing.T) {
	granted, err := NewManager(newMockDriver()).RequestPermissions(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)

	denied := NewManager(newMockDriver(), WithPermissions(func(context.Context) (bool, error) {
		return false, nil
	}))
	granted, err = denied.RequestPermissions(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestRemoveListenerRemovesOneRegistration(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)

	calls := 0
	fn := func(State) { calls++ }
	first := m.AddListener(fn)
	m.AddListener(fn)

	assert.True(t, m.RemoveListener(first))
	assert.False(t, m.RemoveListener(first))

	_, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestSubscribe(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)
	rec := &recorder{}

	unsubscribe := m.Subscribe(rec.listen)
	_, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, m.listeners.len())

	require.NoError(t, m.Disconnect(context.Background()))
	assert.Equal(t, 1, rec.count())
}

func TestListenerMayUnsubscribeItself(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)

	var unsubscribe func()
	calls := 0
	unsubscribe = m.Subscribe(func(State) {
		calls++
		unsubscribe()
	})

	_, err := m.Connect(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, m.Disconnect(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestListenerMayCallIntoManager(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)

	var listErr, printErr error
	m.Subscribe(func(s State) {
		if !s.IsConnected() {
			return
		}
		_, listErr = m.ListPairedDevices(context.Background())
		printErr = m.PrintText(context.Background(), "Welcome\n", escpos.TextOptions{})
	})

	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background(), nil)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return while a listener used the manager")
	}

	assert.NoError(t, listErr)
	assert.NoError(t, printErr)
	assert.Equal(t, []string{"Welcome\n"}, driver.printed)
}

func TestConcurrentConnectSingleTransition(t *testing.T) {
	driver := newMockDriver(deviceP210)
	m := NewManager(driver)
	rec := &recorder{}
	m.AddListener(rec.listen)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Connect(context.Background(), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, driver.count("Connect"))
	assert.Equal(t, 1, rec.count())
}

func TestSelectDevice(t *testing.T) {
	testCases := []struct {
		name      string
		devices   []Device
		preferred string
		want      Device
		ok        bool
	}{
		{"Empty", nil, "p210", Device{}, false},
		{"PreferredLast", []Device{deviceA, deviceB, deviceP210}, "p210", deviceP210, true},
		{"CaseInsensitive", []Device{deviceA, {Address: "1", Name: "xp-P210"}}, "P210", Device{Address: "1", Name: "xp-P210"}, true},
		{"NoMatch", []Device{deviceB, deviceA}, "p210", deviceB, true},
		{"NoPreference", []Device{deviceA, deviceP210}, "", deviceA, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectDevice(tc.devices, tc.preferred)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := newError(KindConnectionFailed, "connect", errors.New("host is down"))
	assert.Equal(t, "connect: failed to connect to printer: host is down", err.Error())

	err = newError(KindNotConnected, "print text", nil)
	assert.Equal(t, "print text: no printer connected", err.Error())
	assert.Equal(t, KindTransport, KindOf(errors.New("plain")))
	assert.Equal(t, "not connected", KindNotConnected.String())
}
