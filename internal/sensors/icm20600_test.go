package sensors

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/swingsense/internal/imu"
	"github.com/relabs-tech/swingsense/internal/timeutil"
)

func newTestDevice(t *testing.T, bus Bus, mutate func(*Opts)) (*ICM20600, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	opts := DefaultOpts
	opts.Clock = clock
	if mutate != nil {
		mutate(&opts)
	}
	d, err := NewICM20600(bus, opts)
	require.NoError(t, err)
	return d, clock
}

func TestInit_Sequence(t *testing.T) {
	bus := NewFakeBus()
	d, clock := newTestDevice(t, bus, func(o *Opts) {
		o.AccelRange = 2
		o.GyroRange = 1
	})

	who, err := d.Init()
	require.NoError(t, err)
	assert.Equal(t, byte(WhoAmIICM20600), who)

	want := []BusOp{
		{Op: "write", Addr: 0x69, Reg: regPwrMgmt1, Val: 0x01, Len: 1},
		{Op: "write", Addr: 0x69, Reg: regAccelConfig, Val: 2 << 3, Len: 1},
		{Op: "write", Addr: 0x69, Reg: regGyroConfig, Val: 1 << 3, Len: 1},
		{Op: "read", Addr: 0x69, Reg: regWhoAmI, Val: WhoAmIICM20600, Len: 1},
	}
	if diff := cmp.Diff(want, bus.Ops()); diff != "" {
		t.Errorf("bus transactions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 10 * time.Millisecond}, clock.Sleeps())
	assert.Equal(t, 8, d.AccelRangeG())
	assert.Equal(t, 500, d.GyroRangeDPS())
}

func TestInit_WriteFailureStops(t *testing.T) {
	bus := NewFakeBus()
	nack := errors.New("nack")
	bus.WriteErr[regAccelConfig] = nack
	d, clock := newTestDevice(t, bus, nil)

	_, err := d.Init()
	require.Error(t, err)

	var be *BusError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "write", be.Op)
	assert.Equal(t, byte(regAccelConfig), be.Reg)
	assert.ErrorIs(t, err, nack)

	// PWR_MGMT_1 then the failing ACCEL_CONFIG, nothing after.
	assert.Len(t, bus.Ops(), 2)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, clock.Sleeps())
}

func TestInit_IdentityMismatch(t *testing.T) {
	bus := NewFakeBus()
	bus.Set(regWhoAmI, 0x68)
	d, _ := newTestDevice(t, bus, nil)

	who, err := d.Init()
	assert.ErrorIs(t, err, ErrUnexpectedID)
	assert.Equal(t, byte(0x68), who)
}

func TestInit_IdentityCheckDisabled(t *testing.T) {
	bus := NewFakeBus()
	bus.Set(regWhoAmI, 0x68)
	d, _ := newTestDevice(t, bus, func(o *Opts) { o.ExpectedID = 0 })

	who, err := d.Init()
	require.NoError(t, err)
	assert.Equal(t, byte(0x68), who)
}

func TestReadSample_Converts(t *testing.T) {
	bus := NewFakeBus()
	bus.Set(regAccelXoutH,
		0x40, 0x00, 0x00, 0x00, 0x00, 0x00, // accel
		0xAA, 0xBB, // temperature
		0x00, 0x83, 0x00, 0x00, 0xFF, 0x7D, // gyro
	)
	d, _ := newTestDevice(t, bus, nil)

	s, err := d.ReadSample()
	require.NoError(t, err)
	assert.Equal(t, imu.Sample{Ax: 1, Gx: 1, Gz: -1}, s)

	ops := bus.Ops()
	require.Len(t, ops, 1)
	assert.Equal(t, byte(regAccelXoutH), ops[0].Reg)
	assert.Equal(t, imu.RawBlockSize, ops[0].Len)
}

func TestReadSample_ZeroIsZero(t *testing.T) {
	d, _ := newTestDevice(t, NewFakeBus(), nil)
	s, err := d.ReadSample()
	require.NoError(t, err)
	assert.Equal(t, imu.Sample{}, s)
}

func TestReadSample_RangeScales(t *testing.T) {
	bus := NewFakeBus()
	bus.Set(regAccelXoutH, 0x40, 0x00)
	bus.Set(regGyroXoutH, 0x00, 0x83)
	d, _ := newTestDevice(t, bus, func(o *Opts) {
		o.AccelRange = 1 // 8192 LSB/g
		o.GyroRange = 0
	})

	s, err := d.ReadSample()
	require.NoError(t, err)
	assert.Equal(t, float32(2), s.Ax)
	assert.Equal(t, float32(1), s.Gx)
}

func TestReadSample_BusErrors(t *testing.T) {
	t.Run("short read", func(t *testing.T) {
		bus := NewFakeBus()
		bus.ShortRead = true
		d, _ := newTestDevice(t, bus, nil)

		_, err := d.ReadSample()
		var be *BusError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "read", be.Op)
		assert.ErrorIs(t, err, ErrShortRead)
	})

	t.Run("transaction failure", func(t *testing.T) {
		bus := NewFakeBus()
		bus.ReadErr = errors.New("restart failed")
		d, _ := newTestDevice(t, bus, nil)

		_, err := d.ReadSample()
		var be *BusError
		assert.True(t, errors.As(err, &be))
		// No retry inside the driver.
		assert.Len(t, bus.Ops(), 1)
	})
}

func TestNewICM20600_RejectsRanges(t *testing.T) {
	_, err := NewICM20600(NewFakeBus(), Opts{AccelRange: 4})
	assert.Error(t, err)
	_, err = NewICM20600(NewFakeBus(), Opts{GyroRange: 9})
	assert.Error(t, err)
}

func TestRegisterMap(t *testing.T) {
	seen := map[byte]bool{}
	for _, r := range RegisterMap() {
		assert.False(t, seen[r.Address], "duplicate register 0x%02X", r.Address)
		seen[r.Address] = true
		assert.NotEmpty(t, r.Name)
		assert.True(t, r.Readable(), "%s should be readable", r.Name)
	}
	for _, reg := range []byte{regPwrMgmt1, regAccelConfig, regGyroConfig, regAccelXoutH, regWhoAmI} {
		assert.True(t, seen[reg], "register 0x%02X missing from map", reg)
	}
}
