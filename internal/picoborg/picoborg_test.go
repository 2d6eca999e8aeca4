package picoborg

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/smazurov/marvin/internal/hw"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// idOp is the identity read every New performs.
func idOp(addr uint16, id byte) i2ctest.IO {
	return i2ctest.IO{Addr: addr, W: []byte{cmdGetID}, R: []byte{cmdGetID, id, 0, 0}}
}

func newPlayback(ops ...i2ctest.IO) *i2ctest.Playback {
	all := append([]i2ctest.IO{idOp(DefaultAddress, BoardID)}, ops...)
	return &i2ctest.Playback{Ops: all, DontPanic: true}
}

// scriptedBus answers reads from a table and can be told to fail.
type scriptedBus struct {
	replies map[uint16][]byte
	failAll bool
	writes  [][]byte
}

func (s *scriptedBus) String() string                  { return "scripted" }
func (s *scriptedBus) SetSpeed(physic.Frequency) error { return nil }
func (s *scriptedBus) Tx(addr uint16, w, r []byte) error {
	if s.failAll {
		return errors.New("remote I/O error")
	}
	if len(r) == 0 {
		s.writes = append(s.writes, append([]byte(nil), w...))
		return nil
	}
	reply, ok := s.replies[addr]
	if !ok {
		return errors.New("no ack")
	}
	copy(r, reply)
	return nil
}

func TestNew(t *testing.T) {
	t.Run("genuine board", func(t *testing.T) {
		pb := newPlayback()
		b, err := New(pb, DefaultAddress, testLogger)
		require.NoError(t, err)
		assert.Equal(t, BoardID, b.ID())
		assert.Equal(t, DefaultAddress, b.Address())
		require.NoError(t, pb.Close())
	})

	t.Run("identity mismatch is not fatal", func(t *testing.T) {
		pb := &i2ctest.Playback{Ops: []i2ctest.IO{idOp(DefaultAddress, 0x42)}, DontPanic: true}
		b, err := New(pb, DefaultAddress, testLogger)
		require.NoError(t, err)
		assert.Equal(t, byte(0x42), b.ID())
	})

	t.Run("nothing answers", func(t *testing.T) {
		_, err := New(&scriptedBus{failAll: true}, DefaultAddress, testLogger)
		require.Error(t, err)
		assert.ErrorIs(t, err, hw.ErrDeviceUnavailable)
	})
}

func TestSetMotor(t *testing.T) {
	tests := []struct {
		name  string
		motor Motor
		power float64
		want  []byte
	}{
		{"motor1 half forward", Motor1, 0.5, []byte{cmdSetBFwd, 128}},
		{"motor1 full reverse", Motor1, -1, []byte{cmdSetBRev, 255}},
		{"motor2 quarter forward", Motor2, 0.25, []byte{cmdSetAFwd, 64}},
		{"motor2 reverse", Motor2, -0.5, []byte{cmdSetARev, 128}},
		{"zero is forward", Motor1, 0, []byte{cmdSetBFwd, 0}},
		{"saturates above one", Motor2, 1.5, []byte{cmdSetAFwd, 255}},
		{"saturates below minus one", Motor1, -3, []byte{cmdSetBRev, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := newPlayback(i2ctest.IO{Addr: DefaultAddress, W: tt.want})
			b, err := New(pb, DefaultAddress, testLogger)
			require.NoError(t, err)

			got, err := b.SetMotor(tt.motor, tt.power)
			require.NoError(t, err)
			assert.Equal(t, tt.power, got)
			require.NoError(t, pb.Close())
		})
	}
}

func TestSetMotorUnknown(t *testing.T) {
	b, err := New(newPlayback(), DefaultAddress, testLogger)
	require.NoError(t, err)

	_, err = b.SetMotor(Motor(7), 0.5)
	assert.Error(t, err)
}

func TestSetMotors(t *testing.T) {
	pb := newPlayback(
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdSetAllFwd, 191}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdSetAllRev, 191}},
	)
	b, err := New(pb, DefaultAddress, testLogger)
	require.NoError(t, err)

	_, err = b.SetMotors(0.75)
	require.NoError(t, err)
	_, err = b.SetMotors(-0.75)
	require.NoError(t, err)
	require.NoError(t, pb.Close())
}

func TestGetMotor(t *testing.T) {
	tests := []struct {
		name  string
		motor Motor
		reply []byte
		want  float64
	}{
		{"forward", Motor1, []byte{cmdGetB, valueFwd, 255, 0}, 1},
		{"reverse", Motor2, []byte{cmdGetA, valueRev, 51, 0}, -0.2},
		{"off", Motor1, []byte{cmdGetB, 0, 200, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.reply[0]
			pb := newPlayback(i2ctest.IO{Addr: DefaultAddress, W: []byte{cmd}, R: tt.reply})
			b, err := New(pb, DefaultAddress, testLogger)
			require.NoError(t, err)

			got, err := b.GetMotor(tt.motor)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFlags(t *testing.T) {
	pb := newPlayback(
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdGetEPO}, R: []byte{cmdGetEPO, valueOn, 0, 0}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdResetEPO, 0}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdGetEPO}, R: []byte{cmdGetEPO, valueOff, 0, 0}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdSetLED, valueOn}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdGetDriveFault}, R: []byte{cmdGetDriveFault, valueOff, 0, 0}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdSetFailsafe, valueOn}},
	)
	b, err := New(pb, DefaultAddress, testLogger)
	require.NoError(t, err)

	tripped, err := b.GetEPO()
	require.NoError(t, err)
	assert.True(t, tripped)

	require.NoError(t, b.ResetEPO())

	tripped, err = b.GetEPO()
	require.NoError(t, err)
	assert.False(t, tripped)

	require.NoError(t, b.SetLED(true))

	fault, err := b.GetDriveFault()
	require.NoError(t, err)
	assert.False(t, fault)

	require.NoError(t, b.SetCommsFailsafe(true))
	require.NoError(t, pb.Close())
}

func TestTransportError(t *testing.T) {
	bus := &scriptedBus{replies: map[uint16][]byte{DefaultAddress: {cmdGetID, BoardID, 0, 0}}}
	b, err := New(bus, DefaultAddress, testLogger)
	require.NoError(t, err)

	bus.failAll = true
	_, err = b.SetMotor(Motor1, 0.5)
	require.Error(t, err)
	assert.ErrorIs(t, err, hw.ErrTransport)
	assert.Equal(t, hw.CodeTransport, hw.CodeOf(err))
}

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestRelease(t *testing.T) {
	t.Run("switches motors off once", func(t *testing.T) {
		bus := &scriptedBus{replies: map[uint16][]byte{DefaultAddress: {cmdGetID, BoardID, 0, 0}}}
		b, err := New(bus, DefaultAddress, testLogger)
		require.NoError(t, err)
		closer := &countingCloser{}
		b.closer = closer

		b.Release()
		b.Release()

		assert.Equal(t, [][]byte{{cmdAllOff, 0}}, bus.writes)
		assert.Equal(t, 1, closer.closed)
	})

	t.Run("still closes after a failed write", func(t *testing.T) {
		bus := &scriptedBus{replies: map[uint16][]byte{DefaultAddress: {cmdGetID, BoardID, 0, 0}}}
		b, err := New(bus, DefaultAddress, testLogger)
		require.NoError(t, err)
		closer := &countingCloser{}
		b.closer = closer

		bus.failAll = true
		b.Release()

		assert.Equal(t, 1, closer.closed)
	})
}

func TestPWMFor(t *testing.T) {
	assert.Equal(t, byte(0), pwmFor(0))
	assert.Equal(t, byte(128), pwmFor(0.5))
	assert.Equal(t, byte(128), pwmFor(-0.5))
	assert.Equal(t, byte(255), pwmFor(1))
	assert.Equal(t, byte(255), pwmFor(42))
}

func TestTickBytes(t *testing.T) {
	tests := []struct {
		counts int16
		hi, lo byte
	}{
		{0, 0, 0},
		{300, 0x01, 0x2C},
		{-300, 0x01, 0x2C},
		{32767, 0x7F, 0xFF},
		{-32768, 0x80, 0x00},
	}
	for _, tt := range tests {
		hi, lo := tickBytes(tt.counts)
		assert.Equal(t, tt.hi, hi, "hi byte for %d", tt.counts)
		assert.Equal(t, tt.lo, lo, "lo byte for %d", tt.counts)
	}
}

func TestEncoderMoveMotor(t *testing.T) {
	pb := newPlayback(
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdMoveBFwd, 0x01, 0x2C}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdMoveARev, 0x00, 0x64}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdMoveAllRev, 0x00, 0x0A}},
	)
	b, err := New(pb, DefaultAddress, testLogger)
	require.NoError(t, err)

	require.NoError(t, b.EncoderMoveMotor(Motor1, 300))
	require.NoError(t, b.EncoderMoveMotor(Motor2, -100))
	require.NoError(t, b.EncoderMoveMotors(-10))
	require.NoError(t, pb.Close())
}

func TestWaitWhileEncoderMoving(t *testing.T) {
	t.Run("times out while moving", func(t *testing.T) {
		bus := &scriptedBus{replies: map[uint16][]byte{DefaultAddress: {cmdGetID, BoardID, 0, 0}}}
		b, err := New(bus, DefaultAddress, testLogger)
		require.NoError(t, err)
		bus.replies[DefaultAddress] = []byte{cmdGetEncMoving, valueOn, 0, 0}

		start := time.Now()
		finished, err := b.WaitWhileEncoderMoving(200 * time.Millisecond)
		require.NoError(t, err)
		assert.False(t, finished)
		assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	})

	t.Run("returns once stopped", func(t *testing.T) {
		bus := &scriptedBus{replies: map[uint16][]byte{DefaultAddress: {cmdGetID, BoardID, 0, 0}}}
		b, err := New(bus, DefaultAddress, testLogger)
		require.NoError(t, err)
		bus.replies[DefaultAddress] = []byte{cmdGetEncMoving, valueOff, 0, 0}

		finished, err := b.WaitWhileEncoderMoving(time.Second)
		require.NoError(t, err)
		assert.True(t, finished)
	})

	t.Run("bus error", func(t *testing.T) {
		bus := &scriptedBus{replies: map[uint16][]byte{DefaultAddress: {cmdGetID, BoardID, 0, 0}}}
		b, err := New(bus, DefaultAddress, testLogger)
		require.NoError(t, err)
		bus.failAll = true

		_, err = b.WaitWhileEncoderMoving(time.Second)
		assert.ErrorIs(t, err, hw.ErrTransport)
	})
}

func TestScan(t *testing.T) {
	bus := &scriptedBus{replies: map[uint16][]byte{
		0x10: {cmdGetID, BoardID, 0, 0},
		0x20: {cmdGetID, 0x33, 0, 0},
		0x44: {cmdGetID, BoardID, 0, 0},
	}}

	assert.Equal(t, []uint16{0x10, 0x44}, Scan(bus, testLogger))
	assert.Empty(t, Scan(&scriptedBus{}, testLogger))
}

func TestSetAddress(t *testing.T) {
	addressSettle = 0
	t.Cleanup(func() { addressSettle = 100 * time.Millisecond })

	t.Run("moves the board", func(t *testing.T) {
		pb := newPlayback(
			i2ctest.IO{Addr: DefaultAddress, W: []byte{cmdSetI2CAddress, 0x50}},
			idOp(0x50, BoardID),
		)
		b, err := New(pb, DefaultAddress, testLogger)
		require.NoError(t, err)

		require.NoError(t, b.SetAddress(0x50))
		assert.Equal(t, uint16(0x50), b.Address())
		require.NoError(t, pb.Close())
	})

	t.Run("rejects out of range", func(t *testing.T) {
		b, err := New(newPlayback(), DefaultAddress, testLogger)
		require.NoError(t, err)

		assert.Error(t, b.SetAddress(0x02))
		assert.Error(t, b.SetAddress(0x78))
		assert.Equal(t, DefaultAddress, b.Address())
	})

	t.Run("keeps old address when nothing answers", func(t *testing.T) {
		bus := &scriptedBus{replies: map[uint16][]byte{DefaultAddress: {cmdGetID, BoardID, 0, 0}}}
		b, err := New(bus, DefaultAddress, testLogger)
		require.NoError(t, err)

		err = b.SetAddress(0x60)
		assert.ErrorIs(t, err, hw.ErrDeviceUnavailable)
		assert.Equal(t, DefaultAddress, b.Address())
	})
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"0x44", 0x44, false},
		{"68", 0x44, false},
		{" 0x77 ", 0x77, false},
		{"0x03", 0x03, false},
		{"0x02", 0, true},
		{"0x78", 0, true},
		{"0x10000", 0, true},
		{"robot", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
