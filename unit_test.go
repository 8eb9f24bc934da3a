package sdspi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
)

// The transport mock is created without any expectations in most tests here,
// the controller then fails the test on any hardware access.

func TestUnit_Init_rejectsOtherUnitNumbers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	unit := NewUnit(NewMockTransport(ctrl), NewMockClock(ctrl), 1)

	if err := unit.Init(); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("Unit.Init() error = %v, want %v", err, ErrInvalidUnit)
	}
}

func TestUnit_transferWithoutCard(t *testing.T) {
	tests := []struct {
		name string
		call func(u *Unit, buf []byte) error
	}{
		{
			name: "read",
			call: func(u *Unit, buf []byte) error { return u.Read(buf, 0, 1) },
		},
		{
			name: "write",
			call: func(u *Unit, buf []byte) error { return u.Write(buf, 0, 1) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			unit := NewUnit(NewMockTransport(ctrl), NewMockClock(ctrl), 0)

			buf := make([]byte, SectorSize)
			if err := tt.call(unit, buf); !errors.Is(err, ErrNoCard) {
				t.Errorf("transfer error = %v, want %v", err, ErrNoCard)
			}
		})
	}
}

func TestUnit_transferArgumentChecks(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		count   uint32
		wantErr error
	}{
		{
			name:    "zero count is a no-op",
			buf:     nil,
			count:   0,
			wantErr: nil,
		},
		{
			name:    "short buffer aborts before the bus is touched",
			buf:     make([]byte, SectorSize-1),
			count:   1,
			wantErr: ErrAborted,
		},
		{
			name:    "buffer for one sector does not cover two",
			buf:     make([]byte, SectorSize),
			count:   2,
			wantErr: ErrAborted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			unit := NewUnit(NewMockTransport(ctrl), NewMockClock(ctrl), 0)
			unit.Present = true
			unit.BlockSize = SectorSize
			unit.BlockShift = 9

			if err := unit.Read(tt.buf, 0, tt.count); !errors.Is(err, tt.wantErr) {
				t.Errorf("Unit.Read() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnit_Identify_absentLeavesBufferUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	unit := NewUnit(NewMockTransport(ctrl), NewMockClock(ctrl), 0)

	buf := make([]byte, IdentifySize)
	for i := range buf {
		buf[i] = 0xA5
	}

	if err := unit.Identify(buf); !errors.Is(err, ErrNoCard) {
		t.Errorf("Unit.Identify() error = %v, want %v", err, ErrNoCard)
	}
	for i, b := range buf {
		if b != 0xA5 {
			t.Fatalf("Unit.Identify() modified buf[%d] = 0x%02X on an absent card", i, b)
		}
	}
}

func TestUnit_Identify_fieldLayout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	unit := NewUnit(NewMockTransport(ctrl), NewMockClock(ctrl), 0)
	unit.Present = true
	unit.Card().CID = CID{
		ManufacturerID:  0x1B,
		ProductName:     "EMUSD",
		ProductRevision: 0x10,
		SerialNumber:    0x5D150001,
	}

	buf := make([]byte, IdentifySize)
	if err := unit.Identify(buf); err != nil {
		t.Fatalf("Unit.Identify() error = %v", err)
	}

	serial := buf[identifySerialOffset : identifySerialOffset+identifySerialLen]
	if want := []byte("            5D150001"); !bytes.Equal(serial, want) {
		t.Errorf("serial field = %q, want %q", serial, want)
	}

	fwRev := buf[identifyFwRevOffset : identifyFwRevOffset+identifyFwRevLen]
	if want := []byte("1.0     "); !bytes.Equal(fwRev, want) {
		t.Errorf("firmware revision field = %q, want %q", fwRev, want)
	}

	model := buf[identifyModelOffset : identifyModelOffset+identifyModelLen]
	if want := []byte("mfg.1B  SD-CARD EMUSD                   "); !bytes.Equal(model, want) {
		t.Errorf("model field = %q, want %q", model, want)
	}
}

func TestUnit_notSupportedOperations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	unit := NewUnit(NewMockTransport(ctrl), NewMockClock(ctrl), 0)

	tests := []struct {
		name string
		call func() error
	}{
		{name: "transfer mode", call: func() error { return unit.SetTransferMode(0) }},
		{name: "pio mode", call: func() error { return unit.SetPIOMode(0) }},
		{name: "ata passthrough", call: func() error { return unit.ATAPassthrough(nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrNotSupported) {
				t.Errorf("error = %v, want %v", err, ErrNotSupported)
			}
		})
	}
}

func TestUnit_Capability(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	unit := NewUnit(NewMockTransport(ctrl), NewMockClock(ctrl), 0)

	if got := unit.Capability(); got != CapBlock {
		t.Errorf("Unit.Capability() = %v, want %v", got, CapBlock)
	}
	if got := unit.Capability(); got&CapOptical != 0 {
		t.Errorf("Unit.Capability() = %v, optical must never be set", got)
	}
}
