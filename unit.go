// Package sdspi drives SD and MMC cards over a byte oriented SPI transport
// and exposes them as a fixed geometry, ATA style block device: a flat LBA
// space of 512 byte sectors plus identify data and a CHS view.
//
// The physical bus, the timer and everything above the block device contract
// (unit discovery, SCSI dispatch, logging) are collaborators, see Transport
// and Clock.
package sdspi

import (
	"errors"
	"fmt"

	"github.com/aligator/sdspi/checkpoint"
)

// These errors may occur while using a unit.
var (
	ErrNotSupported = errors.New("command not supported")
	ErrAborted      = errors.New("transfer aborted")
	ErrInvalidUnit  = errors.New("invalid unit number")
)

// Identify block layout. The offsets are the classic ATA identify word
// numbers converted to bytes.
const (
	IdentifySize = 512

	identifySerialOffset = 10 * 2
	identifySerialLen    = 20
	identifyFwRevOffset  = 23 * 2
	identifyFwRevLen     = 8
	identifyModelOffset  = 27 * 2
	identifyModelLen     = 40
)

// Capability describes the feature class of a unit so the host framework can
// route commands without probing for failures.
type Capability uint8

const (
	// CapBlock marks a plain block device with a flat LBA space.
	CapBlock Capability = 1 << iota
	// CapOptical marks ATAPI/optical features. Never set by this driver,
	// the SPI transport has no optical media.
	CapOptical
)

// Unit is one logical block device instance. Exactly one unit (number 0) is
// supported, it is created once at attach time and populated or invalidated
// by Init.
type Unit struct {
	UnitNum uint8

	Present       bool
	MediumPresent bool

	Cylinders       uint16
	Heads           uint16
	SectorsPerTrack uint16
	BlockSize       uint32
	BlockShift      uint

	card *Card
}

// NewUnit creates the unit for the given transport and clock. The unit starts
// absent, Init has to run before any I/O.
func NewUnit(transport Transport, clock Clock, unitNum uint8) *Unit {
	return &Unit{
		UnitNum: unitNum,
		card:    NewCard(transport, clock),
	}
}

// Card exposes the protocol session of the unit, mainly for diagnostics and
// for flags like StrictCRC.
func (u *Unit) Card() *Card {
	return u.card
}

// Capability reports what this unit can do. There is no optical support on
// this transport, callers should check this instead of probing ATAPI style
// commands.
func (u *Unit) Capability() Capability {
	return CapBlock
}

// Init runs the card bring-up sequence and computes the geometry. On any
// failure the unit is left fully absent. A unit number other than 0 is
// rejected before the hardware is touched.
func (u *Unit) Init() error {
	if u.UnitNum != 0 {
		return checkpoint.From(ErrInvalidUnit)
	}

	u.Present = false
	u.MediumPresent = false
	u.Cylinders = 0
	u.Heads = 0
	u.SectorsPerTrack = 0
	u.BlockSize = 0
	u.BlockShift = 0

	t := u.card.transport
	t.Obtain()
	defer func() {
		t.Deselect()
		t.Release()
	}()

	if err := u.card.init(); err != nil {
		return err
	}

	geometry := computeGeometry(u.card.TotalSectors)
	u.Cylinders = geometry.Cylinders
	u.Heads = geometry.Heads
	u.SectorsPerTrack = geometry.SectorsPerTrack
	u.BlockSize = u.card.BlockSize
	u.BlockShift = blockShift(u.card.BlockSize)
	u.Present = true
	u.MediumPresent = true

	return nil
}

// Identify fills the 512 byte ATA identify block in buf with the serial,
// firmware revision and model strings synthesized from the CID. buf must hold
// at least IdentifySize bytes and is not touched when no card is present.
func (u *Unit) Identify(buf []byte) error {
	if !u.Present {
		return checkpoint.From(ErrNoCard)
	}

	block := buf[:IdentifySize]
	for i := range block {
		block[i] = 0
	}

	cid := u.card.CID

	serial := block[identifySerialOffset : identifySerialOffset+identifySerialLen]
	fill(serial, ' ')
	for i := 0; i < 8; i++ {
		nibble := byte(cid.SerialNumber>>uint(28-4*i)) & 0x0F
		serial[identifySerialLen-8+i] = hexDigit(nibble)
	}

	fwRev := block[identifyFwRevOffset : identifyFwRevOffset+identifyFwRevLen]
	fill(fwRev, ' ')
	fwRev[0] = hexDigit(cid.ProductRevision >> 4)
	fwRev[1] = '.'
	fwRev[2] = hexDigit(cid.ProductRevision & 0x0F)

	model := block[identifyModelOffset : identifyModelOffset+identifyModelLen]
	fill(model, ' ')
	copy(model, "mfg.")
	model[4] = hexDigit(cid.ManufacturerID >> 4)
	model[5] = hexDigit(cid.ManufacturerID & 0x0F)
	copy(model[8:], "SD-CARD")
	copy(model[16:], cid.ProductName)

	return nil
}

// Read transfers count sectors starting at lba into buf.
// All protocol level failures are reported as an aborted transfer, the
// underlying cause stays in the error chain for diagnostics only.
func (u *Unit) Read(buf []byte, lba, count uint32) error {
	return u.transfer(buf, lba, count, (*Card).readBlocks)
}

// Write transfers count sectors from buf to the card starting at lba.
func (u *Unit) Write(buf []byte, lba, count uint32) error {
	return u.transfer(buf, lba, count, (*Card).writeBlocks)
}

func (u *Unit) transfer(buf []byte, lba, count uint32, op func(*Card, uint32, uint32, []byte) error) error {
	if u.UnitNum != 0 {
		return checkpoint.From(ErrInvalidUnit)
	}
	if !u.Present {
		return checkpoint.From(ErrNoCard)
	}
	if count == 0 {
		return nil
	}
	if uint32(len(buf)) < count<<u.BlockShift {
		return checkpoint.Wrap(fmt.Errorf("buffer of %d bytes for %d sectors", len(buf), count), ErrAborted)
	}

	t := u.card.transport
	t.Obtain()
	defer func() {
		t.Deselect()
		t.Release()
	}()

	if err := op(u.card, lba, count, buf); err != nil {
		return checkpoint.Wrap(err, ErrAborted)
	}
	return nil
}

// Geometry returns the CHS view and the block size of the unit.
func (u *Unit) Geometry() (cylinders, heads, sectorsPerTrack uint16, blockSize uint32) {
	return u.Cylinders, u.Heads, u.SectorsPerTrack, u.BlockSize
}

// SetTransferMode is not applicable, the SPI transport has no PIO or DMA
// modes to select.
func (u *Unit) SetTransferMode(mode uint8) error {
	return checkpoint.From(ErrNotSupported)
}

// SetPIOMode is not applicable, see SetTransferMode.
func (u *Unit) SetPIOMode(pio uint8) error {
	return checkpoint.From(ErrNotSupported)
}

// ATAPassthrough is not supported, there is no real ATA device behind the
// shim that could execute raw task files.
func (u *Unit) ATAPassthrough(cmd []byte) error {
	return checkpoint.From(ErrNotSupported)
}

func fill(buf []byte, b byte) {
	for i := range buf {
		buf[i] = b
	}
}

// hexDigit maps a nibble to its ASCII character, 0-9 then A-F.
func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + n - 10
}
