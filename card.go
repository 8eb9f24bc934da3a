package sdspi

import (
	"errors"
	"fmt"
	"time"

	"github.com/aligator/sdspi/checkpoint"
)

// CardType identifies the protocol personality detected during bring-up.
type CardType uint8

const (
	CardNone CardType = iota
	CardSD1           // SD v1.x, byte addressed
	CardSD2           // SD v2.0 standard capacity, byte addressed
	CardSDHC          // SDHC/SDXC, block addressed
	CardMMC
)

func (t CardType) String() string {
	switch t {
	case CardSD1:
		return "SD v1.x"
	case CardSD2:
		return "SD v2.0"
	case CardSDHC:
		return "SDHC/SDXC"
	case CardMMC:
		return "MMC"
	}
	return "no card"
}

// blockAddressed reports whether commands take an LBA instead of a byte
// address for this card type.
func (t CardType) blockAddressed() bool {
	return t == CardSDHC
}

// These errors may occur while bringing up a card.
var (
	ErrNoCard          = errors.New("no card")
	ErrUnsupportedCard = errors.New("the card configuration is not supported")
)

const (
	// CMD8 argument: 2.7-3.6V range plus the 0xAA check pattern the card
	// has to echo back.
	checkPattern = 0x1AA

	// ACMD41 host capacity support bit and the matching OCR card capacity
	// status bit.
	hostCapacitySupport = uint32(1) << 30
	cardCapacityStatus  = uint32(1) << 30

	// SectorSize is the fixed logical sector size of the block device.
	SectorSize = 512
)

// Bring-up deadlines and delays.
const (
	settleDelay = 10 * time.Millisecond
	initTimeout = 1 * time.Second
)

// Card is the protocol level session state for one physical card. A Card is
// owned by its Unit and every field except StrictCRC is re-derived by each
// bring-up.
type Card struct {
	transport Transport
	clock     Clock

	Type         CardType
	TotalSectors uint32
	BlockSize    uint32
	CSD          CSD
	CID          CID

	// StrictCRC additionally verifies the CRC7 of the CSD/CID registers
	// and the CRC16 of every data block. Off by default, real SPI mode
	// does not check them either.
	StrictCRC bool
}

// NewCard creates a protocol session on the given transport.
func NewCard(transport Transport, clock Clock) *Card {
	return &Card{
		transport: transport,
		clock:     clock,
	}
}

// init runs the full bring-up sequence. The transport must already be
// obtained by the caller. On any failure the card state is invalidated.
func (c *Card) init() error {
	if err := c.bringUp(); err != nil {
		c.Type = CardNone
		c.TotalSectors = 0
		c.BlockSize = 0
		return err
	}
	return nil
}

func (c *Card) bringUp() error {
	c.Type = CardNone
	c.TotalSectors = 0
	c.BlockSize = 0

	c.transport.SetSpeed(SpeedSlow)

	// At least 74 clocks with the card deselected, then a settle delay, so
	// the internal power-on sequence can finish before the first command.
	c.transport.Deselect()
	filler := make([]byte, 10)
	for i := range filler {
		filler[i] = fillerByte
	}
	if err := c.transport.Write(filler); err != nil {
		return checkpoint.From(err)
	}
	c.clock.Wait(settleDelay)

	r, err := c.command(cmdGoIdleState, 0)
	if err != nil {
		return err
	}
	if r != r1IdleState {
		// Not even GO_IDLE_STATE is answered, there is no compliant
		// card on the bus.
		return checkpoint.Wrap(fmt.Errorf("CMD0 response 0x%02X", r), ErrNoCard)
	}

	if err := c.detectType(); err != nil {
		return err
	}

	if err := c.readRegisters(); err != nil {
		return err
	}

	// The fragile part is over, switch to the fast clock for transfers.
	c.transport.SetSpeed(SpeedFast)

	return nil
}

// detectType classifies the card by probing the interface condition and then
// polling the matching operating-condition command until the card is ready.
func (c *Card) detectType() error {
	r, err := c.command(cmdSendIfCond, checkPattern)
	if err != nil {
		return err
	}

	if r&r1IllegalCommand != 0 {
		// SEND_IF_COND is unknown to the card, so it predates SD v2.
		return c.initLegacy()
	}

	echo, err := c.response32()
	if err != nil {
		return err
	}
	if echo&0xFFF != checkPattern {
		return checkpoint.Wrap(fmt.Errorf("CMD8 echo 0x%08X", echo), ErrNoCard)
	}

	return c.initV2()
}

// initV2 handles SD v2 cards: operating-condition poll with host capacity
// support, then the OCR capacity bit decides between SD2 and SDHC.
func (c *Card) initV2() error {
	if err := c.pollOpCond(acmdSendOpCond, hostCapacitySupport); err != nil {
		return err
	}

	r, err := c.command(cmdReadOCR, 0)
	if err != nil {
		return err
	}
	if r != 0 {
		return checkpoint.Wrap(fmt.Errorf("CMD58 response 0x%02X", r), ErrNoCard)
	}
	ocr, err := c.response32()
	if err != nil {
		return err
	}

	if ocr&cardCapacityStatus != 0 {
		c.Type = CardSDHC
	} else {
		c.Type = CardSD2
	}

	return nil
}

// initLegacy handles pre-v2 cards: a clean answer to the SD application
// operating-condition command means SD v1.x, everything else falls back to
// the generic MMC SEND_OP_COND.
func (c *Card) initLegacy() error {
	r, err := c.command(acmdSendOpCond, 0)
	if err != nil {
		return err
	}

	op := uint8(acmdSendOpCond)
	if r <= r1IdleState {
		c.Type = CardSD1
	} else {
		c.Type = CardMMC
		op = cmdSendOpCond
	}

	if err := c.pollOpCond(op, 0); err != nil {
		return err
	}

	// Pre-v2 cards may come up with a different block length.
	r, err = c.command(cmdSetBlockLen, SectorSize)
	if err != nil {
		return err
	}
	return expectOK(cmdSetBlockLen, r)
}

// pollOpCond repeats the operating-condition command until the card reports
// ready or the init deadline passes.
func (c *Card) pollOpCond(cmd uint8, arg uint32) error {
	deadline := c.clock.Set(initTimeout)
	for {
		r, err := c.command(cmd, arg)
		if err != nil {
			return err
		}
		if r == 0 {
			return nil
		}
		if c.clock.Expired(deadline) {
			c.Type = CardNone
			return checkpoint.Wrap(ErrTimeout, ErrNoCard)
		}
	}
}

// readRegisters fetches and decodes CID and CSD and derives the capacity.
func (c *Card) readRegisters() error {
	var raw [16]byte

	r, err := c.command(cmdSendCID, 0)
	if err != nil {
		return err
	}
	if err := expectOK(cmdSendCID, r); err != nil {
		return err
	}
	if err := c.readData(raw[:]); err != nil {
		return err
	}
	if err := c.checkRegisterCRC(raw[:]); err != nil {
		return err
	}
	c.CID = decodeCID(raw[:])

	r, err = c.command(cmdSendCSD, 0)
	if err != nil {
		return err
	}
	if err := expectOK(cmdSendCSD, r); err != nil {
		return err
	}
	if err := c.readData(raw[:]); err != nil {
		return err
	}
	if err := c.checkRegisterCRC(raw[:]); err != nil {
		return err
	}
	csd, err := decodeCSD(raw[:])
	if err != nil {
		return err
	}
	c.CSD = csd

	sectors, err := csd.sectorCount(c.Type)
	if err != nil {
		return err
	}
	c.TotalSectors = sectors
	c.BlockSize = uint32(1) << csd.ReadBlockLen

	return nil
}

// checkRegisterCRC verifies the CRC7 that terminates the CSD and CID
// registers, but only with StrictCRC enabled.
func (c *Card) checkRegisterCRC(raw []byte) error {
	if !c.StrictCRC {
		return nil
	}
	if got := raw[15] >> 1; got != crc7(raw[:15]) {
		return checkpoint.Wrap(fmt.Errorf("register checksum 0x%02X, expected 0x%02X", got, crc7(raw[:15])), ErrBadResponse)
	}
	return nil
}
