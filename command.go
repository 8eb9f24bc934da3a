package sdspi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aligator/sdspi/checkpoint"
)

// The SD/MMC command set used by this driver. cmdApp marks application
// specific commands which need an APP_CMD prefix before the command itself.
const (
	cmdGoIdleState        = 0  // CMD0
	cmdSendOpCond         = 1  // CMD1, MMC only
	cmdSendIfCond         = 8  // CMD8
	cmdSendCSD            = 9  // CMD9
	cmdSendCID            = 10 // CMD10
	cmdStopTransmission   = 12 // CMD12
	cmdSetBlockLen        = 16 // CMD16
	cmdReadSingleBlock    = 17 // CMD17
	cmdReadMultipleBlock  = 18 // CMD18
	cmdWriteSingleBlock   = 24 // CMD24
	cmdWriteMultipleBlock = 25 // CMD25
	cmdAppCmd             = 55 // CMD55
	cmdReadOCR            = 58 // CMD58

	cmdApp = 0x80 // marker bit, not part of the command index on the wire

	acmdSetWrBlockEraseCount = cmdApp | 23 // ACMD23
	acmdSendOpCond           = cmdApp | 41 // ACMD41
)

const (
	// R1 status bits.
	r1IdleState      = 0x01
	r1IllegalCommand = 0x04

	// Checksums for the two commands the card verifies while it is still
	// in native mode. Everything else gets a dummy value because CRC
	// checking is disabled in SPI mode.
	crcGoIdleState = 0x95
	crcSendIfCond  = 0x87
	crcDummy       = 0xFF

	// How many bytes to poll for an R1 response before giving up.
	responsePollLimit = 10
)

// These errors may occur while talking to the card.
var (
	ErrTimeout     = errors.New("the card did not answer in time")
	ErrBadResponse = errors.New("unexpected response from the card")
)

// command sends a 6 byte command frame and polls for the R1 response.
// The returned byte is the last byte read from the bus, so a caller can still
// look at the raw value when the card never produced a valid response.
//
// Commands with the cmdApp marker are prefixed by APP_CMD. If APP_CMD itself
// already fails with anything above "idle" its response is returned directly
// and the application command is not sent.
func (c *Card) command(cmd uint8, arg uint32) (uint8, error) {
	if cmd&cmdApp != 0 {
		r, err := c.command(cmdAppCmd, 0)
		if err != nil {
			return r, err
		}
		if r > r1IdleState {
			return r, nil
		}
		cmd &^= cmdApp
	}

	if cmd != cmdStopTransmission {
		// Re-frame the card before sending. STOP_TRANSMISSION is the
		// exception, it has to go out while the card is still selected
		// in the middle of a transfer.
		c.transport.Deselect()
		c.transport.Select()
		if err := c.waitReady(readyTimeout); err != nil {
			return 0xFF, err
		}
	}

	frame := [6]byte{0x40 | cmd, 0, 0, 0, 0, crcDummy}
	binary.BigEndian.PutUint32(frame[1:5], arg)
	switch cmd {
	case cmdGoIdleState:
		frame[5] = crcGoIdleState
	case cmdSendIfCond:
		frame[5] = crcSendIfCond
	}

	if err := c.transport.Write(frame[:]); err != nil {
		return 0xFF, checkpoint.From(err)
	}

	if cmd == cmdStopTransmission {
		// The card emits one filler byte before the real response.
		if _, err := c.readByte(); err != nil {
			return 0xFF, err
		}
	}

	response := byte(0xFF)
	for i := 0; i < responsePollLimit; i++ {
		b, err := c.readByte()
		if err != nil {
			return 0xFF, err
		}
		response = b
		if b&0x80 == 0 {
			break
		}
	}

	return response, nil
}

// response32 fetches the 4 byte payload that follows an R3 or R7 response,
// for example the SEND_IF_COND echo or the operating conditions register.
func (c *Card) response32() (uint32, error) {
	var buf [4]byte
	if err := c.transport.Read(buf[:]); err != nil {
		return 0, checkpoint.From(err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (c *Card) readByte() (byte, error) {
	var buf [1]byte
	if err := c.transport.Read(buf[:]); err != nil {
		return 0xFF, checkpoint.From(err)
	}
	return buf[0], nil
}

// expectOK checks the R1 response of a command that must report success.
func expectOK(cmd uint8, r uint8) error {
	if r != 0 {
		return checkpoint.Wrap(fmt.Errorf("CMD%d response 0x%02X", cmd&^cmdApp, r), ErrBadResponse)
	}
	return nil
}
