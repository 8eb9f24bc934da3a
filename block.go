package sdspi

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/aligator/sdspi/checkpoint"
)

const (
	tokenData       = 0xFE // starts a single block payload in both directions
	tokenWriteMulti = 0xFC // starts one payload of a multiple block write
	tokenStopTran   = 0xFD // ends a multiple block write, no payload follows

	fillerByte = 0xFF

	// Low 5 bits of the data response after a write payload.
	dataAccepted = 0x05
)

// Protocol deadlines. The clock may round them up to its tick resolution.
const (
	readyTimeout     = 500 * time.Millisecond
	dataTokenTimeout = 100 * time.Millisecond
)

// waitReady polls until the card outputs filler again, meaning it is no
// longer busy, or the deadline passes.
func (c *Card) waitReady(limit time.Duration) error {
	deadline := c.clock.Set(limit)
	for {
		b, err := c.readByte()
		if err != nil {
			return err
		}
		if b == fillerByte {
			return nil
		}
		if c.clock.Expired(deadline) {
			return checkpoint.Wrap(fmt.Errorf("card stayed busy"), ErrTimeout)
		}
	}
}

// readData waits for the data-start token and reads one payload of len(dst)
// bytes plus the trailing checksum. The checksum is only verified with
// StrictCRC enabled.
func (c *Card) readData(dst []byte) error {
	deadline := c.clock.Set(dataTokenTimeout)
	for {
		b, err := c.readByte()
		if err != nil {
			return err
		}
		if b == tokenData {
			break
		}
		if b != fillerByte {
			// Anything between filler and the start token is an error
			// token from the card.
			return checkpoint.Wrap(fmt.Errorf("data token 0x%02X", b), ErrBadResponse)
		}
		if c.clock.Expired(deadline) {
			return checkpoint.From(ErrTimeout)
		}
	}

	if err := c.transport.Read(dst); err != nil {
		return checkpoint.From(err)
	}

	var crc [2]byte
	if err := c.transport.Read(crc[:]); err != nil {
		return checkpoint.From(err)
	}
	if c.StrictCRC {
		if want := binary.BigEndian.Uint16(crc[:]); want != crc16(dst) {
			return checkpoint.Wrap(fmt.Errorf("data checksum 0x%04X, expected 0x%04X", want, crc16(dst)), ErrBadResponse)
		}
	}

	return nil
}

// writeData sends one data token and, unless it is the stop token, the block
// payload with its checksum. The data response of the card must signal
// "accepted".
func (c *Card) writeData(token byte, src []byte) error {
	if err := c.waitReady(readyTimeout); err != nil {
		return err
	}

	if err := c.transport.Write([]byte{token}); err != nil {
		return checkpoint.From(err)
	}
	if token == tokenStopTran {
		return nil
	}

	if err := c.transport.Write(src); err != nil {
		return checkpoint.From(err)
	}
	crc := [2]byte{fillerByte, fillerByte}
	if c.StrictCRC {
		binary.BigEndian.PutUint16(crc[:], crc16(src))
	}
	if err := c.transport.Write(crc[:]); err != nil {
		return checkpoint.From(err)
	}

	b, err := c.readByte()
	if err != nil {
		return err
	}
	if b&0x1F != dataAccepted {
		return checkpoint.Wrap(fmt.Errorf("data response 0x%02X", b), ErrBadResponse)
	}

	return nil
}

// addressFor converts a sector number into a command argument. Only block
// addressed cards take the LBA directly, everything else is byte addressed.
func (c *Card) addressFor(lba uint32) uint32 {
	if c.Type.blockAddressed() {
		return lba
	}
	return lba << 9
}

// readBlocks transfers count sectors starting at lba into buf, using the
// single block path for one sector and the multiple block path otherwise.
// The card is always deselected afterwards to release the bus framing.
func (c *Card) readBlocks(lba, count uint32, buf []byte) error {
	defer c.transport.Deselect()

	if count == 1 {
		r, err := c.command(cmdReadSingleBlock, c.addressFor(lba))
		if err != nil {
			return err
		}
		if err := expectOK(cmdReadSingleBlock, r); err != nil {
			return err
		}
		return c.readData(buf[:c.BlockSize])
	}

	r, err := c.command(cmdReadMultipleBlock, c.addressFor(lba))
	if err != nil {
		return err
	}
	if err := expectOK(cmdReadMultipleBlock, r); err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		if err := c.readData(buf[i*c.BlockSize : (i+1)*c.BlockSize]); err != nil {
			return err
		}
	}

	r, err = c.command(cmdStopTransmission, 0)
	if err != nil {
		return err
	}
	return expectOK(cmdStopTransmission, r)
}

// writeBlocks transfers count sectors starting at lba from buf to the card.
func (c *Card) writeBlocks(lba, count uint32, buf []byte) error {
	defer c.transport.Deselect()

	if count == 1 {
		r, err := c.command(cmdWriteSingleBlock, c.addressFor(lba))
		if err != nil {
			return err
		}
		if err := expectOK(cmdWriteSingleBlock, r); err != nil {
			return err
		}
		return c.writeData(tokenData, buf[:c.BlockSize])
	}

	if c.Type == CardSD1 || c.Type == CardSD2 || c.Type == CardSDHC {
		// Announcing the sector count up front lets the card pre-erase,
		// best effort only, the result does not matter.
		_, _ = c.command(acmdSetWrBlockEraseCount, count)
	}

	r, err := c.command(cmdWriteMultipleBlock, c.addressFor(lba))
	if err != nil {
		return err
	}
	if err := expectOK(cmdWriteMultipleBlock, r); err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		if err := c.writeData(tokenWriteMulti, buf[i*c.BlockSize:(i+1)*c.BlockSize]); err != nil {
			return err
		}
	}

	return c.writeData(tokenStopTran, nil)
}
