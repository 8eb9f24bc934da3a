package emu

import (
	"github.com/aligator/sdspi"
)

// buildCSD assembles the 16 byte CSD register for the configured capacity.
// Standard capacity personalities use the v1 layout with C_SIZE_MULT fixed to
// 7, so the capacity granularity is 512 sectors. SDHC uses the v2 layout with
// its 1024 sector granularity.
func (c *Card) buildCSD() []byte {
	raw := make([]byte, 16)

	// Timing and class fields with values as seen on real cards:
	// TAAC 1ms, 25 MHz transfer rate, command classes 0x5B5 and a
	// 512 byte block length in both directions.
	raw[1] = 0x0E
	raw[3] = 0x32
	raw[4] = 0x5B
	raw[5] = 0x59
	raw[12] = 0x02
	raw[13] = 0x40

	if c.profile.Type == sdspi.CardSDHC {
		raw[0] = 0x40 // structure v2
		csize := uint32(0)
		if c.sectors >= 1024 {
			csize = c.sectors>>10 - 1
		}
		raw[7] = byte(csize>>16) & 0x3F
		raw[8] = byte(csize >> 8)
		raw[9] = byte(csize)
	} else {
		csize := uint32(0)
		if c.sectors >= 512 {
			csize = c.sectors>>9 - 1
		}
		raw[6] = byte(csize>>10) & 0x03
		raw[7] = byte(csize >> 2)
		raw[8] = byte(csize&0x03) << 6
		raw[9] = 0x03         // C_SIZE_MULT = 7, upper bits
		raw[10] = 0x80 | 0x40 // C_SIZE_MULT low bit, ERASE_BLK_EN
	}

	raw[15] = crc7(raw[:15])<<1 | 1
	return raw
}

// buildCID assembles the 16 byte CID register from the profile identity.
func (c *Card) buildCID() []byte {
	raw := make([]byte, 16)

	raw[0] = c.profile.ManufacturerID
	copyPadded(raw[1:3], c.profile.OEMID)
	copyPadded(raw[3:8], c.profile.ProductName)
	raw[8] = c.profile.ProductRevision
	raw[9] = byte(c.profile.SerialNumber >> 24)
	raw[10] = byte(c.profile.SerialNumber >> 16)
	raw[11] = byte(c.profile.SerialNumber >> 8)
	raw[12] = byte(c.profile.SerialNumber)

	// Manufacturing date June 2024.
	date := uint16(24)<<4 | 6
	raw[13] = byte(date >> 8)
	raw[14] = byte(date)

	raw[15] = crc7(raw[:15])<<1 | 1
	return raw
}

func copyPadded(dst []byte, s string) {
	for i := range dst {
		dst[i] = ' '
	}
	copy(dst, s)
}

// The card computes its checksums on its own, independent from the host side
// of the protocol.

func crc7(data []byte) byte {
	var crc byte
	for _, d := range data {
		for i := 0; i < 8; i++ {
			crc <<= 1
			if (d^crc)&0x80 != 0 {
				crc ^= 0x09
			}
			d <<= 1
		}
	}
	return crc & 0x7F
}

func crc16(data []byte) uint16 {
	var crc uint16
	for _, d := range data {
		crc ^= uint16(d) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
