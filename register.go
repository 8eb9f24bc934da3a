// The CSD and CID structs match the 128 bit card registers. Bit numbering in
// the comments follows the SD specification, bit 127 is the top bit of the
// first byte on the wire.

package sdspi

import (
	"encoding/binary"
	"fmt"

	"github.com/aligator/sdspi/checkpoint"
)

// CSD is the decoded Card-Specific Data register. It is immutable once
// decoded, a new bring-up decodes it again.
type CSD struct {
	Structure uint8 // [127:126], 0 = v1 layout, 1 = v2 layout

	TAAC      uint8  // [119:112] data read access time
	NSAC      uint8  // [111:104] data read access time in clock cycles
	TranSpeed uint8  // [103:96] max data transfer rate
	CCC       uint16 // [95:84] card command classes

	ReadBlockLen  uint8 // [83:80] read block length exponent
	WriteBlockLen uint8 // [25:22] write block length exponent

	// Device size fields, the layout depends on Structure.
	CSize     uint32 // v1 [73:62], v2 [69:48]
	CSizeMult uint8  // v1 only [49:47]

	EraseBlockEnable bool  // [46]
	EraseSectorSize  uint8 // [45:39]
	WPGroupSize      uint8 // [38:32]
	WPGroupEnable    bool  // [31]

	Copy             bool // [14]
	PermWriteProtect bool // [13]
	TmpWriteProtect  bool // [12]
}

// decodeCSD unpacks the 16 raw register bytes.
// Cards whose read and write block lengths differ cannot be represented by
// this driver and are rejected as unsupported.
func decodeCSD(raw []byte) (CSD, error) {
	csd := CSD{
		Structure: raw[0] >> 6,

		TAAC:      raw[1],
		NSAC:      raw[2],
		TranSpeed: raw[3],
		CCC:       uint16(raw[4])<<4 | uint16(raw[5])>>4,

		ReadBlockLen:  raw[5] & 0x0F,
		WriteBlockLen: (raw[12]&0x03)<<2 | raw[13]>>6,

		EraseBlockEnable: raw[10]&0x40 != 0,
		EraseSectorSize:  (raw[10]&0x3F)<<1 | raw[11]>>7,
		WPGroupSize:      raw[11] & 0x7F,
		WPGroupEnable:    raw[12]&0x80 != 0,

		Copy:             raw[14]&0x40 != 0,
		PermWriteProtect: raw[14]&0x20 != 0,
		TmpWriteProtect:  raw[14]&0x10 != 0,
	}

	switch csd.Structure {
	case 0:
		csd.CSize = uint32(raw[6]&0x03)<<10 | uint32(raw[7])<<2 | uint32(raw[8])>>6
		csd.CSizeMult = (raw[9]&0x03)<<1 | raw[10]>>7
	case 1:
		csd.CSize = uint32(raw[7]&0x3F)<<16 | uint32(raw[8])<<8 | uint32(raw[9])
	default:
		return CSD{}, checkpoint.Wrap(fmt.Errorf("CSD structure version %d", csd.Structure), ErrUnsupportedCard)
	}

	if csd.ReadBlockLen != csd.WriteBlockLen {
		return CSD{}, checkpoint.Wrap(
			fmt.Errorf("read block length %d does not match write block length %d", csd.ReadBlockLen, csd.WriteBlockLen),
			ErrUnsupportedCard)
	}

	return csd, nil
}

// sectorCount derives the total number of sectors for the given card type.
// Standard capacity cards (including MMC) use the C_SIZE/C_SIZE_MULT pair,
// block addressed cards the v2 C_SIZE field.
func (csd CSD) sectorCount(t CardType) (uint32, error) {
	switch t {
	case CardSD1, CardSD2, CardMMC:
		return (csd.CSize + 1) << (csd.CSizeMult + 2), nil
	case CardSDHC:
		return (csd.CSize + 1) << (19 - csd.ReadBlockLen), nil
	}
	return 0, checkpoint.Wrap(fmt.Errorf("card type %v", t), ErrUnsupportedCard)
}

// CID is the decoded Card Identification register. It is only used to
// synthesize the identify strings, the checksum is not verified unless
// StrictCRC is set.
type CID struct {
	ManufacturerID  uint8  // [127:120]
	OEMID           string // [119:104], 2 characters
	ProductName     string // [103:64], 5 characters
	ProductRevision uint8  // [63:56]
	SerialNumber    uint32 // [55:24]

	// Manufacturing date, decoded from the 12 bit field at [19:8]. The
	// year offset lives in the upper byte of the field, the month in the
	// low nibble.
	ManufacturingYear  uint16
	ManufacturingMonth uint8
}

func decodeCID(raw []byte) CID {
	date := uint16(raw[13]&0x0F)<<8 | uint16(raw[14])

	return CID{
		ManufacturerID:  raw[0],
		OEMID:           string(raw[1:3]),
		ProductName:     string(raw[3:8]),
		ProductRevision: raw[8],
		SerialNumber:    binary.BigEndian.Uint32(raw[9:13]),

		ManufacturingYear:  2000 + date>>4,
		ManufacturingMonth: uint8(date) & 0x0F,
	}
}
