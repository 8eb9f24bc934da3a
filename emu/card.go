// Package emu provides an emulated SD/MMC card that implements the sdspi
// transport contract. It answers the SPI command set the way a real card does
// and backs the sector data with an image file, which makes it usable both
// for tests and for working on card images from the command line.
package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/aligator/sdspi"
)

// Profile configures the personality of an emulated card.
type Profile struct {
	// Type selects the protocol branch the card answers with: CardSD1,
	// CardSD2, CardSDHC or CardMMC.
	Type sdspi.CardType

	// Identity, used to build the CID register.
	ManufacturerID  uint8
	OEMID           string
	ProductName     string
	ProductRevision uint8
	SerialNumber    uint32

	// InitPolls is how many operating-condition polls the card stays busy
	// before it reports ready.
	InitPolls int

	// FailLBA makes the data phase for one sector fail: reads answer with
	// an error token, writes reject the payload. Only active with
	// FailRead or FailWrite set. Tests use this to exercise error paths.
	FailLBA   uint32
	FailRead  bool
	FailWrite bool

	// CorruptCRC flips a bit in the checksum of every outgoing data
	// block.
	CorruptCRC bool
}

type parseState uint8

const (
	stateIdle parseState = iota
	stateArg
	stateData
)

// Card emulates one SD/MMC card on an SPI bus. The zero value is an empty
// slot without a card, see NewAbsent.
type Card struct {
	profile Profile
	image   afero.File
	sectors uint32

	held     bool
	selected bool
	speed    sdspi.Speed

	state      parseState
	cmd        byte
	arg        uint32
	argBytes   int
	appCmd     bool
	idle       bool
	polls      int
	collecting bool
	dataToken  byte
	payload    []byte
	writeLBA   uint32
	multiWrite bool
	multiRead  bool
	readLBA    uint32

	out []byte

	// Trace records every command index the card received, tests use it
	// to check the exact protocol traffic.
	Trace []byte
	// Misuse records protocol violations by the host side.
	Misuse []string
}

// Open opens (or creates) a card image on the given filesystem and returns
// the emulated card for it. The capacity is the file size rounded down to
// whole sectors.
func Open(fs afero.Fs, path string, profile Profile) (*Card, error) {
	if profile.Type == sdspi.CardNone {
		profile.Type = sdspi.CardSDHC
	}
	if profile.OEMID == "" {
		profile.OEMID = "GO"
	}
	if profile.ProductName == "" {
		profile.ProductName = "EMUSD"
	}

	image, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	info, err := image.Stat()
	if err != nil {
		image.Close()
		return nil, err
	}

	return &Card{
		profile: profile,
		image:   image,
		sectors: uint32(info.Size() / sdspi.SectorSize),
	}, nil
}

// NewAbsent returns an empty card slot. The bus only ever reads filler, the
// way a socket without a card behaves.
func NewAbsent() *Card {
	return &Card{}
}

// Close closes the backing image.
func (c *Card) Close() error {
	if c.image == nil {
		return nil
	}
	return c.image.Close()
}

// Sectors returns the capacity of the backing image in sectors.
func (c *Card) Sectors() uint32 {
	return c.sectors
}

// Speed returns the current bus clock setting.
func (c *Card) Speed() sdspi.Speed {
	return c.speed
}

func (c *Card) misuse(format string, args ...interface{}) {
	c.Misuse = append(c.Misuse, fmt.Sprintf(format, args...))
}

// Obtain implements sdspi.Transport. Obtaining an already held bus is
// explicitly fine.
func (c *Card) Obtain() {
	c.held = true
}

func (c *Card) Release() {
	if !c.held {
		c.misuse("release without obtaining the bus")
	}
	c.held = false
}

func (c *Card) Select() {
	if !c.held {
		c.misuse("select without obtaining the bus")
	}
	c.selected = true
}

// Deselect de-asserts chip select. That ends the current frame, so the
// command parser and any pending response bytes are dropped.
func (c *Card) Deselect() {
	c.selected = false
	c.state = stateIdle
	c.collecting = false
	c.multiRead = false
	c.multiWrite = false
	c.out = c.out[:0]
}

func (c *Card) SetSpeed(speed sdspi.Speed) {
	c.speed = speed
}

func (c *Card) Read(buf []byte) error {
	for i := range buf {
		buf[i] = c.next()
	}
	return nil
}

func (c *Card) Write(buf []byte) error {
	if c.image == nil || !c.selected {
		return nil
	}
	for _, b := range buf {
		c.feed(b)
	}
	return nil
}

func (c *Card) next() byte {
	if c.image == nil || !c.selected {
		return 0xFF
	}
	if len(c.out) == 0 && c.multiRead {
		// Multiple block reads stream until STOP_TRANSMISSION.
		c.queueBlock(c.readLBA)
		c.readLBA++
	}
	if len(c.out) == 0 {
		return 0xFF
	}
	b := c.out[0]
	c.out = c.out[1:]
	return b
}

func (c *Card) respond(bytes ...byte) {
	c.out = append(c.out, bytes...)
}

// r1 is the current R1 status, the idle bit stays set until the
// operating-condition sequence finished.
func (c *Card) r1() byte {
	if c.idle {
		return 0x01
	}
	return 0x00
}

func (c *Card) feed(b byte) {
	switch c.state {
	case stateIdle:
		if b == 0xFF {
			return
		}
		if b&0xC0 != 0x40 {
			c.misuse("command byte 0x%02X without start bits", b)
			return
		}
		c.cmd = b & 0x3F
		c.arg = 0
		c.argBytes = 0
		c.state = stateArg

	case stateArg:
		if c.argBytes < 4 {
			c.arg = c.arg<<8 | uint32(b)
			c.argBytes++
			return
		}
		// The checksum byte. Not verified, SPI mode runs without CRC.
		c.state = stateIdle
		c.execute()

	case stateData:
		c.feedData(b)
	}
}

func (c *Card) execute() {
	c.Trace = append(c.Trace, c.cmd)
	app := c.appCmd
	c.appCmd = false

	switch {
	case c.cmd == 0: // GO_IDLE_STATE
		c.idle = true
		c.polls = 0
		c.multiRead = false
		c.multiWrite = false
		c.respond(0x01)

	case c.cmd == 8: // SEND_IF_COND
		if c.profile.Type == sdspi.CardSD2 || c.profile.Type == sdspi.CardSDHC {
			// Echo the voltage range and check pattern back (R7).
			c.respond(c.r1(), 0x00, 0x00, byte(c.arg>>8)&0x0F, byte(c.arg))
		} else {
			c.respond(c.r1() | 0x04)
		}

	case c.cmd == 55: // APP_CMD
		if c.profile.Type == sdspi.CardMMC {
			c.respond(c.r1() | 0x04)
		} else {
			c.appCmd = true
			c.respond(c.r1())
		}

	case c.cmd == 41 && app: // ACMD41 SD_SEND_OP_COND
		c.pollOp()

	case c.cmd == 1: // SEND_OP_COND
		c.pollOp()

	case c.cmd == 58: // READ_OCR
		ocr := uint32(0x00FF8000)
		if !c.idle {
			ocr |= 1 << 31
		}
		if c.profile.Type == sdspi.CardSDHC {
			ocr |= 1 << 30
		}
		c.respond(c.r1(), byte(ocr>>24), byte(ocr>>16), byte(ocr>>8), byte(ocr))

	case c.cmd == 16: // SET_BLOCKLEN
		if c.arg != sdspi.SectorSize {
			c.misuse("SET_BLOCKLEN with block length %d", c.arg)
		}
		c.respond(c.r1())

	case c.cmd == 9: // SEND_CSD
		c.respond(c.r1())
		c.queueDataPacket(c.buildCSD())

	case c.cmd == 10: // SEND_CID
		c.respond(c.r1())
		c.queueDataPacket(c.buildCID())

	case c.cmd == 17: // READ_SINGLE_BLOCK
		lba := c.lbaFromArg()
		c.respond(c.r1())
		c.queueBlock(lba)

	case c.cmd == 18: // READ_MULTIPLE_BLOCK
		c.readLBA = c.lbaFromArg()
		c.multiRead = true
		c.respond(c.r1())

	case c.cmd == 12: // STOP_TRANSMISSION
		c.multiRead = false
		c.out = c.out[:0]
		// One stale byte before the response, then a short busy phase.
		c.respond(0xFF, c.r1(), 0x00)

	case c.cmd == 24: // WRITE_SINGLE_BLOCK
		c.writeLBA = c.lbaFromArg()
		c.multiWrite = false
		c.dataToken = 0xFE
		c.state = stateData
		c.respond(c.r1())

	case c.cmd == 25: // WRITE_MULTIPLE_BLOCK
		c.writeLBA = c.lbaFromArg()
		c.multiWrite = true
		c.dataToken = 0xFC
		c.state = stateData
		c.respond(c.r1())

	case c.cmd == 23 && app: // ACMD23 SET_WR_BLK_ERASE_COUNT
		c.respond(c.r1())

	default:
		c.respond(c.r1() | 0x04)
	}
}

func (c *Card) pollOp() {
	if c.profile.Type == sdspi.CardMMC && c.cmd != 1 {
		c.respond(c.r1() | 0x04)
		return
	}
	c.polls++
	if c.polls > c.profile.InitPolls {
		c.idle = false
	}
	c.respond(c.r1())
}

func (c *Card) feedData(b byte) {
	if !c.collecting {
		switch b {
		case 0xFF:
			// Gap byte between payloads.
		case c.dataToken:
			c.collecting = true
			c.payload = c.payload[:0]
		case 0xFD:
			if !c.multiWrite {
				c.misuse("stop token outside a multiple block write")
			}
			c.multiWrite = false
			c.state = stateIdle
			// One stale byte, then busy until the write settles.
			c.respond(0xFF, 0x00)
		default:
			c.misuse("unexpected data token 0x%02X", b)
		}
		return
	}

	c.payload = append(c.payload, b)
	if len(c.payload) < sdspi.SectorSize+2 {
		return
	}

	// Full sector plus checksum collected.
	c.collecting = false
	if !c.multiWrite {
		c.state = stateIdle
	}

	if c.profile.FailWrite && c.writeLBA == c.profile.FailLBA {
		c.respond(0x0D) // data rejected, CRC error pattern
		return
	}

	c.writeSector(c.writeLBA, c.payload[:sdspi.SectorSize])
	c.writeLBA++
	c.respond(0x05, 0x00) // accepted, then a short busy phase
}

func (c *Card) lbaFromArg() uint32 {
	if c.profile.Type == sdspi.CardSDHC {
		return c.arg
	}
	return c.arg >> 9
}

func (c *Card) queueBlock(lba uint32) {
	if c.profile.FailRead && lba == c.profile.FailLBA {
		c.respond(0x08) // error token: out of range
		return
	}
	buf := make([]byte, sdspi.SectorSize)
	c.readSector(lba, buf)
	c.queueDataPacket(buf)
}

func (c *Card) queueDataPacket(data []byte) {
	c.respond(0xFE)
	c.out = append(c.out, data...)
	crc := crc16(data)
	if c.profile.CorruptCRC {
		crc ^= 0x0001
	}
	c.respond(byte(crc>>8), byte(crc))
}

func (c *Card) readSector(lba uint32, buf []byte) {
	n, err := c.image.ReadAt(buf, int64(lba)*sdspi.SectorSize)
	if err != nil && err != io.EOF {
		c.misuse("image read at sector %d: %v", lba, err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

func (c *Card) writeSector(lba uint32, data []byte) {
	if _, err := c.image.WriteAt(data, int64(lba)*sdspi.SectorSize); err != nil {
		c.misuse("image write at sector %d: %v", lba, err)
	}
}
