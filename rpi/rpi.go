// Package rpi drives a real SD card wired to the Raspberry Pi SPI0 bus.
//
// The hardware chip select of the BCM2835 is not used. It deasserts between
// bytes, which breaks SD command framing, so the card select line is driven
// manually through a plain GPIO pin instead.
package rpi

import (
	"sync"

	rpio "github.com/stianeikeland/go-rpio/v4"

	"github.com/aligator/sdspi"
)

const (
	slowHz = 250_000
	fastHz = 8_000_000
)

// bus serializes all access to the single SPI peripheral.
var bus sync.Mutex

// Transport talks to an SD card on SPI0 with a GPIO driven chip select.
// It implements sdspi.Transport.
type Transport struct {
	cs    rpio.Pin
	held  bool
	speed sdspi.Speed
}

// Open maps the GPIO registers and claims the SPI0 pins. csPin is the BCM
// number of the chip select line.
func Open(csPin uint8) (*Transport, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		rpio.Close()
		return nil, err
	}
	rpio.SpiSpeed(slowHz)

	t := &Transport{cs: rpio.Pin(csPin)}
	t.cs.Output()
	t.cs.High()
	return t, nil
}

// Close releases the SPI pins and unmaps the GPIO registers.
func (t *Transport) Close() error {
	t.cs.High()
	rpio.SpiEnd(rpio.Spi0)
	rpio.Close()
	return nil
}

func (t *Transport) Obtain() {
	if t.held {
		return
	}
	bus.Lock()
	t.held = true
	t.applySpeed()
}

func (t *Transport) Release() {
	if !t.held {
		return
	}
	t.held = false
	bus.Unlock()
}

// Select pulls the card select line low. The card is active low.
func (t *Transport) Select() {
	t.cs.Low()
}

func (t *Transport) Deselect() {
	t.cs.High()
}

func (t *Transport) SetSpeed(speed sdspi.Speed) {
	t.speed = speed
	if t.held {
		t.applySpeed()
	}
}

func (t *Transport) applySpeed() {
	if t.speed == sdspi.SpeedFast {
		rpio.SpiSpeed(fastHz)
	} else {
		rpio.SpiSpeed(slowHz)
	}
}

// Read clocks in len(buf) bytes while shifting out all ones, as an idle
// SD bus expects.
func (t *Transport) Read(buf []byte) error {
	for i := range buf {
		buf[i] = 0xFF
	}
	rpio.SpiExchange(buf)
	return nil
}

func (t *Transport) Write(buf []byte) error {
	rpio.SpiTransmit(buf...)
	return nil
}
