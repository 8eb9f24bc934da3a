package sdspi

import "time"

// Speed selects the SPI clock class. The slow setting is required while a card
// goes through its bring-up sequence, the fast setting is used afterwards.
type Speed uint8

const (
	SpeedSlow Speed = iota
	SpeedFast
)

// Transport is the byte level SPI transport the driver runs on.
// It mainly exists as an interface to be able to swap the physical bus and to
// mock it in tests.
// Generated mock using mockgen:
//  mockgen -source=transport.go -destination=transport_mock.go -package sdspi
type Transport interface {
	// Obtain takes ownership of the bus. Calling it again while the bus is
	// already held by this session must be a no-op.
	Obtain()
	// Release gives up ownership of the bus.
	Release()
	// Select asserts the chip select of the card. The bus has to be
	// obtained first.
	Select()
	// Deselect de-asserts the chip select.
	Deselect()
	// SetSpeed switches the bus clock.
	SetSpeed(speed Speed)
	// Read fills buf completely, clocking the bus with filler (0xFF)
	// bytes. There is no partial read, either the whole buffer is filled
	// or an error is returned.
	Read(buf []byte) error
	// Write sends buf completely.
	Write(buf []byte) error
}

// Clock provides the coarse timer used for the protocol timeouts. The
// resolution may be in the range of tens of milliseconds, deadlines are
// expected to be rounded up to the next tick.
type Clock interface {
	// Set returns a deadline the given duration from now.
	Set(d time.Duration) time.Time
	// Expired reports whether the deadline has passed.
	Expired(deadline time.Time) bool
	// Wait blocks for at least the given duration.
	Wait(d time.Duration)
}

// WallClock implements Clock on the system clock.
type WallClock struct{}

func (WallClock) Set(d time.Duration) time.Time { return time.Now().Add(d) }

func (WallClock) Expired(deadline time.Time) bool { return !time.Now().Before(deadline) }

func (WallClock) Wait(d time.Duration) { time.Sleep(d) }
