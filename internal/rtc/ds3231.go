package rtc

import (
	"errors"
	"fmt"
	"time"

	"github.com/albenik/bcd"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DS3231Addr is the fixed I2C address of the DS3231.
const DS3231Addr = 0x68

const (
	regSeconds = 0x00
	numRegs    = 7

	bit12Hour  = 0x40
	bitPM      = 0x20
	bitCentury = 0x80
)

// ErrYearRange is returned for years the DS3231 cannot hold.
var ErrYearRange = errors.New("year out of range 2000-2199")

// DS3231 is a battery-backed real-time clock on the I2C bus.
type DS3231 struct {
	dev    i2c.Dev
	closer func() error
	loc    *time.Location
}

// NewDS3231 uses an already opened bus.
func NewDS3231(bus i2c.Bus, loc *time.Location) *DS3231 {
	if loc == nil {
		loc = time.UTC
	}
	return &DS3231{dev: i2c.Dev{Bus: bus, Addr: DS3231Addr}, loc: loc}
}

// OpenDS3231 initialises the host drivers and opens the named I2C bus
// ("" for the first one).
func OpenDS3231(busName string, loc *time.Location) (*DS3231, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c %q: %w", busName, err)
	}
	d := NewDS3231(bus, loc)
	d.closer = bus.Close
	if _, err := d.Now(); err != nil {
		bus.Close()
		return nil, fmt.Errorf("probe ds3231: %w", err)
	}
	return d, nil
}

// Now reads the time registers.
func (d *DS3231) Now() (time.Time, error) {
	regs := make([]byte, numRegs)
	if err := d.dev.Tx([]byte{regSeconds}, regs); err != nil {
		return time.Time{}, fmt.Errorf("read ds3231: %w", err)
	}
	return decodeTime(regs, d.loc), nil
}

// Set writes t to the time registers.
func (d *DS3231) Set(t time.Time) error {
	regs, err := encodeTime(t.In(d.loc))
	if err != nil {
		return err
	}
	if _, err := d.dev.Write(append([]byte{regSeconds}, regs...)); err != nil {
		return fmt.Errorf("write ds3231: %w", err)
	}
	return nil
}

// Close releases the bus if OpenDS3231 opened it.
func (d *DS3231) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

func encodeTime(t time.Time) ([]byte, error) {
	year := t.Year()
	if year < 2000 || year > 2199 {
		return nil, fmt.Errorf("%d: %w", year, ErrYearRange)
	}
	month := bcd.FromUint8(uint8(t.Month()))
	if year >= 2100 {
		month |= bitCentury
	}
	return []byte{
		bcd.FromUint8(uint8(t.Second())),
		bcd.FromUint8(uint8(t.Minute())),
		bcd.FromUint8(uint8(t.Hour())),
		bcd.FromUint8(uint8(t.Weekday()) + 1),
		bcd.FromUint8(uint8(t.Day())),
		month,
		bcd.FromUint8(uint8(year % 100)),
	}, nil
}

func decodeTime(regs []byte, loc *time.Location) time.Time {
	sec := int(bcd.ToUint8(regs[0] & 0x7f))
	min := int(bcd.ToUint8(regs[1] & 0x7f))

	var hour int
	if regs[2]&bit12Hour != 0 {
		hour = int(bcd.ToUint8(regs[2]&0x1f)) % 12
		if regs[2]&bitPM != 0 {
			hour += 12
		}
	} else {
		hour = int(bcd.ToUint8(regs[2] & 0x3f))
	}

	day := int(bcd.ToUint8(regs[4] & 0x3f))
	month := time.Month(bcd.ToUint8(regs[5] & 0x1f))
	year := 2000 + int(bcd.ToUint8(regs[6]))
	if regs[5]&bitCentury != 0 {
		year += 100
	}
	return time.Date(year, month, day, hour, min, sec, 0, loc)
}
