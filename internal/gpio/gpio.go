// Package gpio provides GPIO input and output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Input reads a single logical input line.
type Input interface {
	// Value returns the logical level (active-low inversion already applied).
	Value() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Output drives a single logical output line.
type Output interface {
	// Set drives the line to the logical level.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Default line offsets on gpiochip0 (BCM numbering).
const (
	DefaultChip      = "gpiochip0"
	DefaultPinButton = 17
	DefaultPinLED    = 27
	DefaultPinBuzzer = 22
	DefaultPinSupply = 23 // storage card supply switch, active low
	DefaultPinCardCS = 8  // storage card chip select (SPI0 CE0)
)
