// Package logger routes the standard logger to stdout and an optional
// serial debug console.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"

	"go.bug.st/serial"
)

// ConsoleBaud is the debug console rate.
const ConsoleBaud = 115200

// Init sends log output to stdout and every extra writer.
func Init(extra ...io.Writer) {
	writers := []io.Writer{os.Stdout}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}
	log.SetOutput(io.MultiWriter(writers...))
}

// OpenConsole opens the debug UART at ConsoleBaud.
func OpenConsole(port string) (io.WriteCloser, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: ConsoleBaud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open console %q: %w", port, err)
	}
	return &console{p: p}, nil
}

// console turns LF into CRLF for serial terminals.
type console struct {
	p serial.Port
}

func (c *console) Write(b []byte) (int, error) {
	out := make([]byte, 0, len(b)+8)
	for _, ch := range b {
		if ch == '\n' {
			out = append(out, '\r')
		}
		out = append(out, ch)
	}
	if _, err := c.p.Write(out); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *console) Close() error {
	return c.p.Close()
}
