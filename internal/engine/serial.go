package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/sweeney/diag-logger/internal/logic"
	"github.com/sweeney/diag-logger/internal/profile"
	"github.com/sweeney/diag-logger/internal/tick"
)

// Serial link defaults.
const (
	DefaultBaud        = 115200
	DefaultLinkTimeout = 3000 // ticks without data before the link is lost
	pollInterval       = 20 * time.Millisecond
)

// Port is the part of serial.Port the engine uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Serial drives a bus co-processor over a serial line.
//
// The request is one line:
//
//	START ecu=0x01 groups=1,2,3 interval=250 bitrate=500000 debug=0
//
// The co-processor answers with data lines, copied verbatim to the log,
// "DBG " lines, copied only in debug mode, and finally "END <code>".
// "STOP" asks it to end the session early.
type Serial struct {
	PortName string
	Baud     int
	// Timeout is the link idle timeout in ticks of TimerProtocol.
	Timeout uint32

	counters *tick.Counters
	open     func() (Port, error)
}

// NewSerial creates an engine on the named port, timed by counters.
func NewSerial(portName string, counters *tick.Counters) *Serial {
	s := &Serial{
		PortName: portName,
		Baud:     DefaultBaud,
		Timeout:  DefaultLinkTimeout,
		counters: counters,
	}
	s.open = s.openPort
	return s
}

// NewSerialWithPort creates an engine that opens ports with open.
func NewSerialWithPort(open func() (Port, error), counters *tick.Counters) *Serial {
	return &Serial{
		PortName: "injected",
		Baud:     DefaultBaud,
		Timeout:  DefaultLinkTimeout,
		counters: counters,
		open:     open,
	}
}

func (s *Serial) openPort() (Port, error) {
	mode := &serial.Mode{
		BaudRate: s.Baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(s.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", s.PortName, err)
	}
	return p, nil
}

// Request formats the START line for p.
func Request(p profile.Profile, debug bool) string {
	groups := make([]string, len(p.Groups))
	for i, g := range p.Groups {
		groups[i] = strconv.Itoa(g)
	}
	d := 0
	if debug {
		d = 1
	}
	return fmt.Sprintf("START ecu=0x%02X groups=%s interval=%d bitrate=%d debug=%d\n",
		p.ECU, strings.Join(groups, ","), p.IntervalMs, p.Bitrate, d)
}

// RunSession implements Engine.
func (s *Serial) RunSession(ctx context.Context, p profile.Profile, w io.Writer, debug bool) logic.SessionResult {
	port, err := s.open()
	if err != nil {
		log.Printf("engine: %v", err)
		return logic.SessionResult{Kind: logic.ResultCannotConnect}
	}
	defer port.Close()

	if err := port.SetReadTimeout(pollInterval); err != nil {
		log.Printf("engine: set read timeout: %v", err)
		return logic.SessionResult{Kind: logic.ResultCannotConnect}
	}
	if err := port.ResetInputBuffer(); err != nil {
		log.Printf("engine: reset input buffer: %v", err)
	}

	if _, err := io.WriteString(port, Request(p, debug)); err != nil {
		log.Printf("engine: send request: %v", err)
		return logic.SessionResult{Kind: logic.ResultCannotConnect}
	}
	s.counters.Arm(tick.TimerProtocol, s.Timeout)

	var (
		pending  []byte
		received bool
		stopping bool
		buf      = make([]byte, 256)
	)
	for {
		if !stopping && ctx.Err() != nil {
			log.Printf("engine: stop requested")
			if _, err := io.WriteString(port, "STOP\n"); err != nil {
				return logic.SessionResult{Kind: logic.ResultUserTerminated}
			}
			stopping = true
			s.counters.Arm(tick.TimerProtocol, s.Timeout)
		}

		n, err := port.Read(buf)
		if err != nil {
			log.Printf("engine: read: %v", err)
			if stopping {
				return logic.SessionResult{Kind: logic.ResultUserTerminated}
			}
			return logic.SessionResult{Kind: logic.ResultConnectionLost}
		}

		if n == 0 {
			if s.counters.Remaining(tick.TimerProtocol) > 0 {
				continue
			}
			switch {
			case stopping:
				return logic.SessionResult{Kind: logic.ResultUserTerminated}
			case received:
				return logic.SessionResult{Kind: logic.ResultConnectionLost}
			default:
				return logic.SessionResult{Kind: logic.ResultCannotConnect}
			}
		}

		received = true
		s.counters.Arm(tick.TimerProtocol, s.Timeout)
		pending = append(pending, buf[:n]...)

		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := strings.TrimRight(string(pending[:i]), "\r")
			pending = pending[i+1:]

			if res, done := s.handleLine(line, w, debug); done {
				if stopping {
					return logic.SessionResult{Kind: logic.ResultUserTerminated}
				}
				return res
			}
		}
	}
}

func (s *Serial) handleLine(line string, w io.Writer, debug bool) (logic.SessionResult, bool) {
	switch {
	case strings.HasPrefix(line, "END"):
		code, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "END")))
		if err != nil {
			log.Printf("engine: bad end line %q", line)
			return logic.SessionResult{Kind: logic.ResultCommError, Code: -1}, true
		}
		return logic.ResultFromCode(code), true
	case strings.HasPrefix(line, "DBG "):
		if debug {
			fmt.Fprintln(w, line)
		}
	default:
		fmt.Fprintln(w, line)
	}
	return logic.SessionResult{}, false
}
