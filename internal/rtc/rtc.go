// Package rtc holds the wall clock used for log headers, and its
// initialisation from the card.
package rtc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// FileName is the optional clock file on the card.
const FileName = "TIME.TXT"

// Layout is the format of the clock file.
const Layout = "2006-01-02 15:04:05"

// ErrEmptyFile means the clock file has no timestamp line.
var ErrEmptyFile = errors.New("clock file empty")

// Clock is a settable wall clock.
type Clock interface {
	Now() (time.Time, error)
	Set(t time.Time) error
}

// System is a process-local clock kept as an offset from the host clock.
type System struct {
	mu     sync.Mutex
	offset time.Duration
	now    func() time.Time
}

// NewSystem creates a clock that follows the host clock until Set.
func NewSystem() *System {
	return &System{now: time.Now}
}

// Now returns the adjusted time.
func (s *System) Now() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Add(s.offset), nil
}

// Set adjusts the clock so that Now returns t.
func (s *System) Set(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = t.Sub(s.now())
	return nil
}

// ParseFile reads the first non-blank line of r as a timestamp in Layout.
func ParseFile(r io.Reader, loc *time.Location) (time.Time, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		t, err := time.ParseInLocation(Layout, line, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse clock file: %w", err)
		}
		return t, nil
	}
	if err := sc.Err(); err != nil {
		return time.Time{}, fmt.Errorf("read clock file: %w", err)
	}
	return time.Time{}, ErrEmptyFile
}

// SetFromFile parses r and sets c from it.
func SetFromFile(r io.Reader, c Clock) (time.Time, error) {
	t, err := ParseFile(r, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if err := c.Set(t); err != nil {
		return time.Time{}, fmt.Errorf("set clock: %w", err)
	}
	return t, nil
}
