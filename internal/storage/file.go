package storage

import (
	"errors"
	"fmt"
	"sync"
)

// SessionFile is the open log file of one session. Every write goes
// straight to the medium. Failed writes are counted and returned, never
// fatal.
type SessionFile struct {
	number uint32
	name   string

	mu     sync.Mutex
	file   File
	errs   int
	closed bool
}

// Number returns the log file number.
func (f *SessionFile) Number() uint32 {
	return f.number
}

// Name returns the file name on the medium.
func (f *SessionFile) Name() string {
	return f.name
}

// Write appends p to the file.
func (f *SessionFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.errs++
		return 0, ErrAlreadyClosed
	}
	n, err := f.file.Write(p)
	if err == nil && n < len(p) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	if err != nil {
		f.errs++
	}
	return n, err
}

// WriteLine appends s followed by a newline.
func (f *SessionFile) WriteLine(s string) error {
	_, err := f.Write([]byte(s + "\n"))
	return err
}

// Printf appends formatted text.
func (f *SessionFile) Printf(format string, args ...any) error {
	_, err := fmt.Fprintf(f, format, args...)
	return err
}

// WriteErrors returns the number of failed writes so far.
func (f *SessionFile) WriteErrors() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs
}

func (f *SessionFile) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrAlreadyClosed
	}
	f.closed = true

	var errs []error
	if err := f.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := f.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}
