package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strconv"
	"strings"
	"sync"
)

// MaxFileNumber is the highest log file number.
const MaxFileNumber = 999

var (
	// ErrOutOfRange is returned for file numbers outside 1..MaxFileNumber.
	ErrOutOfRange = errors.New("file number out of range")
	// ErrAlreadyClosed is returned by a second close of the same file.
	ErrAlreadyClosed = errors.New("log file already closed")
	// ErrExhausted means every file number is in use.
	ErrExhausted = errors.New("no free log file number")
)

// FileName returns the log file name for number n.
func FileName(n uint32) string {
	return fmt.Sprintf("%03d.TXT", n)
}

// ParseFileName returns the number encoded in a log file name.
func ParseFileName(name string) (uint32, bool) {
	base, ok := strings.CutSuffix(strings.ToUpper(name), ".TXT")
	if !ok || base == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(base, 10, 32)
	if err != nil || n < 1 || n > MaxFileNumber {
		return 0, false
	}
	return uint32(n), true
}

// Manager allocates log file numbers and tracks file lifecycles.
type Manager struct {
	medium Medium

	mu     sync.Mutex
	next   uint32
	opened int
	closed int
}

// NewManager creates a manager over medium.
func NewManager(medium Medium) *Manager {
	return &Manager{medium: medium}
}

// AllocateNextFileNumber scans the medium and returns the smallest positive
// number not used by a log file. It returns false if the medium cannot be
// listed or every number is taken. The result becomes the next number.
func (m *Manager) AllocateNextFileNumber() (uint32, bool) {
	names, err := m.medium.Names()
	if err != nil {
		log.Printf("storage: list files: %v", err)
		return 0, false
	}

	used := make(map[uint32]bool, len(names))
	for _, name := range names {
		if n, ok := ParseFileName(name); ok {
			used[n] = true
		}
	}

	for n := uint32(1); n <= MaxFileNumber; n++ {
		if !used[n] {
			m.mu.Lock()
			m.next = n
			m.mu.Unlock()
			return n, true
		}
	}
	return 0, false
}

// Next returns the number the next session will use.
func (m *Manager) Next() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

// Advance moves to the next file number after a session, wrapping past
// MaxFileNumber back to 1.
func (m *Manager) Advance() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	if m.next > MaxFileNumber {
		m.next = 1
	}
	return m.next
}

// CreateLogFile opens log file number n for writing.
func (m *Manager) CreateLogFile(n uint32) (*SessionFile, error) {
	if n < 1 || n > MaxFileNumber {
		return nil, fmt.Errorf("create log %d: %w", n, ErrOutOfRange)
	}
	name := FileName(n)
	f, err := m.medium.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	m.mu.Lock()
	m.opened++
	m.mu.Unlock()

	return &SessionFile{
		number: n,
		name:   name,
		file:   f,
	}, nil
}

// CreateNext creates the log file for the current number. Numbers whose file
// already exists are skipped; the manager's number is updated to the one used.
func (m *Manager) CreateNext() (*SessionFile, error) {
	n := m.Next()
	if n == 0 {
		n = 1
	}
	for tries := 0; tries < MaxFileNumber; tries++ {
		sf, err := m.CreateLogFile(n)
		if err == nil {
			m.mu.Lock()
			m.next = n
			m.mu.Unlock()
			return sf, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		n++
		if n > MaxFileNumber {
			n = 1
		}
	}
	return nil, ErrExhausted
}

// CloseLogFile flushes, syncs and closes f. Each file is closed once; later
// calls return ErrAlreadyClosed.
func (m *Manager) CloseLogFile(f *SessionFile) error {
	if f == nil {
		return nil
	}
	err := f.close()
	if errors.Is(err, ErrAlreadyClosed) {
		return err
	}

	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	return err
}

// Counts returns how many log files have been opened and closed.
func (m *Manager) Counts() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed
}
