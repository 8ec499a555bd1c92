// Package storage manages the removable card: mounting, log file numbering
// and the per-session log file.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/shirou/gopsutil/v3/disk"
)

var (
	// ErrNotPowered is returned for any access while the card is not powered.
	ErrNotPowered = errors.New("storage not powered")
	// ErrNotMounted is returned for file access before a successful Mount.
	ErrNotMounted = errors.New("storage not mounted")
	// ErrNotDirectory means the mountpoint exists but is not a directory.
	ErrNotDirectory = errors.New("mountpoint is not a directory")
)

// File is a writable log file on the medium.
type File interface {
	io.Writer
	Sync() error
	Close() error
}

// Usage reports card capacity in bytes.
type Usage struct {
	Total uint64
	Free  uint64
}

// Medium is the filesystem on the card.
type Medium interface {
	Mount(ctx context.Context) error
	Names() ([]string, error)
	// Create opens name for writing. It fails with fs.ErrExist if name exists.
	Create(name string) (File, error)
	Open(name string) (io.ReadCloser, error)
	Exists(name string) bool
	Usage() (Usage, error)
}

// Gate reports whether the card supply is on.
type Gate interface {
	Ready() bool
}

// Mount retry defaults.
const (
	DefaultMountAttempts = 5
	DefaultMountDelay    = 200 * time.Millisecond
)

// DirMedium is a Medium backed by the directory the card is mounted on.
type DirMedium struct {
	root string
	gate Gate

	// Attempts and Delay control how long Mount waits for the card.
	Attempts uint
	Delay    time.Duration

	mounted bool
}

// NewDirMedium creates a medium rooted at dir. A nil gate means always powered.
func NewDirMedium(dir string, gate Gate) *DirMedium {
	return &DirMedium{
		root:     dir,
		gate:     gate,
		Attempts: DefaultMountAttempts,
		Delay:    DefaultMountDelay,
	}
}

// Root returns the mountpoint.
func (m *DirMedium) Root() string {
	return m.root
}

func (m *DirMedium) powered() bool {
	return m.gate == nil || m.gate.Ready()
}

func (m *DirMedium) check() error {
	if !m.powered() {
		return ErrNotPowered
	}
	if !m.mounted {
		return ErrNotMounted
	}
	return nil
}

// Mount verifies the mountpoint is a writable directory, retrying while the
// card comes up.
func (m *DirMedium) Mount(ctx context.Context) error {
	if !m.powered() {
		return ErrNotPowered
	}

	err := retry.Do(func() error {
		fi, err := os.Stat(m.root)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return retry.Unrecoverable(fmt.Errorf("%s: %w", m.root, ErrNotDirectory))
		}
		probe, err := os.CreateTemp(m.root, ".probe-*")
		if err != nil {
			return err
		}
		name := probe.Name()
		probe.Close()
		return os.Remove(name)
	},
		retry.Context(ctx),
		retry.Attempts(m.Attempts),
		retry.Delay(m.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("storage: mount attempt %d: %v", n+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("mount %s: %w", m.root, err)
	}
	m.mounted = true
	return nil
}

// Names lists the regular files in the root directory.
func (m *DirMedium) Names() ([]string, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Create opens a new file exclusively.
func (m *DirMedium) Create(name string) (File, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(m.path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Open opens an existing file for reading.
func (m *DirMedium) Open(name string) (io.ReadCloser, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return os.Open(m.path(name))
}

// Exists reports whether name is present on the medium.
func (m *DirMedium) Exists(name string) bool {
	if m.check() != nil {
		return false
	}
	_, err := os.Stat(m.path(name))
	return err == nil
}

// Usage returns the capacity of the filesystem holding the root.
func (m *DirMedium) Usage() (Usage, error) {
	if err := m.check(); err != nil {
		return Usage{}, err
	}
	u, err := disk.Usage(m.root)
	if err != nil {
		return Usage{}, fmt.Errorf("disk usage: %w", err)
	}
	return Usage{Total: u.Total, Free: u.Free}, nil
}

func (m *DirMedium) path(name string) string {
	return filepath.Join(m.root, filepath.Base(name))
}
