package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"sync"
)

// FakeMedium is an in-memory Medium that records every operation.
type FakeMedium struct {
	mu sync.Mutex

	files map[string]*bytes.Buffer

	// MountError, if set, is returned by Mount.
	MountError error
	// ListError, if set, is returned by Names.
	ListError error
	// CreateError, if set, is returned by Create.
	CreateError error
	// WriteError, if set, is returned by writes to created files.
	WriteError error
	// Gate, if set, must be ready for any operation to succeed.
	Gate Gate

	// Ops counts every operation attempted after Mount.
	Ops int
}

// NewFakeMedium creates a medium holding the named empty files.
func NewFakeMedium(names ...string) *FakeMedium {
	f := &FakeMedium{files: make(map[string]*bytes.Buffer)}
	for _, n := range names {
		f.files[n] = &bytes.Buffer{}
	}
	return f
}

// Put stores a file with the given content.
func (f *FakeMedium) Put(name, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = bytes.NewBufferString(content)
}

// Content returns the content of name.
func (f *FakeMedium) Content(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[name]
	if !ok {
		return "", false
	}
	return b.String(), true
}

// SetWriteError changes WriteError while files may be open.
func (f *FakeMedium) SetWriteError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WriteError = err
}

// OpCount returns the number of operations attempted.
func (f *FakeMedium) OpCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Ops
}

func (f *FakeMedium) op() error {
	f.Ops++
	if f.Gate != nil && !f.Gate.Ready() {
		return ErrNotPowered
	}
	return nil
}

// Mount returns MountError.
func (f *FakeMedium) Mount(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op(); err != nil {
		return err
	}
	return f.MountError
}

// Names lists the files in name order.
func (f *FakeMedium) Names() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op(); err != nil {
		return nil, err
	}
	if f.ListError != nil {
		return nil, f.ListError
	}
	names := make([]string, 0, len(f.files))
	for n := range f.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Create adds a new empty file.
func (f *FakeMedium) Create(name string) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op(); err != nil {
		return nil, err
	}
	if f.CreateError != nil {
		return nil, f.CreateError
	}
	if _, ok := f.files[name]; ok {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrExist)
	}
	b := &bytes.Buffer{}
	f.files[name] = b
	return &fakeFile{medium: f, buf: b}, nil
}

// Open returns the content of name.
func (f *FakeMedium) Open(name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op(); err != nil {
		return nil, err
	}
	b, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(b.Bytes())), nil
}

// Exists reports whether name is present.
func (f *FakeMedium) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.op() != nil {
		return false
	}
	_, ok := f.files[name]
	return ok
}

// Usage reports a fixed 1 GiB card.
func (f *FakeMedium) Usage() (Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op(); err != nil {
		return Usage{}, err
	}
	return Usage{Total: 1 << 30, Free: 1 << 29}, nil
}

type fakeFile struct {
	medium *FakeMedium
	buf    *bytes.Buffer
}

func (w *fakeFile) Write(p []byte) (int, error) {
	w.medium.mu.Lock()
	defer w.medium.mu.Unlock()
	if err := w.medium.op(); err != nil {
		return 0, err
	}
	if w.medium.WriteError != nil {
		return 0, w.medium.WriteError
	}
	return w.buf.Write(p)
}

func (w *fakeFile) Sync() error {
	w.medium.mu.Lock()
	defer w.medium.mu.Unlock()
	return w.medium.op()
}

func (w *fakeFile) Close() error {
	w.medium.mu.Lock()
	defer w.medium.mu.Unlock()
	w.medium.Ops++
	return nil
}
