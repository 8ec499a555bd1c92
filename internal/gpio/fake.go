package gpio

import (
	"errors"
	"sync"
)

// FakeInput is a test double that returns scripted input levels.
type FakeInput struct {
	mu sync.Mutex

	// Samples contains scripted levels to return.
	// Each call to Value() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Value()
	ReadError error
}

// NewFakeInput creates a FakeInput with the given samples.
func NewFakeInput(samples ...bool) *FakeInput {
	return &FakeInput{Samples: samples}
}

// Value returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeInput) Value() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset rewinds the input to the beginning of samples.
func (f *FakeInput) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Closed = false
	f.mu.Unlock()
}

// FakeOutput records every level driven onto it.
type FakeOutput struct {
	mu sync.Mutex

	level   bool
	history []bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeOutput creates a FakeOutput at the given initial level.
func NewFakeOutput(initial bool) *FakeOutput {
	return &FakeOutput{level: initial}
}

// Set records the level.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	f.level = on
	f.history = append(f.history, on)
	return nil
}

// Level returns the last level set.
func (f *FakeOutput) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// History returns a copy of every level set, oldest first.
func (f *FakeOutput) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.history...)
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
