package rtc

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestParseFile(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "2024-03-15 13:45:30", "2024-03-15 13:45:30", false},
		{"crlf and blanks", "\r\n\r\n2024-03-15 13:45:30\r\n", "2024-03-15 13:45:30", false},
		{"empty", "", "", true},
		{"garbage", "yesterday", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFile(strings.NewReader(tt.in), time.UTC)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.Format(Layout) != tt.want {
				t.Errorf("got %s, want %s", got.Format(Layout), tt.want)
			}
		})
	}
}

func TestParseFileEmptyError(t *testing.T) {
	if _, err := ParseFile(strings.NewReader("  \n"), time.UTC); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
}

func TestSystemSet(t *testing.T) {
	host := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &System{now: func() time.Time { return host }}

	want := time.Date(2024, 3, 15, 13, 45, 30, 0, time.UTC)
	if err := s.Set(want); err != nil {
		t.Fatal(err)
	}
	host = host.Add(time.Minute)

	got, _ := s.Now()
	if !got.Equal(want.Add(time.Minute)) {
		t.Errorf("got %v, want %v", got, want.Add(time.Minute))
	}
}

func TestSetFromFile(t *testing.T) {
	s := NewSystem()
	set, err := SetFromFile(strings.NewReader("2030-06-01 08:00:00\n"), s)
	if err != nil {
		t.Fatal(err)
	}
	now, _ := s.Now()
	if now.Sub(set) < 0 || now.Sub(set) > time.Minute {
		t.Errorf("clock %v not near %v", now, set)
	}
}

func TestEncodeTime(t *testing.T) {
	ts := time.Date(2024, 3, 15, 13, 45, 30, 0, time.UTC) // Friday
	got, err := encodeTime(ts)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x30, 0x45, 0x13, 0x06, 0x15, 0x03, 0x24}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}

	if _, err := encodeTime(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrYearRange) {
		t.Errorf("expected ErrYearRange, got %v", err)
	}
}

func TestDecodeTime(t *testing.T) {
	tests := []struct {
		name string
		regs []byte
		want string
	}{
		{"24 hour", []byte{0x30, 0x45, 0x13, 0x06, 0x15, 0x03, 0x24}, "2024-03-15 13:45:30"},
		{"12 hour pm", []byte{0x00, 0x00, 0x40 | 0x20 | 0x01, 0x01, 0x01, 0x01, 0x25}, "2025-01-01 13:00:00"},
		{"12 hour midnight", []byte{0x00, 0x00, 0x40 | 0x12, 0x01, 0x01, 0x01, 0x25}, "2025-01-01 00:00:00"},
		{"century", []byte{0x00, 0x00, 0x00, 0x01, 0x01, 0x80 | 0x01, 0x00}, "2100-01-01 00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeTime(tt.regs, time.UTC).Format(Layout)
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDS3231ReadWrite(t *testing.T) {
	regs := []byte{0x30, 0x45, 0x13, 0x06, 0x15, 0x03, 0x24}
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DS3231Addr, W: []byte{regSeconds}, R: regs},
			{Addr: DS3231Addr, W: append([]byte{regSeconds}, regs...)},
		},
	}
	d := NewDS3231(bus, time.UTC)

	got, err := d.Now()
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if got.Format(Layout) != "2024-03-15 13:45:30" {
		t.Errorf("Now: got %s", got.Format(Layout))
	}

	if err := d.Set(got); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("unconsumed ops: %v", err)
	}
}
