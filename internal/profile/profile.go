// Package profile loads the diagnostic configuration profiles from the card.
package profile

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

// MaxProfiles is the number of profile slots.
const MaxProfiles = 3

// DefaultBitrate is the bus rate used when a profile does not set one.
const DefaultBitrate = 500000

// FileName is the configuration file on the card.
const FileName = "CONFIG.TOML"

// ErrNoProfiles means the first slot is missing or invalid.
var ErrNoProfiles = errors.New("no valid profiles")

// Profile is one named diagnostic configuration.
type Profile struct {
	Name       string `toml:"name"`
	ECU        int    `toml:"ecu"`
	Groups     []int  `toml:"groups"`
	IntervalMs int    `toml:"interval_ms"`
	Bitrate    int    `toml:"bitrate"`
}

// Valid reports whether the slot holds a usable profile.
func (p *Profile) Valid() bool {
	return p != nil && p.ECU > 0 && len(p.Groups) > 0
}

type file struct {
	Profile1 *Profile `toml:"profile1"`
	Profile2 *Profile `toml:"profile2"`
	Profile3 *Profile `toml:"profile3"`
}

// Store is the immutable set of profiles loaded at boot.
type Store struct {
	profiles []Profile
}

// Load decodes the configuration from r. Profiles are counted as a
// contiguous prefix: the first missing or invalid slot ends the set.
func Load(r io.Reader) (*Store, error) {
	var f file
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for _, key := range md.Undecoded() {
		log.Printf("profile: ignoring unknown key %s", key)
	}

	slots := [MaxProfiles]*Profile{f.Profile1, f.Profile2, f.Profile3}
	s := &Store{}
	for i, p := range slots {
		if !p.Valid() {
			for j := i + 1; j < MaxProfiles; j++ {
				if slots[j] != nil {
					log.Printf("profile: slot %d ignored after gap at slot %d", j+1, i+1)
				}
			}
			break
		}
		cp := *p
		cp.Groups = append([]int(nil), p.Groups...)
		if cp.Name == "" {
			cp.Name = fmt.Sprintf("profile%d", i+1)
		}
		if cp.Bitrate == 0 {
			cp.Bitrate = DefaultBitrate
		}
		s.profiles = append(s.profiles, cp)
	}

	if len(s.profiles) == 0 {
		return nil, ErrNoProfiles
	}
	return s, nil
}

// LoadFile reads the configuration at path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Count returns the number of valid profiles.
func (s *Store) Count() int {
	return len(s.profiles)
}

// Get returns profile index (1-based).
func (s *Store) Get(index int) (Profile, bool) {
	if index < 1 || index > len(s.profiles) {
		return Profile{}, false
	}
	return s.profiles[index-1], true
}

// Names returns the profile names in slot order.
func (s *Store) Names() []string {
	names := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		names[i] = p.Name
	}
	return names
}

// All returns a copy of the profiles in slot order.
func (s *Store) All() []Profile {
	return append([]Profile(nil), s.profiles...)
}
