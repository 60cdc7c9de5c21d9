// Package transcript keeps an audit log of a session: every disclosed
// exchange and every completed round, written as TOML so that anyone can
// re-check the commitments after the fact.
package transcript

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/fileutil"
)

// Version is the transcript format version written by this package.
const Version = 1

// Transcript is the on-disk document.
type Transcript struct {
	Version   int        `toml:"version"`
	Session   string     `toml:"session"`
	Host      string     `toml:"host"`
	Strategy  string     `toml:"strategy"`
	Boxes     int        `toml:"boxes"`
	Started   time.Time  `toml:"started"`
	Exchanges []Exchange `toml:"exchange"`
	Rounds    []Round    `toml:"round"`
}

// Exchange is one disclosed commit/reveal run.
type Exchange struct {
	Sequence    int       `toml:"sequence"`
	Round       int       `toml:"round"`
	Purpose     string    `toml:"purpose"`
	N           int       `toml:"n"`
	Committed   int       `toml:"committed"`
	PeerValue   int       `toml:"peer_value"`
	Final       int       `toml:"final"`
	Digest      string    `toml:"hmac"`
	Key         string    `toml:"key"`
	CommittedAt time.Time `toml:"committed_at"`
	CompletedAt time.Time `toml:"completed_at"`
}

// Round is one completed round.
type Round struct {
	Number     int   `toml:"number"`
	Prize      int   `toml:"prize"`
	Selected   int   `toml:"selected"`
	Eliminated []int `toml:"eliminated"`
	Other      int   `toml:"other"`
	Switched   bool  `toml:"switched"`
	Won        bool  `toml:"won"`
	Exchanges  []int `toml:"exchanges"`
}

// FromRecord converts a disclosed record.
func FromRecord(round int, r fair.Record) Exchange {
	return Exchange{
		Sequence:    r.Sequence,
		Round:       round,
		Purpose:     r.Purpose,
		N:           r.N,
		Committed:   r.Committed,
		PeerValue:   r.PeerValue,
		Final:       r.Final,
		Digest:      string(r.Digest),
		Key:         r.Secret.Hex(),
		CommittedAt: r.CommittedAt,
		CompletedAt: r.CompletedAt,
	}
}

// Record converts back to a fair.Record so it can be verified.
func (e Exchange) Record() (fair.Record, error) {
	secret, err := fair.ParseSecret(e.Key)
	if err != nil {
		return fair.Record{}, fmt.Errorf("exchange %d: %w", e.Sequence, err)
	}
	return fair.Record{
		Sequence:    e.Sequence,
		Purpose:     e.Purpose,
		N:           e.N,
		Committed:   e.Committed,
		PeerValue:   e.PeerValue,
		Final:       e.Final,
		Secret:      secret,
		Digest:      fair.Digest(e.Digest),
		CommittedAt: e.CommittedAt,
		CompletedAt: e.CompletedAt,
	}, nil
}

// Encode writes t as TOML.
func Encode(w io.Writer, t *Transcript) error {
	if t == nil {
		return fmt.Errorf("transcript: nil transcript")
	}
	enc := toml.NewEncoder(w)
	enc.Indent = "\t"
	return enc.Encode(t)
}

// Save writes t to path atomically.
func Save(path string, t *Transcript) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return Encode(w, t)
	})
}

// Load reads a transcript file.
func Load(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Transcript
	md, err := toml.Decode(string(data), &t)
	if err != nil {
		return nil, fmt.Errorf("transcript: parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("transcript: %s has unknown key %s", path, undecoded[0])
	}
	if t.Version != Version {
		return nil, fmt.Errorf("transcript: %s has version %d, want %d", path, t.Version, Version)
	}
	return &t, nil
}

// FileName returns where a session's transcript is stored under dir.
func FileName(dir, session string) string {
	return filepath.Join(dir, "fairbox-"+session+".toml")
}
