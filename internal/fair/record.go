package fair

import (
	"fmt"
	"time"
)

// Record is a completed exchange. Records handed out by a Protocol are
// copies; mutating one never affects the protocol's history.
type Record struct {
	Sequence    int
	Purpose     string
	N           int
	Committed   int
	PeerValue   int
	Final       int
	Secret      Secret
	Digest      Digest
	CommittedAt time.Time
	CompletedAt time.Time
}

// Commitment is the part of an exchange the peer sees before contributing.
type Commitment struct {
	Sequence int
	Purpose  string
	N        int
	Digest   Digest
}

func (r Record) clone() Record {
	r.Secret = r.Secret.Clone()
	return r
}

// Commitment returns the public half of the record.
func (r Record) Commitment() Commitment {
	return Commitment{Sequence: r.Sequence, Purpose: r.Purpose, N: r.N, Digest: r.Digest}
}

// Verify checks the digest against the revealed secret and committed value
// and re-derives the final value.
func (r Record) Verify() error {
	if r.N < 1 {
		return fmt.Errorf("%w: exchange %d has n=%d", ErrInvalidRange, r.Sequence, r.N)
	}
	if r.Committed < 0 || r.Committed >= r.N || r.PeerValue < 0 || r.PeerValue >= r.N || r.Final < 0 || r.Final >= r.N {
		return fmt.Errorf("%w: exchange %d values outside [0,%d)", ErrInvalidRange, r.Sequence, r.N)
	}
	if !Verify(r.Digest, r.Secret, r.Committed) {
		return fmt.Errorf("exchange %d: digest %s does not match key and value %d", r.Sequence, r.Digest, r.Committed)
	}
	if want := Combine(r.Committed, r.PeerValue, r.N); r.Final != want {
		return fmt.Errorf("exchange %d: final value %d, expected (%d + %d) %% %d = %d",
			r.Sequence, r.Final, r.Committed, r.PeerValue, r.N, want)
	}
	return nil
}

// Arithmetic renders the combination step, e.g. "(1 + 2) % 3 = 0".
func (r Record) Arithmetic() string {
	return fmt.Sprintf("(%d + %d) %% %d = %d", r.Committed, r.PeerValue, r.N, r.Final)
}
