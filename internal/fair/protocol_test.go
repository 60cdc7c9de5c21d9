package fair

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFairValueRecordsVerifiableExchange(t *testing.T) {
	out := &recorder{}
	peer := &scriptedPeer{values: []int{2}, out: out}
	clock := quartz.NewMock(t)
	start := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock.Set(start)

	p := New("Morty", peer, out, WithClock(clock))
	defer p.Close()

	final, err := p.GenerateFairValue(context.Background(), 3, "to select the prize location")
	require.NoError(t, err)
	require.True(t, final >= 0 && final < 3)

	rec, ok := p.RevealLast()
	require.True(t, ok)
	assert.Equal(t, 1, rec.Sequence)
	assert.Equal(t, 3, rec.N)
	assert.Equal(t, 2, rec.PeerValue)
	assert.Equal(t, final, rec.Final)
	assert.Equal(t, (rec.Committed+2)%3, rec.Final)
	assert.Equal(t, "to select the prize location", rec.Purpose)
	assert.Equal(t, start, rec.CommittedAt)
	assert.Equal(t, start, rec.CompletedAt)
	assert.Len(t, rec.Secret, SecretSize)
	require.NoError(t, rec.Verify())

	// The peer saw the digest and purpose before it was asked for a value.
	require.Len(t, peer.seenOut, 1)
	seen := strings.Join(peer.seenOut[0], "\n")
	assert.Contains(t, seen, "Morty: HMAC: "+string(rec.Digest))
	assert.Contains(t, seen, "to select the prize location")
	assert.NotContains(t, seen, rec.Secret.Hex(), "secret must not leak before the peer contributes")
}

func TestGenerateFairValueRetriesOutOfRangeValues(t *testing.T) {
	out := &recorder{}
	peer := &scriptedPeer{values: []int{7, -1, 1}}
	p := New("Morty", peer, out)

	_, err := p.GenerateFairValue(context.Background(), 3, "retry")
	require.NoError(t, err)
	assert.Equal(t, 3, peer.calls)
	assert.True(t, out.contains("between 0 and 2"))

	rec, ok := p.RevealLast()
	require.True(t, ok)
	assert.Equal(t, 1, rec.PeerValue)
}

func TestGenerateFairValueInvalidRange(t *testing.T) {
	p := New("Morty", &scriptedPeer{values: []int{0}}, &recorder{})
	for _, n := range []int{0, -1} {
		_, err := p.GenerateFairValue(context.Background(), n, "bad")
		assert.ErrorIs(t, err, ErrInvalidRange)
	}
	assert.Empty(t, p.History())
}

func TestGenerateFairValueSingleValueRange(t *testing.T) {
	p := New("Morty", &scriptedPeer{values: []int{0}}, &recorder{})
	final, err := p.GenerateFairValue(context.Background(), 1, "trivial")
	require.NoError(t, err)
	assert.Equal(t, 0, final)
}

func TestGenerateFairValueMaxRange(t *testing.T) {
	values := make([]int, 20)
	for i := range values {
		values[i] = math.MaxInt - 1
	}
	p := New("Morty", &scriptedPeer{values: values}, &recorder{})

	for range values {
		final, err := p.GenerateFairValue(context.Background(), math.MaxInt, "huge")
		require.NoError(t, err)
		require.True(t, final >= 0 && final < math.MaxInt, "final %d", final)
	}
	for _, rec := range p.History() {
		require.NoError(t, rec.Verify())
	}
}

func TestGenerateFairValueEntropyFailure(t *testing.T) {
	peer := &scriptedPeer{values: []int{0}}
	p := New("Morty", peer, &recorder{}, WithEntropy(iotest.ErrReader(errors.New("no entropy"))))

	_, err := p.GenerateFairValue(context.Background(), 3, "x")
	assert.ErrorIs(t, err, ErrEntropyUnavailable)
	assert.Zero(t, peer.calls, "peer must not be asked without a commitment")
	assert.Empty(t, p.History())
}

func TestGenerateFairValuePeerUnavailable(t *testing.T) {
	p := New("Morty", &scriptedPeer{}, &recorder{})
	_, err := p.GenerateFairValue(context.Background(), 3, "x")
	assert.ErrorIs(t, err, ErrPeerInputUnavailable)
	_, ok := p.RevealLast()
	assert.False(t, ok)
}

func TestRevealLast(t *testing.T) {
	p := New("Morty", &scriptedPeer{values: []int{0, 1}}, &recorder{})

	_, ok := p.RevealLast()
	assert.False(t, ok, "no exchange yet")

	_, err := p.GenerateFairValue(context.Background(), 4, "first")
	require.NoError(t, err)
	_, err = p.GenerateFairValue(context.Background(), 4, "second")
	require.NoError(t, err)

	a, ok := p.RevealLast()
	require.True(t, ok)
	b, ok := p.RevealLast()
	require.True(t, ok)
	assert.Equal(t, a, b)
	assert.Equal(t, "second", a.Purpose)
	assert.Equal(t, 2, a.Sequence)

	// Mutating a copy leaves history intact.
	a.Secret[0] ^= 0xff
	a.Final = 99
	c, _ := p.RevealLast()
	assert.Equal(t, b, c)
	require.NoError(t, c.Verify())
}

func TestHistoryAndSince(t *testing.T) {
	p := New("Morty", &scriptedPeer{values: []int{0, 0, 0}}, &recorder{})
	for _, purpose := range []string{"a", "b", "c"} {
		_, err := p.GenerateFairValue(context.Background(), 2, purpose)
		require.NoError(t, err)
	}

	all := p.History()
	require.Len(t, all, 3)
	for i, rec := range all {
		assert.Equal(t, i+1, rec.Sequence)
	}
	since := p.Since(1)
	require.Len(t, since, 2)
	assert.Equal(t, "b", since[0].Purpose)
	assert.Empty(t, p.Since(3))
	assert.Equal(t, 3, p.LastSequence())
}

func TestCloseCancelsInFlightExchange(t *testing.T) {
	peer := &blockingPeer{started: make(chan struct{})}
	p := New("Morty", peer, &recorder{}, WithOwnedPeer())

	errc := make(chan error, 1)
	go func() {
		_, err := p.GenerateFairValue(context.Background(), 3, "cancelled")
		errc <- err
	}()

	<-peer.started
	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "close is idempotent")

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrPeerInputUnavailable)
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not observe Close")
	}

	assert.True(t, peer.closed, "owned peer is closed")
	assert.Empty(t, p.History(), "cancelled exchange is discarded")

	_, err := p.GenerateFairValue(context.Background(), 3, "after close")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCallerContextCancellation(t *testing.T) {
	peer := &blockingPeer{started: make(chan struct{})}
	p := New("Morty", peer, &recorder{})
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := p.GenerateFairValue(ctx, 3, "cancelled")
		errc <- err
	}()
	<-peer.started
	cancel()

	err := <-errc
	assert.ErrorIs(t, err, ErrPeerInputUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, peer.closed, "peer is not owned")
}

func TestAnnouncerSeesCommitmentBeforeRequest(t *testing.T) {
	peer := &announcingPeer{}
	p := New("Morty", peer, &recorder{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.GenerateFairValue(context.Background(), 5, "concurrent")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, peer.overlaps, "exchanges must not interleave")
	history := p.History()
	require.Len(t, history, 8)
	require.Len(t, peer.announced, 8)
	for i, rec := range history {
		assert.Equal(t, rec.Commitment(), peer.announced[i])
	}
}

func TestDiscloseEmitsAndForwards(t *testing.T) {
	out := &recorder{}
	peer := &announcingPeer{}
	p := New("Morty", peer, out)

	_, err := p.GenerateFairValue(context.Background(), 3, "the prize")
	require.NoError(t, err)
	rec, ok := p.RevealLast()
	require.True(t, ok)

	require.NoError(t, p.Disclose(context.Background(), rec))
	assert.True(t, out.contains("KEY: "+rec.Secret.Hex()))
	assert.True(t, out.contains("the fair number for 'the prize' is "+rec.Arithmetic()))
	require.Len(t, peer.reveals, 1)
	assert.Equal(t, rec, peer.reveals[0])
}

func TestRecordVerifyDetectsTampering(t *testing.T) {
	p := New("Morty", &scriptedPeer{values: []int{1}}, &recorder{})
	_, err := p.GenerateFairValue(context.Background(), 5, "x")
	require.NoError(t, err)
	rec, _ := p.RevealLast()

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"committed value", func(r *Record) { r.Committed = (r.Committed + 1) % r.N }},
		{"final value", func(r *Record) { r.Final = (r.Final + 1) % r.N }},
		{"secret", func(r *Record) { r.Secret[0] ^= 1 }},
		{"range", func(r *Record) { r.N = 0 }},
		{"peer value", func(r *Record) { r.PeerValue = r.N }},
		{"negative final", func(r *Record) { r.Final = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := rec.clone()
			tt.mutate(&tampered)
			assert.Error(t, tampered.Verify())
		})
	}
}

func TestExchangePhaseOrdering(t *testing.T) {
	ex := &exchange{}
	require.Error(t, ex.advance(phaseAwaitingPeer), "cannot skip commit")
	require.NoError(t, ex.advance(phaseCommitted))
	require.Error(t, ex.advance(phaseCombined), "cannot combine before awaiting the peer")
	require.NoError(t, ex.advance(phaseAwaitingPeer))
	require.NoError(t, ex.advance(phaseCombined))
	assert.Equal(t, "combined", ex.phase.String())
}
