package fair

import (
	"context"
	"strings"
	"sync"
)

// recorder captures emitted lines.
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Emit(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recorder) contains(substr string) bool {
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// scriptedPeer answers requests from a fixed list and records what the
// output looked like at the time of each request.
type scriptedPeer struct {
	mu      sync.Mutex
	values  []int
	calls   int
	out     *recorder
	seenOut [][]string
}

func (s *scriptedPeer) RequestInt(ctx context.Context, min, max int, prompt string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out != nil {
		s.seenOut = append(s.seenOut, s.out.Lines())
	}
	if s.calls >= len(s.values) {
		return 0, ErrPeerInputUnavailable
	}
	v := s.values[s.calls]
	s.calls++
	return v, nil
}

// blockingPeer waits for its context to end.
type blockingPeer struct {
	started chan struct{}
	closed  bool
}

func (b *blockingPeer) RequestInt(ctx context.Context, min, max int, prompt string) (int, error) {
	close(b.started)
	<-ctx.Done()
	return 0, ctx.Err()
}

func (b *blockingPeer) Close() error {
	b.closed = true
	return nil
}

// announcingPeer checks that each request follows an announcement for the
// same exchange and that announcements never overlap.
type announcingPeer struct {
	mu        sync.Mutex
	announced []Commitment
	pending   int
	overlaps  int
	reveals   []Record
}

func (a *announcingPeer) Announce(ctx context.Context, c Commitment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending++
	if a.pending > 1 {
		a.overlaps++
	}
	a.announced = append(a.announced, c)
	return nil
}

func (a *announcingPeer) RequestInt(ctx context.Context, min, max int, prompt string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != 1 {
		a.overlaps++
	}
	a.pending--
	return max - 1, nil
}

func (a *announcingPeer) ReceiveReveal(ctx context.Context, r Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reveals = append(a.reveals, r)
	return nil
}
