package fair

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// PeerInput collects the peer's contribution. Implementations block until
// a value in [min, max) is available, re-prompting on malformed input, and
// return an error only when the input channel itself is gone.
type PeerInput interface {
	RequestInt(ctx context.Context, min, max int, prompt string) (int, error)
}

// Output receives human-readable protocol progress. Showing the digest
// through Output is part of the protocol, not logging.
type Output interface {
	Emit(text string)
}

// Announcer is implemented by peer ports that must acknowledge a commitment
// before the value request is opened, such as a network transport.
type Announcer interface {
	Announce(ctx context.Context, c Commitment) error
}

// RevealReceiver is implemented by peer ports that want disclosed records
// delivered to them for independent verification.
type RevealReceiver interface {
	ReceiveReveal(ctx context.Context, r Record) error
}

type phase int

const (
	phaseIdle phase = iota
	phaseCommitted
	phaseAwaitingPeer
	phaseCombined
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseCommitted:
		return "committed"
	case phaseAwaitingPeer:
		return "awaiting-peer"
	case phaseCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// exchange tracks one in-flight commit/contribute/combine run.
type exchange struct {
	phase phase
	rec   Record
}

func (e *exchange) advance(next phase) error {
	if next != e.phase+1 {
		return fmt.Errorf("fair: exchange %d cannot move from %s to %s", e.rec.Sequence, e.phase, next)
	}
	e.phase = next
	return nil
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithEntropy replaces crypto/rand as the source for secrets and draws.
func WithEntropy(r io.Reader) Option {
	return func(p *Protocol) { p.entropy = r }
}

// WithClock sets the clock used to timestamp records.
func WithClock(c quartz.Clock) Option {
	return func(p *Protocol) { p.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Protocol) { p.logger = l }
}

// WithOwnedPeer makes Close also close the peer port if it is an io.Closer.
func WithOwnedPeer() Option {
	return func(p *Protocol) { p.ownsPeer = true }
}

// Protocol runs fair-value exchanges for one party. Exchanges on the same
// instance are strictly sequential.
type Protocol struct {
	name     string
	peer     PeerInput
	out      Output
	entropy  io.Reader
	keys     *KeyGenerator
	clock    quartz.Clock
	logger   zerolog.Logger
	ownsPeer bool

	// exchangeMu is held for the whole of an exchange.
	exchangeMu sync.Mutex

	mu      sync.Mutex
	history []Record
	closed  bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// New creates a protocol speaking as name, collecting contributions from
// peer and surfacing progress on out.
func New(name string, peer PeerInput, out Output, opts ...Option) *Protocol {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Protocol{
		name:   name,
		peer:   peer,
		out:    out,
		clock:  quartz.NewReal(),
		logger: zerolog.Nop(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.keys = NewKeyGenerator(p.entropy)
	p.logger = p.logger.With().Str("party", name).Logger()
	return p
}

// Name returns the party name used in output.
func (p *Protocol) Name() string {
	return p.name
}

// GenerateFairValue runs one full exchange over [0, n) and returns the
// combined value. The digest is emitted (and announced to ports that
// implement Announcer) before the peer is asked for its value. Failed or
// cancelled exchanges are never recorded.
func (p *Protocol) GenerateFairValue(ctx context.Context, n int, purpose string) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("%w: n=%d", ErrInvalidRange, n)
	}

	p.exchangeMu.Lock()
	defer p.exchangeMu.Unlock()

	if p.isClosed() {
		return 0, ErrClosed
	}

	ctx, stop := p.bind(ctx)
	defer stop()

	ex, err := p.commit(n, purpose)
	if err != nil {
		return 0, err
	}
	log := p.logger.With().Int("exchange", ex.rec.Sequence).Int("range", n).Str("purpose", purpose).Logger()
	log.Debug().Str("phase", ex.phase.String()).Str("digest", string(ex.rec.Digest)).Msg("Committed host value")

	p.say("HMAC: %s", ex.rec.Digest)
	p.say("I'm using this for %s.", purpose)
	if a, ok := p.peer.(Announcer); ok {
		if err := a.Announce(ctx, ex.rec.Commitment()); err != nil {
			log.Warn().Err(err).Msg("Commitment announcement failed")
			return 0, p.peerErr(ctx, err)
		}
	}

	if err := ex.advance(phaseAwaitingPeer); err != nil {
		return 0, err
	}
	peerValue, err := p.awaitPeer(ctx, n)
	if err != nil {
		log.Warn().Err(err).Msg("Exchange discarded")
		return 0, err
	}

	ex.rec.PeerValue = peerValue
	ex.rec.Final = Combine(ex.rec.Committed, peerValue, n)
	if err := ex.advance(phaseCombined); err != nil {
		return 0, err
	}
	ex.rec.CompletedAt = p.clock.Now()

	p.mu.Lock()
	p.history = append(p.history, ex.rec.clone())
	p.mu.Unlock()

	log.Debug().Str("phase", ex.phase.String()).Int("final", ex.rec.Final).Msg("Exchange complete")
	return ex.rec.Final, nil
}

func (p *Protocol) commit(n int, purpose string) (*exchange, error) {
	secret, err := p.keys.Generate()
	if err != nil {
		return nil, err
	}
	committed, err := Draw(p.entropy, n)
	if err != nil {
		return nil, err
	}
	digest, err := Commit(secret, committed)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	seq := len(p.history) + 1
	p.mu.Unlock()

	ex := &exchange{rec: Record{
		Sequence:    seq,
		Purpose:     purpose,
		N:           n,
		Committed:   committed,
		Secret:      secret,
		Digest:      digest,
		CommittedAt: p.clock.Now(),
	}}
	if err := ex.advance(phaseCommitted); err != nil {
		return nil, err
	}
	return ex, nil
}

func (p *Protocol) awaitPeer(ctx context.Context, n int) (int, error) {
	prompt := fmt.Sprintf("Enter your number [0,%d) so you don't whine later that I cheated, alright?", n)
	for {
		if err := ctx.Err(); err != nil {
			return 0, p.peerErr(ctx, err)
		}
		v, err := p.peer.RequestInt(ctx, 0, n, prompt)
		if err != nil {
			return 0, p.peerErr(ctx, err)
		}
		if v >= 0 && v < n {
			return v, nil
		}
		p.logger.Warn().Int("value", v).Int("range", n).Msg("Peer port returned out-of-range value")
		p.say("That's not a valid number. Please enter a number between 0 and %d.", n-1)
	}
}

// peerErr classifies a failure while talking to the peer port.
func (p *Protocol) peerErr(ctx context.Context, err error) error {
	if p.ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrPeerInputUnavailable, ErrClosed)
	}
	if errors.Is(err, ErrPeerInputUnavailable) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrPeerInputUnavailable, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrPeerInputUnavailable, err)
}

// bind derives a context that is also cancelled by Close.
func (p *Protocol) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// RevealLast returns a copy of the most recently completed exchange.
func (p *Protocol) RevealLast() (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return Record{}, false
	}
	return p.history[len(p.history)-1].clone(), true
}

// History returns copies of all completed exchanges in order.
func (p *Protocol) History() []Record {
	return p.Since(0)
}

// Since returns copies of completed exchanges with a sequence above seq.
func (p *Protocol) Since(seq int) []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= len(p.history) {
		return nil
	}
	out := make([]Record, 0, len(p.history)-seq)
	for _, rec := range p.history[seq:] {
		out = append(out, rec.clone())
	}
	return out
}

// LastSequence returns the sequence number of the latest completed exchange,
// or 0 when none has completed.
func (p *Protocol) LastSequence() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.history)
}

// Disclose emits the secret, committed value and arithmetic of rec and
// forwards it to the peer port if it implements RevealReceiver.
func (p *Protocol) Disclose(ctx context.Context, rec Record) error {
	p.say("Aww man, my random value is %d.", rec.Committed)
	p.say("KEY: %s", rec.Secret.Hex())
	p.say("So the fair number for '%s' is %s.", rec.Purpose, rec.Arithmetic())
	if r, ok := p.peer.(RevealReceiver); ok {
		if err := r.ReceiveReveal(ctx, rec.clone()); err != nil {
			return fmt.Errorf("%w: %w", ErrPeerInputUnavailable, err)
		}
	}
	return nil
}

// Close cancels any in-flight peer wait and, with WithOwnedPeer, closes the
// peer port. It is safe to call more than once.
func (p *Protocol) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.cancel()
		if p.ownsPeer {
			if c, ok := p.peer.(io.Closer); ok {
				p.closeErr = c.Close()
			}
		}
		p.logger.Debug().Msg("Protocol closed")
	})
	return p.closeErr
}

func (p *Protocol) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Protocol) say(format string, args ...any) {
	if p.out == nil {
		return
	}
	p.out.Emit(p.name + ": " + fmt.Sprintf(format, args...))
}
