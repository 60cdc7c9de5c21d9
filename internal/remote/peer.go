package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/game"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

// Option configures the host side.
type Option func(*options)

type options struct {
	logger       zerolog.Logger
	clock        quartz.Clock
	pingInterval time.Duration
}

func defaultOptions() options {
	return options{
		logger:       zerolog.Nop(),
		clock:        quartz.NewReal(),
		pingInterval: 30 * time.Second,
	}
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock that drives keepalive pings.
func WithClock(c quartz.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithPingInterval sets how often the host pings the guest.
func WithPingInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pingInterval = d
		}
	}
}

// Peer is the host's handle on a connected guest. Requests are answered in
// order; there is no deadline on answers, since a person may take as long
// as they like to choose.
type Peer struct {
	conn   *websocket.Conn
	opts   options
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan *Message
	nextSeq uint64

	done     chan struct{}
	doneOnce sync.Once
	doneErr  error
}

// NewPeer starts serving conn. The peer owns the connection from now on.
func NewPeer(conn *websocket.Conn, opts ...Option) *Peer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	p := &Peer{
		conn:    conn,
		opts:    o,
		logger:  o.logger.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		pending: make(map[uint64]chan *Message),
		done:    make(chan struct{}),
	}
	go p.readLoop()
	go p.keepalive()
	return p
}

// Done is closed once the connection is gone.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Err returns why the connection ended, or nil while it is open.
func (p *Peer) Err() error {
	select {
	case <-p.done:
		return p.doneErr
	default:
		return nil
	}
}

// Hello introduces the game to the guest.
func (p *Peer) Hello(ctx context.Context, h HelloData) error {
	return p.call(ctx, MsgHello, h, nil)
}

// Emit forwards a line of host output. Delivery is best effort.
func (p *Peer) Emit(text string) {
	p.notify(MsgSay, SayData{Text: text})
}

// RoundCompleted tells the guest how a round ended so it can check the
// outcome against the disclosed exchanges. Delivery is best effort.
func (p *Peer) RoundCompleted(res game.RoundResult) {
	p.notify(MsgRound, roundData(res))
}

// notify sends a message that expects no reply.
func (p *Peer) notify(t MessageType, data any) {
	if p.Err() != nil {
		return
	}
	msg, err := NewMessage(t, 0, data)
	if err != nil {
		return
	}
	if err := p.write(msg); err != nil {
		p.logger.Debug().Err(err).Str("type", string(t)).Msg("Dropped notification")
	}
}

// Announce sends the commitment and waits for the guest to acknowledge it.
func (p *Peer) Announce(ctx context.Context, c fair.Commitment) error {
	return p.call(ctx, MsgCommit, commitData(c), nil)
}

// ReceiveReveal discloses an exchange and waits for the acknowledgement.
func (p *Peer) ReceiveReveal(ctx context.Context, r fair.Record) error {
	return p.call(ctx, MsgReveal, revealData(r), nil)
}

func (p *Peer) RequestInt(ctx context.Context, min, max int, prompt string) (int, error) {
	var a Answer[int]
	if err := p.call(ctx, MsgRequestInt, RequestIntData{Min: min, Max: max, Prompt: prompt}, &a); err != nil {
		return 0, err
	}
	return a.Value, nil
}

func (p *Peer) ChooseSlot(ctx context.Context, n int, prompt string) (int, error) {
	var a Answer[int]
	if err := p.call(ctx, MsgChooseSlot, ChooseSlotData{N: n, Prompt: prompt}, &a); err != nil {
		return 0, err
	}
	return a.Value, nil
}

func (p *Peer) DecideSwitch(ctx context.Context, selected, other int) (bool, error) {
	var a Answer[bool]
	if err := p.call(ctx, MsgDecideSwitch, DecideSwitchData{Selected: selected, Other: other}, &a); err != nil {
		return false, err
	}
	return a.Value, nil
}

func (p *Peer) Confirm(ctx context.Context, prompt string) (bool, error) {
	var a Answer[bool]
	if err := p.call(ctx, MsgConfirm, ConfirmData{Prompt: prompt}, &a); err != nil {
		return false, err
	}
	return a.Value, nil
}

// Close says goodbye and closes the connection. It is safe to call more
// than once.
func (p *Peer) Close() error {
	if p.Err() == nil {
		if msg, err := NewMessage(MsgBye, 0, nil); err == nil {
			_ = p.write(msg)
		}
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"), time.Now().Add(writeWait))
		p.writeMu.Unlock()
	}
	p.shutdown(fmt.Errorf("%w: %w", ErrDisconnected, fair.ErrClosed))
	return nil
}

func (p *Peer) call(ctx context.Context, t MessageType, data, reply any) error {
	if err := p.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch := make(chan *Message, 1)
	p.mu.Lock()
	p.nextSeq++
	seq := p.nextSeq
	p.pending[seq] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, seq)
		p.mu.Unlock()
	}()

	msg, err := NewMessage(t, seq, data)
	if err != nil {
		return err
	}
	if err := p.write(msg); err != nil {
		return err
	}
	p.logger.Debug().Str("type", string(t)).Uint64("seq", seq).Msg("Waiting for guest")

	select {
	case resp := <-ch:
		return replyErr(t, resp, reply)
	case <-p.done:
		// The read loop hands over a reply before it notices the
		// connection closing, so a reply may already be waiting.
		select {
		case resp := <-ch:
			return replyErr(t, resp, reply)
		default:
			return p.doneErr
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func replyErr(t MessageType, resp *Message, reply any) error {
	switch resp.Type {
	case MsgAck, MsgAnswer:
		if reply == nil {
			return nil
		}
		if err := resp.Decode(reply); err != nil {
			return fmt.Errorf("%w: bad %s reply: %v", ErrProtocol, t, err)
		}
		return nil
	case MsgError:
		var e ErrorData
		_ = resp.Decode(&e)
		return fmt.Errorf("%w: %s", ErrPeerFailed, e.Message)
	default:
		return fmt.Errorf("%w: %s answered with %s", ErrProtocol, t, resp.Type)
	}
}

func (p *Peer) write(msg *Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(msg); err != nil {
		err = fmt.Errorf("%w: %v", ErrDisconnected, err)
		p.shutdown(err)
		return err
	}
	return nil
}

func (p *Peer) readLoop() {
	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Warn().Err(err).Msg("Guest connection lost")
			}
			p.shutdown(fmt.Errorf("%w: %v", ErrDisconnected, err))
			return
		}

		p.mu.Lock()
		ch, ok := p.pending[msg.Seq]
		p.mu.Unlock()
		if !ok {
			p.logger.Warn().Str("type", string(msg.Type)).Uint64("seq", msg.Seq).Msg("Unsolicited message from guest")
			continue
		}
		select {
		case ch <- &msg:
		default:
			p.logger.Warn().Uint64("seq", msg.Seq).Msg("Duplicate reply from guest")
		}
	}
}

func (p *Peer) keepalive() {
	ticker := p.opts.clock.NewTicker(p.opts.pingInterval, "remote", "keepalive")
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.writeMu.Lock()
			err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			p.writeMu.Unlock()
			if err != nil {
				p.shutdown(fmt.Errorf("%w: ping: %v", ErrDisconnected, err))
				return
			}
		}
	}
}

func (p *Peer) shutdown(err error) {
	p.doneOnce.Do(func() {
		p.doneErr = err
		close(p.done)
		_ = p.conn.Close()
		p.logger.Debug().Err(err).Msg("Remote peer closed")
	})
}
