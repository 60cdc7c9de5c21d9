package remote

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/game"
	"github.com/lox/fairbox/internal/strategy"
)

// Guest plays the peer's side of a hosted game.
type Guest struct {
	conn   *websocket.Conn
	local  game.Peer
	out    fair.Output
	logger *log.Logger

	writeMu sync.Mutex

	// Commitments shown so far and what we contributed to each, by
	// exchange sequence.
	commitments map[int]fair.Commitment
	contributed map[int]int
	revealed    map[int]RevealData
	current     int
	// settled is the highest exchange accounted for by a checked round.
	settled int

	mu         sync.Mutex
	hello      HelloData
	verified   int
	mismatched int
	roundsOK   int
	roundsBad  int
}

// Dial connects to a host. serverURL may use http, https, ws or wss.
func Dial(ctx context.Context, serverURL string, local game.Peer, out fair.Output, logger *log.Logger) (*Guest, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	if logger == nil {
		logger = log.Default()
	}
	logger.Info("Connecting to host", "url", u.String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return NewGuest(conn, local, out, logger), nil
}

// NewGuest wraps an established connection.
func NewGuest(conn *websocket.Conn, local game.Peer, out fair.Output, logger *log.Logger) *Guest {
	if logger == nil {
		logger = log.Default()
	}
	return &Guest{
		conn:        conn,
		local:       local,
		out:         out,
		logger:      logger.WithPrefix("guest"),
		commitments: make(map[int]fair.Commitment),
		contributed: make(map[int]int),
		revealed:    make(map[int]RevealData),
	}
}

// Report returns how many disclosed exchanges checked out and how many did
// not.
func (g *Guest) Report() (verified, mismatched int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verified, g.mismatched
}

// RoundReport returns how many round outcomes matched their disclosed
// exchanges and how many did not. Exchanges the host committed to but never
// disclosed count against the round they were hidden in.
func (g *Guest) RoundReport() (verified, mismatched int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roundsOK, g.roundsBad
}

// Hello returns the game description the host sent, if any.
func (g *Guest) Hello() HelloData {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hello
}

// Run answers the host until it says goodbye, the connection drops or ctx
// is cancelled. A goodbye from the host returns nil.
func (g *Guest) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = g.conn.Close() })
	defer stop()
	defer g.conn.Close()

	for {
		var msg Message
		if err := g.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		if msg.Type == MsgBye {
			g.logger.Info("Host ended the game")
			g.checkLeftovers()
			return nil
		}
		if err := g.handle(ctx, &msg); err != nil {
			g.logger.Error("Cannot answer host", "type", msg.Type, "err", err)
			if reply, mErr := NewMessage(MsgError, msg.Seq, ErrorData{Message: err.Error()}); mErr == nil {
				_ = g.write(reply)
			}
			return err
		}
	}
}

func (g *Guest) handle(ctx context.Context, msg *Message) error {
	switch msg.Type {
	case MsgHello:
		var d HelloData
		if err := msg.Decode(&d); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		g.mu.Lock()
		g.hello = d
		g.mu.Unlock()
		g.emit("Host: %s is hosting %d boxes with the %s strategy.", d.Host, d.Boxes, d.Strategy)
		return g.reply(MsgAck, msg.Seq, nil)

	case MsgSay:
		var d SayData
		if err := msg.Decode(&d); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		if g.out != nil {
			g.out.Emit(d.Text)
		}
		return nil

	case MsgCommit:
		var d CommitData
		if err := msg.Decode(&d); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		if _, seen := g.commitments[d.Sequence]; seen {
			return fmt.Errorf("%w: exchange %d committed twice", ErrProtocol, d.Sequence)
		}
		g.commitments[d.Sequence] = fair.Commitment{Sequence: d.Sequence, Purpose: d.Purpose, N: d.N, Digest: fair.Digest(d.HMAC)}
		g.current = d.Sequence
		g.logger.Debug("Commitment received", "exchange", d.Sequence, "hmac", d.HMAC)
		return g.reply(MsgAck, msg.Seq, nil)

	case MsgRequestInt:
		var d RequestIntData
		if err := msg.Decode(&d); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		if g.current == 0 {
			return fmt.Errorf("%w: value requested before any commitment", ErrProtocol)
		}
		v, err := g.local.RequestInt(ctx, d.Min, d.Max, d.Prompt)
		if err != nil {
			return err
		}
		g.contributed[g.current] = v
		return g.reply(MsgAnswer, msg.Seq, Answer[int]{Value: v})

	case MsgChooseSlot:
		var d ChooseSlotData
		if err := msg.Decode(&d); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		v, err := g.local.ChooseSlot(ctx, d.N, d.Prompt)
		if err != nil {
			return err
		}
		return g.reply(MsgAnswer, msg.Seq, Answer[int]{Value: v})

	case MsgDecideSwitch:
		var d DecideSwitchData
		if err := msg.Decode(&d); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		v, err := g.local.DecideSwitch(ctx, d.Selected, d.Other)
		if err != nil {
			return err
		}
		return g.reply(MsgAnswer, msg.Seq, Answer[bool]{Value: v})

	case MsgConfirm:
		var d ConfirmData
		if err := msg.Decode(&d); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		v, err := g.local.Confirm(ctx, d.Prompt)
		if err != nil {
			return err
		}
		return g.reply(MsgAnswer, msg.Seq, Answer[bool]{Value: v})

	case MsgReveal:
		var d RevealData
		if err := msg.Decode(&d); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		g.check(d)
		return g.reply(MsgAck, msg.Seq, nil)

	case MsgRound:
		var d RoundData
		if err := msg.Decode(&d); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		g.checkRound(d)
		return nil

	default:
		g.logger.Warn("Ignoring unknown message", "type", msg.Type)
		return nil
	}
}

// check compares a disclosure with what was committed and contributed.
func (g *Guest) check(d RevealData) {
	g.revealed[d.Sequence] = d
	var problems []string
	c, ok := g.commitments[d.Sequence]
	switch {
	case !ok:
		problems = append(problems, "no commitment was shown for it")
	case !strings.EqualFold(string(c.Digest), d.HMAC):
		problems = append(problems, fmt.Sprintf("HMAC changed from %s to %s", c.Digest, d.HMAC))
	case c.N != d.N:
		problems = append(problems, fmt.Sprintf("range changed from %d to %d", c.N, d.N))
	}
	if v, ok := g.contributed[d.Sequence]; ok && v != d.PeerValue {
		problems = append(problems, fmt.Sprintf("our value was %d, host used %d", v, d.PeerValue))
	}
	if rec, err := d.Record(); err != nil {
		problems = append(problems, err.Error())
	} else if err := rec.Verify(); err != nil {
		problems = append(problems, err.Error())
	}

	g.mu.Lock()
	if len(problems) == 0 {
		g.verified++
	} else {
		g.mismatched++
	}
	g.mu.Unlock()

	if len(problems) == 0 {
		g.emit("Verifier: VERIFIED exchange %d (%s): HMAC-SHA3-256(KEY, %d) matches and %d + %d mod %d = %d.",
			d.Sequence, d.Purpose, d.Committed, d.Committed, d.PeerValue, d.N, d.Final)
		return
	}
	g.logger.Error("Disclosure does not match commitment", "exchange", d.Sequence, "problems", strings.Join(problems, "; "))
	g.emit("Verifier: MISMATCH in exchange %d: %s", d.Sequence, strings.Join(problems, "; "))
}

// checkRound compares the host's account of a round with what was disclosed:
// the prize must be the final value of the round's first exchange, every
// exchange committed since the previous round must have been disclosed, and
// the elimination and outcome must be consistent.
func (g *Guest) checkRound(d RoundData) {
	var problems []string
	g.mu.Lock()
	announced := g.hello.Boxes
	g.mu.Unlock()
	if announced != 0 && announced != d.Boxes {
		problems = append(problems, fmt.Sprintf("played with %d boxes, host announced %d", d.Boxes, announced))
	}

	if len(d.Exchanges) == 0 {
		problems = append(problems, "no exchanges were disclosed")
	}
	inRound := make(map[int]bool, len(d.Exchanges))
	for i, seq := range d.Exchanges {
		inRound[seq] = true
		rev, ok := g.revealed[seq]
		if !ok {
			problems = append(problems, fmt.Sprintf("exchange %d was never disclosed", seq))
			continue
		}
		if i > 0 {
			continue
		}
		switch {
		case rev.N != d.Boxes:
			problems = append(problems, fmt.Sprintf("prize drawn over %d boxes, want %d", rev.N, d.Boxes))
		case rev.Final != d.Prize:
			problems = append(problems, fmt.Sprintf("prize box %d does not match exchange %d final value %d", d.Prize, seq, rev.Final))
		}
	}
	for _, seq := range slices.Sorted(maps.Keys(g.commitments)) {
		if seq <= g.settled || inRound[seq] {
			continue
		}
		if _, ok := g.revealed[seq]; ok {
			problems = append(problems, fmt.Sprintf("exchange %d is not part of any round", seq))
		} else {
			problems = append(problems, fmt.Sprintf("exchange %d was committed but never disclosed", seq))
		}
		g.settled = max(g.settled, seq)
	}
	for _, seq := range d.Exchanges {
		g.settled = max(g.settled, seq)
	}

	if err := strategy.CheckElimination(d.Boxes, d.Selected, d.Prize, d.Eliminated); err != nil {
		problems = append(problems, err.Error())
	}
	if d.Other == d.Selected || d.Other < 0 || d.Other >= d.Boxes || slices.Contains(d.Eliminated, d.Other) {
		problems = append(problems, fmt.Sprintf("box %d cannot be the other survivor", d.Other))
	}
	final := d.Selected
	if d.Switched {
		final = d.Other
	}
	if won := final == d.Prize; won != d.Won {
		problems = append(problems, fmt.Sprintf("reported won=%t but final box %d and prize %d", d.Won, final, d.Prize))
	}

	g.mu.Lock()
	if len(problems) == 0 {
		g.roundsOK++
	} else {
		g.roundsBad++
	}
	g.mu.Unlock()

	if len(problems) == 0 {
		g.emit("Verifier: VERIFIED round %d: prize box %d came from exchange %d.", d.Round, d.Prize, d.Exchanges[0])
		return
	}
	g.logger.Error("Round does not match disclosures", "round", d.Round, "problems", strings.Join(problems, "; "))
	g.emit("Verifier: MISMATCH in round %d: %s", d.Round, strings.Join(problems, "; "))
}

// checkLeftovers flags commitments that were never disclosed by the time
// the host ended the game.
func (g *Guest) checkLeftovers() {
	var hidden []string
	for _, seq := range slices.Sorted(maps.Keys(g.commitments)) {
		if seq <= g.settled {
			continue
		}
		if _, ok := g.revealed[seq]; !ok {
			hidden = append(hidden, fmt.Sprint(seq))
		}
	}
	if len(hidden) == 0 {
		return
	}
	g.mu.Lock()
	g.roundsBad++
	g.mu.Unlock()
	g.logger.Warn("Exchanges never disclosed", "exchanges", strings.Join(hidden, ", "))
	g.emit("Verifier: MISMATCH: committed but never disclosed: %s", strings.Join(hidden, ", "))
}

func (g *Guest) reply(t MessageType, seq uint64, data any) error {
	msg, err := NewMessage(t, seq, data)
	if err != nil {
		return err
	}
	return g.write(msg)
}

func (g *Guest) write(msg *Message) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	_ = g.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := g.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

func (g *Guest) emit(format string, args ...any) {
	if g.out != nil {
		g.out.Emit(fmt.Sprintf(format, args...))
	}
}

// Close drops the connection.
func (g *Guest) Close() error {
	err := g.conn.Close()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
