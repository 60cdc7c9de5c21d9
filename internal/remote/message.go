// Package remote lets the peer play from another machine over a websocket.
//
// The host side is a Peer: it satisfies game.Peer, game.Observer,
// fair.Announcer, fair.RevealReceiver and fair.Output, so a fair.Protocol and a
// game.Session can use it exactly like a local console. The guest side
// answers the host's questions from a local game.Peer, checks every
// disclosed exchange against the commitment it was shown earlier, and checks
// each round's outcome against the disclosed exchanges.
//
// Every request carries a sequence number and is answered with an ack,
// answer or error message carrying the same number. A commitment is always
// acknowledged before the value request that follows it is sent.
package remote

import (
	"encoding/json"
	"errors"

	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/game"
)

var (
	// ErrDisconnected means the websocket closed or failed.
	ErrDisconnected = errors.New("remote: peer disconnected")

	// ErrPeerFailed means the guest reported that it could not answer.
	ErrPeerFailed = errors.New("remote: peer failed to answer")

	// ErrProtocol means a message was malformed or out of place.
	ErrProtocol = errors.New("remote: protocol violation")

	// ErrBusy means a guest is already connected.
	ErrBusy = errors.New("remote: a guest is already connected")
)

// MessageType identifies the payload of a Message.
type MessageType string

// Host → guest.
const (
	MsgHello        MessageType = "hello"
	MsgSay          MessageType = "say"
	MsgCommit       MessageType = "commit"
	MsgRequestInt   MessageType = "request_int"
	MsgChooseSlot   MessageType = "choose_slot"
	MsgDecideSwitch MessageType = "decide_switch"
	MsgConfirm      MessageType = "confirm"
	MsgReveal       MessageType = "reveal"
	MsgRound        MessageType = "round"
	MsgBye          MessageType = "bye"
)

// Guest → host.
const (
	MsgAck    MessageType = "ack"
	MsgAnswer MessageType = "answer"
	MsgError  MessageType = "error"
)

// Message is the envelope for everything on the wire.
type Message struct {
	Type MessageType     `json:"type"`
	Seq  uint64          `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data into an envelope.
func NewMessage(t MessageType, seq uint64, data any) (*Message, error) {
	msg := &Message{Type: t, Seq: seq}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// Decode unpacks the payload into v.
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

type HelloData struct {
	Host     string `json:"host"`
	Strategy string `json:"strategy"`
	Boxes    int    `json:"boxes"`
	Session  string `json:"session,omitempty"`
}

type SayData struct {
	Text string `json:"text"`
}

type CommitData struct {
	Sequence int    `json:"sequence"`
	Purpose  string `json:"purpose"`
	N        int    `json:"n"`
	HMAC     string `json:"hmac"`
}

type RequestIntData struct {
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Prompt string `json:"prompt"`
}

type ChooseSlotData struct {
	N      int    `json:"n"`
	Prompt string `json:"prompt"`
}

type DecideSwitchData struct {
	Selected int `json:"selected"`
	Other    int `json:"other"`
}

type ConfirmData struct {
	Prompt string `json:"prompt"`
}

type RevealData struct {
	Sequence  int    `json:"sequence"`
	Purpose   string `json:"purpose"`
	N         int    `json:"n"`
	Committed int    `json:"committed"`
	PeerValue int    `json:"peer_value"`
	Final     int    `json:"final"`
	Key       string `json:"key"`
	HMAC      string `json:"hmac"`
}

// Answer carries the guest's reply to a question.
type Answer[T any] struct {
	Value T `json:"value"`
}

// RoundData is the host's account of a finished round. Exchanges lists the
// disclosed exchanges of the round, the prize draw first.
type RoundData struct {
	Round      int   `json:"round"`
	Boxes      int   `json:"boxes"`
	Prize      int   `json:"prize"`
	Selected   int   `json:"selected"`
	Eliminated []int `json:"eliminated"`
	Other      int   `json:"other"`
	Switched   bool  `json:"switched"`
	Won        bool  `json:"won"`
	Exchanges  []int `json:"exchanges"`
}

type ErrorData struct {
	Message string `json:"message"`
}

func commitData(c fair.Commitment) CommitData {
	return CommitData{Sequence: c.Sequence, Purpose: c.Purpose, N: c.N, HMAC: string(c.Digest)}
}

func roundData(res game.RoundResult) RoundData {
	d := RoundData{
		Round:      res.Round,
		Boxes:      res.Boxes,
		Prize:      res.Prize,
		Selected:   res.Selected,
		Eliminated: append([]int(nil), res.Eliminated...),
		Other:      res.Other,
		Switched:   res.Switched,
		Won:        res.Won,
	}
	for _, rec := range res.Exchanges {
		d.Exchanges = append(d.Exchanges, rec.Sequence)
	}
	return d
}

func revealData(r fair.Record) RevealData {
	return RevealData{
		Sequence:  r.Sequence,
		Purpose:   r.Purpose,
		N:         r.N,
		Committed: r.Committed,
		PeerValue: r.PeerValue,
		Final:     r.Final,
		Key:       r.Secret.Hex(),
		HMAC:      string(r.Digest),
	}
}

// Record rebuilds the disclosed exchange.
func (d RevealData) Record() (fair.Record, error) {
	secret, err := fair.ParseSecret(d.Key)
	if err != nil {
		return fair.Record{}, err
	}
	return fair.Record{
		Sequence:  d.Sequence,
		Purpose:   d.Purpose,
		N:         d.N,
		Committed: d.Committed,
		PeerValue: d.PeerValue,
		Final:     d.Final,
		Secret:    secret,
		Digest:    fair.Digest(d.HMAC),
	}, nil
}
