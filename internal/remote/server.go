package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Acceptor upgrades the first websocket request it sees into a Peer and
// turns every later one away. A hosted game has exactly one guest.
type Acceptor struct {
	upgrader websocket.Upgrader
	opts     []Option
	taken    atomic.Bool
	peers    chan *Peer
}

// NewAcceptor returns an http.Handler for the guest endpoint.
func NewAcceptor(opts ...Option) *Acceptor {
	return &Acceptor{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // guests are command-line clients, not browsers
			},
		},
		opts:  opts,
		peers: make(chan *Peer, 1),
	}
}

func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !a.taken.CompareAndSwap(false, true) {
		http.Error(w, ErrBusy.Error(), http.StatusConflict)
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.taken.Store(false)
		return
	}
	a.peers <- NewPeer(conn, a.opts...)
}

// Accept waits for the guest to connect.
func (a *Acceptor) Accept(ctx context.Context) (*Peer, error) {
	select {
	case p := <-a.peers:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Server listens for a guest on a TCP address.
type Server struct {
	*Acceptor
	ln  net.Listener
	srv *http.Server
}

// Listen starts serving the guest endpoint at path on addr.
func Listen(addr, path string, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	acc := NewAcceptor(opts...)
	mux := http.NewServeMux()
	mux.Handle(path, acc)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s := &Server{Acceptor: acc, ln: ln, srv: &http.Server{Handler: mux}}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger.Info().Str("addr", s.Addr()).Str("path", path).Msg("Waiting for guest")
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.logger.Error().Err(err).Msg("Guest endpoint stopped")
		}
	}()
	return s, nil
}

// Addr returns the address actually listened on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops accepting connections. A connected Peer stays open until it
// is closed itself.
func (s *Server) Close() error {
	return s.srv.Close()
}
