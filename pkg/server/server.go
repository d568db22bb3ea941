package server

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pressbus/pressbus/pkg/config"
	"github.com/pressbus/pressbus/pkg/history"
	"github.com/pressbus/pressbus/pkg/log"
	"github.com/pressbus/pressbus/pkg/metrics"
	"github.com/pressbus/pressbus/pkg/protocol"
	"github.com/pressbus/pressbus/pkg/registry"
	"github.com/pressbus/pressbus/pkg/types"
)

const (
	// outboundBuffer is each connection's outbound queue depth
	outboundBuffer = 64

	// enqueueTimeout bounds how long a broadcast waits on a saturated
	// subscriber before force-closing it.
	enqueueTimeout = 2 * time.Second

	// writeTimeout bounds a single socket write to a peer
	writeTimeout = 10 * time.Second
)

// Server is the routing and connection engine: it accepts connections, runs
// one receive loop per connection, mutates the subscription registry, appends
// to the history store, and fans published articles out to matching
// subscribers. Registry and store are constructor-injected; the server owns
// no ambient state.
type Server struct {
	cfg    *config.Config
	set    *types.CategorySet
	reg    *registry.Registry
	store  *history.Store
	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*conn
	running  bool

	wg sync.WaitGroup
}

// New creates a server from its injected collaborators
func New(cfg *config.Config, reg *registry.Registry, store *history.Store) *Server {
	return &Server{
		cfg:    cfg,
		set:    cfg.CategorySet(),
		reg:    reg,
		store:  store,
		logger: log.WithComponent("server"),
		conns:  make(map[string]*conn),
	}
}

// Start binds the listener and launches the accept loop. The resolved listen
// address, configured categories, and loaded history size are reported before
// any connection is accepted. Only a bind failure is fatal.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.ListenAddr(), err)
	}
	s.listener = listener
	s.running = true

	s.logger.Info().
		Str("address", listener.Addr().String()).
		Str("categories", strings.Join(s.set.Names(), ", ")).
		Int("history", s.store.Len()).
		Msg("server listening")
	metrics.HistorySize.Set(float64(s.store.Len()))

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Addr returns the resolved listen address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every live connection, then waits for all
// connection goroutines to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	open := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		open = append(open, c)
	}
	s.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
	for _, c := range open {
		c.close("server shutdown")
	}

	s.wg.Wait()
	s.logger.Info().Msg("server stopped")
	return nil
}

// acceptLoop accepts connections until the listener closes. An accept error
// on a live listener is logged and retried; it never terminates the server.
func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		sock, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}

		metrics.ConnectionsTotal.Inc()
		s.wg.Add(1)
		go s.handle(sock)
	}
}

// handle runs one connection's lifecycle from registration to teardown
func (s *Server) handle(sock net.Conn) {
	defer s.wg.Done()

	id := uuid.NewString()
	remoteAddr := sock.RemoteAddr().String()
	logger := log.WithConn(id, remoteAddr)

	outbound := make(chan *protocol.Message, outboundBuffer)
	entry, err := s.reg.Register(id, remoteAddr, outbound)
	if err != nil {
		// Should not occur with generated identities; connection-local only.
		logger.Error().Err(err).Msg("registration failed")
		_ = sock.Close()
		return
	}

	c := newConn(s, id, sock, entry, outbound, logger)

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		c.close("server shutting down")
		return
	}
	s.conns[id] = c
	s.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	logger.Info().Msg("connection accepted")

	c.run()
}

// removeConn drops a connection from the live table after teardown
func (s *Server) removeConn(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// broadcast fans one published article out to the registry's snapshot for
// its category. Each matching connection (the publisher included, if it
// matches) gets the NEWS message on its own outbound path; a subscriber that
// cannot accept the message within the enqueue timeout is force-closed so it
// never stalls the broadcast for the others.
func (s *Server) broadcast(article *protocol.Message, category string) int {
	matched := s.reg.Matching(category)

	delivered := 0
	for _, entry := range matched {
		s.mu.Lock()
		target, ok := s.conns[entry.ID]
		s.mu.Unlock()
		if !ok {
			continue
		}
		if target.enqueue(article) {
			delivered++
			metrics.NewsDeliveries.Inc()
		}
	}
	return delivered
}
