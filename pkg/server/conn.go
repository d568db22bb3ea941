package server

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pressbus/pressbus/pkg/history"
	"github.com/pressbus/pressbus/pkg/metrics"
	"github.com/pressbus/pressbus/pkg/protocol"
	"github.com/pressbus/pressbus/pkg/registry"
	"github.com/pressbus/pressbus/pkg/types"
)

// connState tracks a connection's position in its lifecycle:
// CONNECTED -> ACTIVE -> CLOSING -> CLOSED, no other transitions.
type connState string

const (
	stateConnected connState = "connected"
	stateActive    connState = "active"
	stateClosing   connState = "closing"
	stateClosed    connState = "closed"
)

// conn is one accepted connection: its socket, registry entry, outbound
// queue, and the goroutines serving it. The read loop is the only reader of
// the socket; the writer goroutine is the only writer.
type conn struct {
	server   *Server
	id       string
	sock     net.Conn
	entry    *registry.Entry
	outbound chan *protocol.Message
	done     chan struct{}
	logger   zerolog.Logger

	stateMu sync.Mutex
	state   connState

	closeOnce sync.Once
}

func newConn(s *Server, id string, sock net.Conn, entry *registry.Entry, outbound chan *protocol.Message, logger zerolog.Logger) *conn {
	return &conn{
		server:   s,
		id:       id,
		sock:     sock,
		entry:    entry,
		outbound: outbound,
		done:     make(chan struct{}),
		logger:   logger,
		state:    stateConnected,
	}
}

func (c *conn) setState(next connState) {
	c.stateMu.Lock()
	c.state = next
	c.stateMu.Unlock()
	c.logger.Debug().Str("state", string(next)).Msg("connection state")
}

// run drives the connection: writer goroutine, welcome message, then the
// receive loop until the peer disconnects or the socket fails.
func (c *conn) run() {
	writerDone := make(chan struct{})
	go c.writeLoop(writerDone)

	categories := c.server.set.Names()
	c.enqueue(protocol.Success(fmt.Sprintf(
		"connected to news server; categories: %s", strings.Join(categories, ", "))))

	c.setState(stateActive)
	c.readLoop()

	c.close("receive loop ended")
	<-writerDone
}

// writeLoop serializes all writes to this peer's socket. No other goroutine
// touches the socket's write side.
func (c *conn) writeLoop(writerDone chan struct{}) {
	defer close(writerDone)

	encoder := protocol.NewEncoder(c.sock)
	for {
		select {
		case msg := <-c.outbound:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := encoder.Encode(msg); err != nil {
				// Socket-level fault: fatal to this connection only, no
				// response attempted.
				c.logger.Debug().Err(err).Msg("write failed")
				c.close("write failure")
				return
			}
		case <-c.done:
			// Flush whatever was enqueued before the close.
			for {
				select {
				case msg := <-c.outbound:
					_ = c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
					if encoder.Encode(msg) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// readLoop decodes and dispatches messages until a fatal condition
func (c *conn) readLoop() {
	decoder := protocol.NewDecoder(c.sock, c.server.cfg.BufferSize, protocol.DefaultMaxFrameSize)

	for {
		msg, err := decoder.Decode()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedMessage) {
				metrics.RequestErrors.WithLabelValues("malformed").Inc()
				c.enqueue(protocol.Error("malformed message"))
				continue
			}
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				metrics.RequestErrors.WithLabelValues("oversize").Inc()
				c.enqueue(protocol.Error("message too large"))
				continue
			}
			// EOF or socket fault: connection-local, close without response.
			c.logger.Debug().Err(err).Msg("receive loop ending")
			return
		}

		metrics.MessagesReceived.WithLabelValues(string(msg.Type)).Inc()
		if !c.dispatch(msg) {
			return
		}
	}
}

// dispatch handles one request; returns false when the connection should close
func (c *conn) dispatch(msg *protocol.Message) bool {
	switch msg.Type {
	case protocol.TypeSubscribe:
		c.handleSubscribe(msg)
	case protocol.TypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case protocol.TypeList:
		c.handleList()
	case protocol.TypeHistory:
		c.handleHistory(msg)
	case protocol.TypePublish:
		c.handlePublish(msg)
	case protocol.TypeDeleteNews:
		c.handleDelete(msg)
	case protocol.TypeClear:
		c.handleClear()
	case protocol.TypeDisconnect:
		c.logger.Info().Msg("peer requested disconnect")
		c.enqueue(protocol.Success("disconnected"))
		c.awaitFlush()
		return false
	default:
		c.fail(string(msg.Type), fmt.Sprintf("unknown command %q", msg.Type))
	}
	return true
}

func (c *conn) handleSubscribe(msg *protocol.Message) {
	targets, err := msg.CategoryTargets()
	if err != nil {
		c.fail("SUBSCRIBE", "missing category")
		return
	}

	// Validate the whole request before mutating anything.
	set := c.server.set
	for _, category := range targets {
		if !set.ValidTarget(category) {
			c.fail("SUBSCRIBE", fmt.Sprintf("category %q does not exist", category))
			return
		}
	}

	for _, category := range targets {
		if err := c.server.reg.Subscribe(c.id, category); err != nil {
			c.fail("SUBSCRIBE", err.Error())
			return
		}
	}

	c.logger.Info().Strs("categories", targets).Msg("subscribed")
	c.enqueue(protocol.Success(fmt.Sprintf("subscribed to %s", strings.Join(targets, ", "))))
}

func (c *conn) handleUnsubscribe(msg *protocol.Message) {
	targets, err := msg.CategoryTargets()
	if err != nil {
		c.fail("UNSUBSCRIBE", "missing category")
		return
	}

	for _, category := range targets {
		if err := c.server.reg.Unsubscribe(c.id, category); err != nil {
			c.fail("UNSUBSCRIBE", err.Error())
			return
		}
	}

	c.logger.Info().Strs("categories", targets).Msg("unsubscribed")
	c.enqueue(protocol.Success(fmt.Sprintf("unsubscribed from %s", strings.Join(targets, ", "))))
}

func (c *conn) handleList() {
	response := protocol.Categories(c.server.set.Names())
	if subscriptions, err := c.server.reg.Subscriptions(c.id); err == nil && len(subscriptions) > 0 {
		response.Data["subscriptions"] = subscriptions
	}
	c.enqueue(response)
}

func (c *conn) handleHistory(msg *protocol.Message) {
	category := msg.StringOr("category", "")
	if types.Normalize(category) == c.server.set.Wildcard() {
		category = ""
	}
	limit := msg.IntOr("limit", 0)

	articles := c.server.store.Query(category, limit)
	c.enqueue(protocol.History(articles))
}

func (c *conn) handlePublish(msg *protocol.Message) {
	title, err := msg.String("title")
	if err != nil {
		c.fail("PUBLISH", "missing title")
		return
	}
	category, err := msg.String("category")
	if err != nil {
		c.fail("PUBLISH", "missing category")
		return
	}
	lead := msg.StringOr("lead", "")

	article, err := c.server.store.Publish(title, lead, category)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidCategory):
			c.fail("PUBLISH", fmt.Sprintf("category %q does not exist", category))
		case errors.Is(err, history.ErrEmptyTitle):
			c.fail("PUBLISH", "title must not be empty")
		case errors.Is(err, history.ErrPersistence):
			c.logger.Error().Err(err).Msg("publish persistence failed")
			c.fail("PUBLISH", "could not store article")
		default:
			c.fail("PUBLISH", err.Error())
		}
		return
	}

	metrics.ArticlesPublished.WithLabelValues(article.Category).Inc()
	metrics.HistorySize.Set(float64(c.server.store.Len()))

	delivered := c.server.broadcast(protocol.News(article), article.Category)
	c.logger.Info().
		Int64("article_id", article.ID).
		Str("category", article.Category).
		Int("subscribers", delivered).
		Msg("article published")

	c.enqueue(protocol.Success(fmt.Sprintf("article published (id %d)", article.ID)))
}

func (c *conn) handleDelete(msg *protocol.Message) {
	ids, err := msg.IDList()
	if err != nil {
		c.fail("DELETE_NEWS", "missing article ids")
		return
	}

	removed, err := c.server.store.Delete(ids)
	if err != nil {
		c.logger.Error().Err(err).Msg("delete persistence failed")
		c.fail("DELETE_NEWS", "could not update history")
		return
	}

	metrics.HistorySize.Set(float64(c.server.store.Len()))
	c.logger.Info().Int("removed", removed).Msg("articles deleted")
	c.enqueue(protocol.Success(fmt.Sprintf("removed %d article(s)", removed)))
}

func (c *conn) handleClear() {
	if err := c.server.store.Clear(); err != nil {
		c.logger.Error().Err(err).Msg("clear persistence failed")
		c.fail("CLEAR", "could not clear history")
		return
	}

	metrics.HistorySize.Set(0)
	c.logger.Info().Msg("history cleared")
	c.enqueue(protocol.Success("history cleared"))
}

// fail answers the current request with an ERROR response
func (c *conn) fail(requestType, text string) {
	metrics.RequestErrors.WithLabelValues(requestType).Inc()
	c.enqueue(protocol.Error(text))
}

// enqueue places a message on this connection's outbound path. A queue that
// stays saturated past the enqueue timeout marks the peer as stalled and the
// connection is force-closed; enqueue never blocks indefinitely and never
// sends on a closed connection.
func (c *conn) enqueue(msg *protocol.Message) bool {
	select {
	case <-c.done:
		return false
	case c.outbound <- msg:
		return true
	default:
	}

	select {
	case <-c.done:
		return false
	case c.outbound <- msg:
		return true
	case <-time.After(enqueueTimeout):
		c.logger.Warn().Msg("outbound queue stalled, closing connection")
		c.close("stalled outbound queue")
		return false
	}
}

// awaitFlush gives the writer a bounded window to drain the outbound queue
// before a deliberate close, so farewell responses reach the peer.
func (c *conn) awaitFlush() {
	deadline := time.Now().Add(250 * time.Millisecond)
	for len(c.outbound) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

// close tears the connection down exactly once: deregister, release the
// socket, unblock every goroutine waiting on this connection. Never
// propagates into the accept loop or other connections.
func (c *conn) close(reason string) {
	c.closeOnce.Do(func() {
		c.setState(stateClosing)

		c.server.reg.Deregister(c.id)
		c.server.removeConn(c.id)
		close(c.done)
		_ = c.sock.Close()

		metrics.ConnectionsActive.Dec()
		c.setState(stateClosed)
		c.logger.Info().Str("reason", reason).Msg("connection closed")
	})
}
