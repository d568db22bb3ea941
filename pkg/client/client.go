package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pressbus/pressbus/pkg/protocol"
	"github.com/pressbus/pressbus/pkg/types"
)

const (
	dialTimeout    = 5 * time.Second
	requestTimeout = 10 * time.Second
)

// Client wraps the pressbus line protocol for CLI usage and tests. One
// request/response cycle runs at a time; NEWS pushes arriving between
// request and acknowledgement are queued for Next.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	enc     *protocol.Encoder
	dec     *protocol.Decoder
	pending []*protocol.Message
}

// Dial connects to a pressbus server and consumes the welcome message
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	c := &Client{
		conn: conn,
		enc:  protocol.NewEncoder(conn),
		dec:  protocol.NewDecoder(conn, 0, 0),
	}

	// The server greets every connection with a SUCCESS message.
	if _, err := c.read(dialTimeout); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	return c, nil
}

// Close releases the connection without the protocol farewell
func (c *Client) Close() error {
	return c.conn.Close()
}

// Subscribe registers interest in the given categories
func (c *Client) Subscribe(categories ...string) error {
	msg := protocol.NewMessage(protocol.TypeSubscribe)
	msg.Data["categories"] = categories
	return c.ack(msg)
}

// Unsubscribe withdraws interest in the given categories
func (c *Client) Unsubscribe(categories ...string) error {
	msg := protocol.NewMessage(protocol.TypeUnsubscribe)
	msg.Data["categories"] = categories
	return c.ack(msg)
}

// Categories fetches the server's configured category set
func (c *Client) Categories() ([]string, error) {
	response, err := c.roundTrip(protocol.ListCategories(), protocol.TypeCategories)
	if err != nil {
		return nil, err
	}
	return response.CategoryList(), nil
}

// History queries retained articles, newest first. Empty category means all;
// limit <= 0 uses the server default.
func (c *Client) History(category string, limit int) ([]*types.Article, error) {
	response, err := c.roundTrip(protocol.RequestHistory(category, limit), protocol.TypeHistory)
	if err != nil {
		return nil, err
	}
	return response.Articles()
}

// Publish submits an article and returns the server acknowledgement text
func (c *Client) Publish(title, lead, category string) (string, error) {
	response, err := c.roundTrip(protocol.Publish(title, lead, category), protocol.TypeSuccess)
	if err != nil {
		return "", err
	}
	return response.Text(), nil
}

// DeleteNews removes articles by id from the server's history
func (c *Client) DeleteNews(ids ...int64) error {
	return c.ack(protocol.DeleteNews(ids))
}

// Clear empties the server's history
func (c *Client) Clear() error {
	return c.ack(protocol.Clear())
}

// Disconnect performs the protocol farewell and closes the connection
func (c *Client) Disconnect() error {
	err := c.ack(protocol.Disconnect())
	closeErr := c.conn.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// Next returns the next server push (normally a NEWS message), waiting up to
// timeout. Queued pushes collected during request cycles are returned first.
func (c *Client) Next(timeout time.Duration) (*protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) > 0 {
		msg := c.pending[0]
		c.pending = c.pending[1:]
		return msg, nil
	}
	return c.read(timeout)
}

// ack sends a request expecting a plain SUCCESS acknowledgement
func (c *Client) ack(msg *protocol.Message) error {
	_, err := c.roundTrip(msg, protocol.TypeSuccess)
	return err
}

// roundTrip sends one request and waits for the response of the wanted type,
// queueing NEWS pushes that arrive in between. An ERROR response becomes an
// error carrying the server's text.
func (c *Client) roundTrip(msg *protocol.Message, want protocol.MsgType) (*protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enc.Encode(msg); err != nil {
		return nil, fmt.Errorf("send %s: %w", msg.Type, err)
	}

	deadline := time.Now().Add(requestTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%s: timed out waiting for response", msg.Type)
		}

		response, err := c.read(remaining)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", msg.Type, err)
		}

		switch response.Type {
		case want:
			return response, nil
		case protocol.TypeError:
			return nil, fmt.Errorf("server error: %s", response.Text())
		case protocol.TypeNews:
			c.pending = append(c.pending, response)
		default:
			// Unexpected but harmless; keep it for Next.
			c.pending = append(c.pending, response)
		}
	}
}

// read decodes one message with a read deadline. Callers hold c.mu.
func (c *Client) read(timeout time.Duration) (*protocol.Message, error) {
	if timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}
	return c.dec.Decode()
}
