package server

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressbus/pressbus/pkg/client"
	"github.com/pressbus/pressbus/pkg/config"
	"github.com/pressbus/pressbus/pkg/history"
	"github.com/pressbus/pressbus/pkg/protocol"
	"github.com/pressbus/pressbus/pkg/registry"
)

const (
	recvTimeout = 3 * time.Second
	// quietWindow is how long we wait to be confident nothing arrives
	quietWindow = 300 * time.Millisecond
)

// startServer runs a server on an ephemeral port with the given categories
func startServer(t *testing.T, categories []string, maxHistory int) string {
	t.Helper()

	cfg := &config.Config{
		Host:         "127.0.0.1",
		Port:         0,
		BufferSize:   4096,
		Encoding:     "utf-8",
		Categories:   categories,
		Wildcard:     "*",
		HistoryFile:  filepath.Join(t.TempDir(), "news.json"),
		HistoryLimit: 10,
		MaxHistory:   maxHistory,
	}

	set := cfg.CategorySet()
	store, err := history.New(history.Config{
		Path:         cfg.HistoryFile,
		Capacity:     cfg.MaxHistory,
		DefaultLimit: cfg.HistoryLimit,
	}, set)
	require.NoError(t, err)

	srv := New(cfg, registry.New(set), store)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	return srv.Addr().String()
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	c, err := client.Dial(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// expectNews waits for one NEWS push and checks its title and category
func expectNews(t *testing.T, c *client.Client, title, category string) {
	t.Helper()
	msg, err := c.Next(recvTimeout)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeNews, msg.Type)
	assert.Equal(t, title, msg.StringOr("title", ""))
	assert.Equal(t, category, msg.StringOr("category", ""))
}

// expectQuiet asserts no push arrives within the quiet window
func expectQuiet(t *testing.T, c *client.Client) {
	t.Helper()
	msg, err := c.Next(quietWindow)
	if err == nil {
		t.Fatalf("expected no message, got %s %v", msg.Type, msg.Data)
	}
}

func TestCategoryRouting(t *testing.T) {
	addr := startServer(t, []string{"tech", "sports"}, 100)

	subA := dial(t, addr)
	subB := dial(t, addr)
	publisher := dial(t, addr)

	require.NoError(t, subA.Subscribe("tech"))
	require.NoError(t, subB.Subscribe("sports"))

	_, err := publisher.Publish("X", "about tech", "tech")
	require.NoError(t, err)

	expectNews(t, subA, "X", "tech")
	expectQuiet(t, subB)

	_, err = publisher.Publish("Y", "about sports", "sports")
	require.NoError(t, err)

	expectNews(t, subB, "Y", "sports")
	expectQuiet(t, subA)
}

func TestWildcardSubscription(t *testing.T) {
	addr := startServer(t, []string{"tech", "sports"}, 100)

	sub := dial(t, addr)
	publisher := dial(t, addr)

	require.NoError(t, sub.Subscribe("*"))

	_, err := publisher.Publish("A", "", "tech")
	require.NoError(t, err)
	_, err = publisher.Publish("B", "", "sports")
	require.NoError(t, err)

	expectNews(t, sub, "A", "tech")
	expectNews(t, sub, "B", "sports")
}

func TestPublisherReceivesOwnArticle(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	publisher := dial(t, addr)
	require.NoError(t, publisher.Subscribe("tech"))

	_, err := publisher.Publish("Own", "", "tech")
	require.NoError(t, err)

	expectNews(t, publisher, "Own", "tech")
}

func TestInvalidCategoryPublish(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	sub := dial(t, addr)
	require.NoError(t, sub.Subscribe("*"))

	publisher := dial(t, addr)
	_, err := publisher.Publish("X", "", "unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")

	// No broadcast happened and history is unchanged
	expectQuiet(t, sub)
	articles, err := publisher.History("", 0)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestWildcardPublishRejected(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	publisher := dial(t, addr)
	_, err := publisher.Publish("X", "", "*")
	require.Error(t, err)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	sub := dial(t, addr)
	publisher := dial(t, addr)

	require.NoError(t, sub.Subscribe("tech"))
	require.NoError(t, sub.Unsubscribe("tech"))

	// Idempotent in either repeated order
	require.NoError(t, sub.Unsubscribe("tech"))
	require.NoError(t, sub.Subscribe("tech"))
	require.NoError(t, sub.Subscribe("tech"))
	require.NoError(t, sub.Unsubscribe("tech"))

	_, err := publisher.Publish("X", "", "tech")
	require.NoError(t, err)

	expectQuiet(t, sub)
}

func TestSubscribeInvalidCategory(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	sub := dial(t, addr)
	err := sub.Subscribe("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestHistoryQueryLimit(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	publisher := dial(t, addr)
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		_, err := publisher.Publish(title, "", "tech")
		require.NoError(t, err)
	}

	articles, err := publisher.History("tech", 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "e", articles[0].Title)
	assert.Equal(t, "d", articles[1].Title)
}

func TestPerConnectionDeliveryOrder(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	sub := dial(t, addr)
	require.NoError(t, sub.Subscribe("tech"))

	publisher := dial(t, addr)
	titles := []string{"one", "two", "three", "four"}
	for _, title := range titles {
		_, err := publisher.Publish(title, "", "tech")
		require.NoError(t, err)
	}

	for _, title := range titles {
		expectNews(t, sub, title, "tech")
	}
}

func TestCategoriesList(t *testing.T) {
	addr := startServer(t, []string{"tech", "sports", "culture"}, 100)

	c := dial(t, addr)
	categories, err := c.Categories()
	require.NoError(t, err)
	assert.Equal(t, []string{"culture", "sports", "tech"}, categories)
}

func TestDeleteAndClear(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	sub := dial(t, addr)
	require.NoError(t, sub.Subscribe("tech"))

	admin := dial(t, addr)
	_, err := admin.Publish("a", "", "tech")
	require.NoError(t, err)
	_, err = admin.Publish("b", "", "tech")
	require.NoError(t, err)

	// Drain the two broadcasts
	expectNews(t, sub, "a", "tech")
	expectNews(t, sub, "b", "tech")

	require.NoError(t, admin.DeleteNews(1))
	articles, err := admin.History("", 0)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "b", articles[0].Title)

	require.NoError(t, admin.Clear())
	articles, err = admin.History("", 0)
	require.NoError(t, err)
	assert.Empty(t, articles)

	// Administrative operations are not broadcast
	expectQuiet(t, sub)
}

func TestDisconnect(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	c := dial(t, addr)
	require.NoError(t, c.Subscribe("tech"))
	require.NoError(t, c.Disconnect())
}

func TestMalformedMessageKeepsConnectionAlive(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	sock, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer sock.Close()

	reader := bufio.NewReader(sock)
	readLine := func() string {
		require.NoError(t, sock.SetReadDeadline(time.Now().Add(recvTimeout)))
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		return line
	}

	// Welcome
	assert.Contains(t, readLine(), `"SUCCESS"`)

	// Garbage frame: ERROR response, connection stays open
	_, err = sock.Write([]byte("this is not json\n"))
	require.NoError(t, err)
	assert.Contains(t, readLine(), `"ERROR"`)

	// The same connection still serves valid requests
	_, err = sock.Write([]byte(`{"type":"LIST","data":{}}` + "\n"))
	require.NoError(t, err)
	assert.Contains(t, readLine(), `"CATEGORIES"`)
}

func TestDisconnectedSubscriberDoesNotAffectOthers(t *testing.T) {
	addr := startServer(t, []string{"tech"}, 100)

	dropped := dial(t, addr)
	require.NoError(t, dropped.Subscribe("tech"))

	kept := dial(t, addr)
	require.NoError(t, kept.Subscribe("tech"))

	// Abrupt close, no protocol farewell
	require.NoError(t, dropped.Close())
	time.Sleep(100 * time.Millisecond)

	publisher := dial(t, addr)
	_, err := publisher.Publish("still flowing", "", "tech")
	require.NoError(t, err)

	expectNews(t, kept, "still flowing", "tech")
}

func TestServerStopClosesConnections(t *testing.T) {
	cfg := &config.Config{
		Host:        "127.0.0.1",
		Port:        0,
		BufferSize:  4096,
		Encoding:    "utf-8",
		Categories:  []string{"tech"},
		Wildcard:    "*",
		HistoryFile: filepath.Join(t.TempDir(), "news.json"),
		MaxHistory:  10,
	}
	set := cfg.CategorySet()
	store, err := history.New(history.Config{Path: cfg.HistoryFile, Capacity: 10}, set)
	require.NoError(t, err)

	srv := New(cfg, registry.New(set), store)
	require.NoError(t, srv.Start())

	c, err := client.Dial(srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Subscribe("tech"))

	require.NoError(t, srv.Stop())

	// The peer observes the close
	_, err = c.Next(recvTimeout)
	assert.Error(t, err)
}
