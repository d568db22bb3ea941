package protocol

import (
	"time"

	"github.com/pressbus/pressbus/pkg/types"
)

// MsgType identifies a protocol message
type MsgType string

// Client to server message types
const (
	TypeSubscribe   MsgType = "SUBSCRIBE"
	TypeUnsubscribe MsgType = "UNSUBSCRIBE"
	TypeList        MsgType = "LIST"
	TypeHistory     MsgType = "HISTORY"
	TypePublish     MsgType = "PUBLISH"
	TypeDeleteNews  MsgType = "DELETE_NEWS"
	TypeClear       MsgType = "CLEAR"
	TypeDisconnect  MsgType = "DISCONNECT"
)

// Server to client message types. TypeHistory is shared: as a request it
// carries category/limit, as a response it carries the article list.
const (
	TypeNews       MsgType = "NEWS"
	TypeSuccess    MsgType = "SUCCESS"
	TypeError      MsgType = "ERROR"
	TypeCategories MsgType = "CATEGORIES"
)

// Message is one protocol unit: a type and a mapping of named fields whose
// required keys depend on the type.
type Message struct {
	Type MsgType        `json:"type"`
	Data map[string]any `json:"data"`
}

// NewMessage creates a message with an empty data map
func NewMessage(msgType MsgType) *Message {
	return &Message{Type: msgType, Data: map[string]any{}}
}

// Subscribe creates a subscription request for one category
func Subscribe(category string) *Message {
	return &Message{Type: TypeSubscribe, Data: map[string]any{"category": category}}
}

// Unsubscribe creates an unsubscription request for one category
func Unsubscribe(category string) *Message {
	return &Message{Type: TypeUnsubscribe, Data: map[string]any{"category": category}}
}

// ListCategories creates a request for the server's category set
func ListCategories() *Message {
	return NewMessage(TypeList)
}

// RequestHistory creates a history query. Empty category means all
// categories; limit <= 0 uses the server's configured default.
func RequestHistory(category string, limit int) *Message {
	data := map[string]any{}
	if category != "" {
		data["category"] = category
	}
	if limit > 0 {
		data["limit"] = limit
	}
	return &Message{Type: TypeHistory, Data: data}
}

// Publish creates an article publication request
func Publish(title, lead, category string) *Message {
	return &Message{Type: TypePublish, Data: map[string]any{
		"title":    title,
		"lead":     lead,
		"category": category,
	}}
}

// DeleteNews creates an administrative request removing articles by id
func DeleteNews(ids []int64) *Message {
	return &Message{Type: TypeDeleteNews, Data: map[string]any{"ids": ids}}
}

// Clear creates an administrative request emptying the history
func Clear() *Message {
	return NewMessage(TypeClear)
}

// Disconnect creates an orderly shutdown request
func Disconnect() *Message {
	return NewMessage(TypeDisconnect)
}

// News creates the server push delivering one article to a subscriber
func News(article *types.Article) *Message {
	return &Message{Type: TypeNews, Data: map[string]any{
		"id":        article.ID,
		"title":     article.Title,
		"lead":      article.Lead,
		"category":  article.Category,
		"timestamp": article.Timestamp.Format(time.RFC3339Nano),
	}}
}

// Success creates a positive acknowledgement with a human readable text
func Success(text string) *Message {
	return &Message{Type: TypeSuccess, Data: map[string]any{"message": text}}
}

// Error creates a negative acknowledgement with a human readable text
func Error(text string) *Message {
	return &Message{Type: TypeError, Data: map[string]any{"message": text}}
}

// Categories creates the response listing available categories
func Categories(categories []string) *Message {
	return &Message{Type: TypeCategories, Data: map[string]any{"categories": categories}}
}

// History creates the response carrying queried articles, newest first
func History(articles []*types.Article) *Message {
	items := make([]map[string]any, 0, len(articles))
	for _, article := range articles {
		items = append(items, map[string]any{
			"id":        article.ID,
			"title":     article.Title,
			"lead":      article.Lead,
			"category":  article.Category,
			"timestamp": article.Timestamp.Format(time.RFC3339Nano),
		})
	}
	return &Message{Type: TypeHistory, Data: map[string]any{"news": items}}
}
