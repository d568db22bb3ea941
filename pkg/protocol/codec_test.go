package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressbus/pressbus/pkg/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Encode(Subscribe("tech")))
	require.NoError(t, enc.Encode(Publish("Title", "Lead", "sports")))

	dec := NewDecoder(&buf, 0, 0)

	msg, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, TypeSubscribe, msg.Type)
	category, err := msg.String("category")
	require.NoError(t, err)
	assert.Equal(t, "tech", category)

	msg, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, TypePublish, msg.Type)
	title, err := msg.String("title")
	require.NoError(t, err)
	assert.Equal(t, "Title", title)

	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

// chunkReader yields input in fixed-size pieces to simulate partial socket reads
type chunkReader struct {
	data  []byte
	chunk int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestDecodePartialReads(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(Publish("A long enough title", "with a lead", "tech")))
	require.NoError(t, enc.Encode(Subscribe("sports")))

	// 3 bytes at a time: every frame arrives split across many reads.
	dec := NewDecoder(&chunkReader{data: buf.Bytes(), chunk: 3}, 16, 0)

	msg, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, TypePublish, msg.Type)

	msg, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, TypeSubscribe, msg.Type)
}

func TestDecodeFrameSpanningBuffer(t *testing.T) {
	lead := strings.Repeat("x", 5000)
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(Publish("t", lead, "tech")))

	// Read buffer far smaller than the frame.
	dec := NewDecoder(&buf, 64, 0)
	msg, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, lead, msg.StringOr("lead", ""))
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "hello there\n"},
		{name: "json array", input: "[1,2,3]\n"},
		{name: "missing type", input: `{"data":{}}` + "\n"},
		{name: "empty type", input: `{"type":"","data":{}}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.input), 0, 0)
			_, err := dec.Decode()
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestDecodeOversizeFrame(t *testing.T) {
	big := `{"type":"PUBLISH","data":{"title":"` + strings.Repeat("a", 300) + `"}}` + "\n"
	input := big + `{"type":"LIST","data":{}}` + "\n"

	dec := NewDecoder(strings.NewReader(input), 32, 128)

	_, err := dec.Decode()
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	// The oversize frame is consumed; the stream remains usable.
	msg, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, TypeList, msg.Type)
}

func TestDecodeSkipsBlankLines(t *testing.T) {
	input := "\n\n" + `{"type":"CLEAR","data":{}}` + "\n"
	dec := NewDecoder(strings.NewReader(input), 0, 0)

	msg, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, TypeClear, msg.Type)
}

func TestDecodeTruncatedFrame(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"type":"LIST"`), 0, 0)
	_, err := dec.Decode()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestNewsMessageFields(t *testing.T) {
	article := &types.Article{
		ID:        7,
		Title:     "Title",
		Lead:      "Lead",
		Category:  "tech",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(News(article)))

	msg, err := NewDecoder(&buf, 0, 0).Decode()
	require.NoError(t, err)
	assert.Equal(t, TypeNews, msg.Type)
	assert.Equal(t, "Title", msg.StringOr("title", ""))
	assert.Equal(t, "tech", msg.StringOr("category", ""))
	assert.Equal(t, int64(7), int64(msg.IntOr("id", 0)))
}

func TestHistoryResponseRoundTrip(t *testing.T) {
	articles := []*types.Article{
		{ID: 2, Title: "B", Category: "tech", Timestamp: time.Now().UTC().Truncate(time.Second)},
		{ID: 1, Title: "A", Category: "sports", Timestamp: time.Now().UTC().Truncate(time.Second)},
	}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(History(articles)))

	msg, err := NewDecoder(&buf, 0, 0).Decode()
	require.NoError(t, err)

	parsed, err := msg.Articles()
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, int64(2), parsed[0].ID)
	assert.Equal(t, "B", parsed[0].Title)
	assert.Equal(t, "sports", parsed[1].Category)
}

func TestCategoryTargets(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		expected []string
		wantErr  bool
	}{
		{
			name:     "single category",
			data:     map[string]any{"category": "tech"},
			expected: []string{"tech"},
		},
		{
			name:     "category list",
			data:     map[string]any{"categories": []any{"tech", "sports"}},
			expected: []string{"tech", "sports"},
		},
		{name: "missing", data: map[string]any{}, wantErr: true},
		{name: "empty list", data: map[string]any{"categories": []any{}}, wantErr: true},
		{name: "non-string item", data: map[string]any{"categories": []any{1.0}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &Message{Type: TypeSubscribe, Data: tt.data}
			targets, err := msg.CategoryTargets()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, targets)
		})
	}
}

func TestIDListWireRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(DeleteNews([]int64{3, 5, 8})))

	msg, err := NewDecoder(&buf, 0, 0).Decode()
	require.NoError(t, err)

	ids, err := msg.IDList()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 8}, ids)
}
