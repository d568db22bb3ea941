/*
Package protocol implements the pressbus wire protocol codec.

The protocol is newline-delimited JSON over a persistent bidirectional byte
stream: one message per line, each message a JSON object with a "type" and a
"data" mapping whose required keys depend on the type.

# Message catalogue

Client to server:

	SUBSCRIBE    {category} or {categories: [...]}
	UNSUBSCRIBE  {category} or {categories: [...]}
	LIST         {}
	HISTORY      {category?, limit?}
	PUBLISH      {title, lead, category}
	DELETE_NEWS  {ids: [...]}
	CLEAR        {}
	DISCONNECT   {}

Server to client:

	NEWS         {id, title, lead, category, timestamp}
	SUCCESS      {message}
	ERROR        {message}
	CATEGORIES   {categories: [...]}
	HISTORY      {news: [...]}

# Framing

Encoder appends a single '\n' after each JSON object. JSON string escaping
guarantees the payload itself never contains a raw newline, so the delimiter
is unambiguous. Decoder buffers partial reads across multiple socket reads
and only emits once a delimiter is observed; a frame larger than the
configured maximum yields ErrFrameTooLarge with the remainder of the frame
consumed, and an unparseable payload yields ErrMalformedMessage. Both are
connection-local, recoverable conditions.
*/
package protocol
