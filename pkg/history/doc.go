/*
Package history provides the bounded, durable article log.

The store keeps published articles in memory in publish order, capped at a
configured capacity with oldest-first eviction, and mirrors every mutation to
a single JSON file on disk.

# Durability contract

Mutation and durability succeed or fail together. Publish, Delete, and Clear
first serialize the candidate log to a temporary file and rename it over the
mirror; only after the rename succeeds does the in-memory log change. A
failed write surfaces as ErrPersistence and leaves memory exactly as it was,
so the server keeps serving reads from the last good state.

On startup the store loads the mirror verbatim. An absent file is an empty
history. Records that fail shape validation (missing id, title, or category)
are skipped and logged rather than aborting startup, and the next article id
is re-anchored above the highest loaded id so ids stay unique across
restarts.

Mutations are mutually exclusive; queries take a shared lock and may proceed
in parallel with each other.
*/
package history
