/*
Package registry tracks live connections and their category subscriptions.

The registry answers one question for the routing engine: which connections
want an article published in category C right now. Each accepted connection
registers an Entry holding its identity, peer address, and outbound delivery
channel; subscribe and unsubscribe mutate the entry's category set, and both
are idempotent.

# Snapshot semantics

Matching returns a fixed copy of the matching entry set, never a live view.
A broadcast iterates that snapshot, so a subscribe or unsubscribe landing
mid-broadcast affects only future broadcasts; the classic
iteration-under-mutation race cannot occur. Wildcard subscribers match every
concrete category.

A single mutex guards the entry table and all subscription sets. Operations
are O(connections) at worst; correctness, not throughput, drives the coarse
granularity.
*/
package registry
