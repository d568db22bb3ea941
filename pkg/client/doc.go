/*
Package client provides a thin pressbus protocol client.

The client covers every request the wire protocol defines (subscribe,
unsubscribe, category listing, history queries, publishing, and the
administrative delete/clear operations) and exposes Next for consuming NEWS
pushes. It is a protocol wrapper, not an interactive experience; the CLI
subcommands and the integration tests are its consumers.
*/
package client
