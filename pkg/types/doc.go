/*
Package types defines the core entities shared across pressbus packages.

Article is the unit of distribution: an immutable news item with a
server-assigned monotonic ID, title, lead text, a single concrete category,
and its publication timestamp.

CategorySet holds the server's configured category vocabulary. All category
comparisons in the system go through Normalize so that subscriptions,
published articles, and history queries agree on case and whitespace. The
reserved wildcard keyword (default "*") is a valid subscription target that
matches every concrete category, but can never appear on an article.
*/
package types
