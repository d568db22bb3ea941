/*
Package config holds the pressbus server configuration surface.

Configuration is layered: compiled defaults, then an optional YAML file, then
command-line flag overrides applied by the serve command. Validate rejects
values the server cannot run with: an out-of-range port, a non-UTF-8
encoding, an empty category set, or a category name colliding with the
reserved wildcard keyword.

Example YAML:

	host: 0.0.0.0
	port: 5555
	categories: [tech, sports, culture]
	wildcard: "*"
	history_file: /var/lib/pressbus/news.json
	max_history: 200
	metrics_addr: 127.0.0.1:9090
*/
package config
