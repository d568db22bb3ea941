/*
Package metrics provides Prometheus instrumentation for pressbus.

Collectors are package-level and registered in init. The routing engine
updates them as connections come and go, messages arrive, and articles are
published. HealthServer exposes /metrics and a /health liveness endpoint on a
separate address when configured; the distribution listener itself carries no
HTTP surface.
*/
package metrics
