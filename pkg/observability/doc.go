/*
Package observability provides tools for monitoring the concierge engine.

It turns engine lifecycle hooks into Prometheus metrics, structured audit logs
and a bounded per-run event journal that transports can expose for inspection.
*/
package observability
