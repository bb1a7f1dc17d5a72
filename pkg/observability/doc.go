/*
Package observability provides tools for monitoring preparation sessions.

It turns the preparation lifecycle hooks into structured log lines and
Prometheus metrics, and combines several hook sets into one so hosts can
audit and measure at the same time.
*/
package observability
