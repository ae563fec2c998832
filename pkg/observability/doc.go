/*
Package observability exposes sessiondb stores to Prometheus.

A Collector reports the number of live sessions at scrape time and counts the
connect, disconnect and error events the store emits.
*/
package observability
