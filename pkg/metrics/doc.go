/*
Package metrics provides Prometheus instrumentation for the consent core:
token/ledger/approval/revocation counters and histograms, plus a generic
HTTP request middleware.
*/
package metrics
