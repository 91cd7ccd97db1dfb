// Package resilience provides the fault-tolerance helpers used around
// artifact fetching and unit execution: retry with exponential backoff, a
// circuit breaker per artifact source, and a concurrency limiter that
// serializes access to units that are not safe for concurrent use.
package resilience
