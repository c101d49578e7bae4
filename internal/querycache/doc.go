// Package querycache is the server-state cache screens read through.
//
// Queries are idempotent reads cached under a structured Key; concurrent
// queries for one key share a single fetch. Mutations always execute and,
// on success, mark every entry matching their affected keys stale, eagerly
// re-fetching the ones that have subscribers. Each entry moves through
// idle, loading, fresh, stale and error under the cache mutex, and a fetch
// that was superseded by an invalidation never writes its result.
package querycache
