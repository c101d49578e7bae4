// Package websocket streams query cache snapshots to connected screens.
//
// The Hub groups connections by cache key. The first connection for a key
// subscribes to the cache; the last one to leave releases the subscription
// so the entry can be evicted.
package websocket
