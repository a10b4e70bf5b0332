// Package cache implements the LRU engine behind the server.
//
// A Cache holds at most Capacity entries. Each entry carries an absolute
// expiry; an expired entry is reported absent by every read even before the
// purge loop reclaims it. Inserting a new key into a full cache evicts the
// least recently used entry.
//
// Read-modify-write sequences run inside Atomic so they observe and commit a
// single version of an entry:
//
//	c.Atomic(func(tx *cache.Tx) {
//		if e, ok := tx.Get(key, false); ok {
//			e.Data = append(e.Data, suffix...)
//			tx.Put(key, e, ttl)
//		}
//	})
package cache
