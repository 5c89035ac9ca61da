// Package cache provides a generic, mutex-guarded LRU map.
//
// Besides the usual Get/Put/Remove it offers Update, a read-modify-write
// under the cache lock, used for monotonic per-key ledgers:
//
//	seen := cache.NewLRU[string, int](1024)
//	_, accepted := seen.Update(id, func(old int, ok bool) (int, bool) {
//		return n, !ok || n >= old
//	})
package cache
