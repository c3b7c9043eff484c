// Package replica implements observable, cached units of remote data.
//
// A Replica owns one value fetched from a remote source. It deduplicates
// loads (at most one fetch in flight), tracks freshness with a stale timer,
// multicasts every state change to its observers in commit order, supports
// optimistic local edits with commit/rollback and drops its in-memory value
// after it has been unobserved for a while.
//
// Components:
//   - Replica[T]: the single owner of State[T]. All operations are serialized.
//   - FetchFunc[T]: loads the authoritative value (network, RPC, fixture).
//   - Storage[T]: optional persisted copy, read once before the first fetch
//     and written through on every change (see storage/).
//   - Observer[T]: one consumer's ordered state stream plus its activity.
//
// Typical use:
//
//	feed, _ := replica.New(replica.Options[Feed]{
//	    Name:     "feed:home",
//	    Fetch:    api.HomeFeed,
//	    Settings: replica.Settings{StaleTime: time.Minute, ClearTime: 10 * time.Minute},
//	    Storage:  store, // storage.NewProvider over badger, redis, ...
//	})
//
//	obs := feed.Observe(ctx, true, screenVisible) // revalidates on activation
//	for st := range obs.States() {
//	    render(st)
//	}
//
// Invalidation:
//
//	feed.Invalidate(replica.RefreshIfHasActiveObservers) // mark stale, refetch if on screen
//	feed.Clear(ctx, replica.DontRefresh, true)           // drop value and persisted copy
package replica
