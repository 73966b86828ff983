// Package coordinator keeps a file-backed snapshot fresh in the background.
//
// The coordinator polls a Reloader on a ticker. Each tick re-reads the
// snapshot file and swaps it in when its content changed:
//
//	store := inmemory.New("./data/snapshot.json")
//	c := coordinator.New(store, 5*time.Minute,
//	    coordinator.WithSyncMetrics(syncMetrics),
//	    coordinator.WithRegistryMetrics(registryMetrics),
//	)
//
//	go c.Start(ctx)
//	defer c.Stop()
//
// # Polling
//
// The interval is jittered by up to a tenth of its length in either direction
// so replicas sharing a volume do not re-read the file in lockstep. The first
// check runs as soon as Start is called.
//
// # Error Handling
//
// A failed reload is logged and recorded in the sync duration histogram with
// success=false. The previously loaded snapshot keeps serving and the next
// attempt happens on the next tick. Older snapshot versions are refused by the
// store and reported the same way.
package coordinator
