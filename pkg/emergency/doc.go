// Package emergency orchestrates the life of a blood emergency.
//
// A Service persists the request, asks the match engine for nearby donors
// and facilities, fans the event out to live connections, publishes it on
// the change bus for other processes and enqueues push and SMS jobs.
// Persisting the emergency is the only step allowed to fail the call;
// matching, broadcasting, publishing and notifying are best-effort and
// their errors are logged.
//
//	svc := emergency.New(repo, engine, h,
//		emergency.WithPresence(store),
//		emergency.WithPublisher(pub, origin),
//		emergency.WithStatusGate(relay),
//		emergency.WithNotifier(dispatcher),
//		emergency.WithLogger(log),
//	)
//	h.SetActions(emergency.NewHubActions(svc))
//
// Status moves forward only: active to hidden or active to resolved.
// Counters never decrease; each stored change bumps Emergency.Revision so
// listeners can discard stale updates.
package emergency
