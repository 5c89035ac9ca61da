// Package changebus carries storage change events between server processes.
//
// Five fixed channels exist: emergency_created, emergency_response,
// emergency_status_update, hospital_status_update and
// blood_inventory_update. Payloads are flat JSON rows. A Bus listens on all
// of them through a Listener (PostgreSQL LISTEN/NOTIFY or Redis pub/sub)
// and dispatches each message to the handler registered for its channel:
//
//	bus := changebus.New(changebus.NewPgListener(pool))
//	changebus.On(bus, changebus.ChannelEmergencyCreated, func(ctx context.Context, e changebus.EmergencyCreated) error {
//		...
//	})
//	go bus.Run(ctx)
//
// Run never returns on a lost connection. It waits a fixed delay and
// listens again until ctx is cancelled.
//
// Relay registers handlers that turn change events into hub broadcasts.
// It skips messages published by its own process (by origin id) and keeps
// a bounded ledger of the last status revision per emergency, so a status
// update that arrives out of order never replaces newer state.
package changebus
