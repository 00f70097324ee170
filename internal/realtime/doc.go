// Package realtime implements the synchronization core: a persistent
// WebSocket channel to the Alquimista backend ([Conn]) and an in-process
// publish/subscribe dispatcher ([Bus]) for the {event, data} envelopes the
// backend pushes over it.
//
// The channel carries at-most-once delivery: nothing is buffered or replayed
// across reconnects. Consumers that need authoritative state treat an
// envelope as an invalidation signal and refetch over REST (see the library
// and feed packages).
//
// Both types are constructed explicitly and injected into whatever owns the
// session lifetime; there is no package-level singleton.
package realtime
