// Package api implements the REST client for the Alquimista backend.
//
// Endpoints are the pull side of the synchronization design: push envelopes
// on the realtime channel only signal that something changed, and the
// packages consuming them come back here for the authoritative snapshot.
//
// The bearer credential is injected through an oauth2 static token source so
// every request carries the Authorization header without the call sites
// touching it.
package api
