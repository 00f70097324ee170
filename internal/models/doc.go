// Package models defines the data model for the Alquimista studio client.
//
// All collection types here are REST-derived snapshots: the backend owns the
// source of truth and the client replaces whole collections on refetch rather
// than patching them incrementally.
package models
