// Package memory holds in-memory implementations of the list sync
// repositories. They back the engine tests and dry runs that have no
// database, and follow the same semantics as the PostgreSQL versions.
package memory
