// Package storage persists schedules, the execution ledger, agents and the
// audit log in a single sqlite database.
//
// All state the scheduler needs across restarts lives here; the scheduler's
// only in-memory state is its subscriber list and timer handle.
package storage
