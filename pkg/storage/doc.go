// Package storage holds the backend-neutral pieces of the persistence layer.
//
// # Overview
//
// Repositories in the backends return a Result for every single-row lookup so
// that callers can tell "no row" from "more rows than the schema allows":
//
//	res, err := users.FindByUsername(ctx, "scott")
//	if err != nil {
//		return err
//	}
//	switch res.State() {
//	case storage.Present:
//		user := res.Value()
//	case storage.Absent:
//		// not found
//	case storage.Many:
//		// uniqueness violated; callers treat this as a fault
//	}
//
// # Transactions
//
// WithTx runs a function inside a database/sql transaction and commits or rolls
// back on every exit path, including panics. DBTX is the subset of
// database/sql shared by *sql.DB and *sql.Tx that repositories depend on.
//
// # Backends
//
// The postgres subpackage implements the auth store on top of lib/pq with
// goose-managed migrations.
package storage
