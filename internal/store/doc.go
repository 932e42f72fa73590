// Package store defines the Record Store contracts used by the task engine:
// the task and user stores, the transactor that scopes a unit of work, and
// the sentinel errors every backend reports.
//
// Stores obtained through WithTx take part in the caller's transaction, so a
// read and the write that depends on it commit or roll back together.
package store
