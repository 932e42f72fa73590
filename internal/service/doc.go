// Package service implements the task lifecycle engine: every create, read,
// update, delete and batch operation on tasks, the transactional discipline
// around the record store, the cache invalidation that follows each committed
// write, and the lifecycle jobs enqueued in reaction to state changes.
package service
