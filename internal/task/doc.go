// Package task manages the asynchronous side of the task lifecycle: the job
// envelope and its payload kinds, the queue contracts and an in-process queue,
// the worker pool that drains a queue, the processor that applies lifecycle
// jobs through the engine, and the overdue sweeper that feeds the queue.
//
// Delivery is at-least-once. Every job kind is processed idempotently.
package task
