// Package domain holds the task and user entities with their invariants.
package domain
