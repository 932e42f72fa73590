// Package redis provides the Redis-backed implementations of the derived
// cache, the job queue and the request rate limiter. All three share one
// *redis.Client created by NewClient.
package redis
