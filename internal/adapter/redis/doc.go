// Package redis provides the Redis pub/sub change channel and the circuit breaker
// hook guarding every Redis command.
package redis
