// Package app provides the application layer.
//
// The Coordinator reconciles initial loads, push notifications, manual refreshes,
// fallback polling and smoothing changes into one consistent dashboard view.
// It depends on domain interfaces, not concrete adapters.
package app
