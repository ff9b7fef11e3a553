// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (series.go, scores.go, source.go, dashboard.go, errors.go)
// with shared types, point validation and cross-cutting interfaces. Interfaces live here so
// adapters and the app layer never import each other.
package domain
