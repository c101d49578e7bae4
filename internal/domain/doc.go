// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (user.go, job.go, application.go, session.go, errors.go) hold the
// shared types of the job board and the cross-cutting interfaces consumed by the session
// store, the domain services and the screen layer. No implementation code beyond small
// value helpers.
package domain
