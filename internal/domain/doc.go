// Package domain defines the core domain types and pure logic.
//
// This package contains concept-oriented files (app.go, session.go,
// editor.go) with shared types, payload validation, and the editor's
// pending-edit state machine. No I/O here; everything is exercised by
// the server and core API client packages.
package domain
