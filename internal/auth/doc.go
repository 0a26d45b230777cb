// Package auth implements the session gate: it decides whether the command
// center shows the login view or the application shell.
//
// The gate moves through four states:
//
//	Initializing -> Unauthenticated | Authenticated
//	Unauthenticated -> Authenticating -> Authenticated | Unauthenticated
//	Authenticated -> Unauthenticated
//
// A Session exists if and only if the gate is Authenticated. The session is
// persisted as JSON under a fixed storage key so it survives restarts, and a
// malformed or unreadable record is always treated as "signed out".
package auth
