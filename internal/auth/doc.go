// Package auth carries the externally established identity into relay
// requests: a JWT bearer token is decoded to a Principal and attached to
// the request context. It deliberately implements no login, sessions or
// user management; those belong to the surrounding application.
package auth
