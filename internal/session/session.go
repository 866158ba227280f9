// Package session mirrors live connection sessions into Redis for
// operational introspection. The in-memory registry is the in-process
// authority; this mirror lets operators see which server holds which
// session and survives long enough for post-mortem inspection via TTL.
package session
