// Package credstore persists the access/refresh token pair between runs.
//
// Backends trade off security and deployment needs:
//   - File: JSON file with atomic writes and 0600 permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Env: read-only environment variables (tokens managed externally)
//   - Redis: shared storage for several local tools talking to the same backend
//   - Memory: process-local, nothing survives exit
//
// Refreshing tokens requires a writable backend. Wrap any backend in Cached to keep
// the hot request path free of I/O.
package credstore
