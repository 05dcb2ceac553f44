// Package pairing implements the CLI side of device pairing: a short numeric
// code is registered with the dashboard, the user confirms it in a browser, and
// the browser reports back to a local callback listener owned by one attempt.
package pairing
