// Package backend defines the contract shared by the runner protocol drivers
// (mirrored-synchronous and submit-and-poll), the raw response shapes they
// return to the execution engine, and the static endpoint registry they draw
// their targets from.
package backend
