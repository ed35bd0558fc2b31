// Package probe drives WebSocket connectivity probes.
//
// A Probe opens one connection, optionally sends a payload once it is open,
// and waits until a message satisfies its predicate or its timeout fires.
// Every probe passes through idle, connecting, open and awaiting before it
// reaches exactly one terminal state, succeeded or failed; events arriving
// after that are ignored and the connection is closed.
//
// A Harness runs an ordered plan of probes one at a time and stops at the
// first failure. Only one run may be active per Harness.
package probe
