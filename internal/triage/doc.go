// Package triage provides the guided emergency triage flow. It defines the
// Session state machine (pure transitions, no I/O), the Service (lifecycle,
// backend calls, per-session serialization), the Store interface and metrics.
package triage
