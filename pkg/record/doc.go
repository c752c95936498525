// Package record assembles immutable CallRecords from data captured around
// an instrumented call, and converts arbitrary Go values into JSON-safe
// snapshots without ever failing the call being recorded.
package record
