// Package orchestrator wires template parsing, handle reacquisition, file
// resolution, substitution and sink delivery behind a single Generate call.
package orchestrator
