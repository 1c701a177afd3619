// Package workflow implements the Temporal workflow that runs the evolution
// pipeline durably.
//
// Workflow code must stay deterministic: no wall clock, randomness or I/O.
// Every generator call happens inside an activity, and aggregation reuses the
// pure pipeline.Aggregate so that the workflow and the in-process
// orchestrator return identical results for identical activity outputs.
package workflow
