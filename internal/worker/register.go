// Package worker registers the evolution workflow and its activities with a
// Temporal worker.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/activities"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/workflow"
)

// Registry is the subset of sdkworker.Worker used for registration.
type Registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

var _ Registry = sdkworker.Worker(nil)

// RegisterAll registers EvolutionWorkflow and every activity of acts.
// It must be called once, before the worker starts.
func RegisterAll(w Registry, acts *activities.Activities) {
	w.RegisterWorkflow(workflow.EvolutionWorkflow)
	activities.Register(w, acts)
}
