package activities

// Registry is satisfied by a Temporal worker and by the testsuite
// workflow and activity environments.
type Registry interface {
	RegisterActivity(a any)
}

// Register registers each activity method of a under its method name.
// The struct must not be registered as a whole: the embedded
// BaseActivities exports helpers that are not activities.
// A nil a is valid for workflow tests that mock every activity.
func Register(r Registry, a *Activities) {
	r.RegisterActivity(a.ChunkDocument)
	r.RegisterActivity(a.SynthesizeQuestion)
	r.RegisterActivity(a.EvolveQuestion)
	r.RegisterActivity(a.JudgeCandidate)
}
