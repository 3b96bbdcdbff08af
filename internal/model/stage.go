package model

// Pipeline stage constants.
const (
	StagePlan    = "plan"
	StageExecute = "execute"
	StagePersist = "persist"
	StageDone    = "done"
)

// validTransitions maps each stage to the stage it may advance to. The
// pipeline is strictly linear; there are no retries or loops.
var validTransitions = map[string]map[string]bool{
	"": {
		StagePlan: true,
	},
	StagePlan: {
		StageExecute: true,
	},
	StageExecute: {
		StagePersist: true,
	},
	StagePersist: {
		StageDone: true,
	},
}

// ValidTransition reports whether advancing from one stage to another is allowed.
// The empty stage is the state of a run that has not started yet.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}
