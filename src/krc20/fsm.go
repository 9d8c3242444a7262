package krc20

import "github.com/looplab/fsm"

const (
	StateIdle            = "idle"
	StateCommitBuilding  = "commit_building"
	StateCommitSubmitted = "commit_submitted"
	StateCommitConfirmed = "commit_confirmed"
	StateRevealBuilding  = "reveal_building"
	StateRevealSubmitted = "reveal_submitted"
	StateDone            = "done"
	StateFailed          = "failed"

	evBuildCommit   = "build_commit"
	evSubmitCommit  = "submit_commit"
	evConfirmCommit = "confirm_commit"
	evBuildReveal   = "build_reveal"
	evSubmitReveal  = "submit_reveal"
	evConfirmReveal = "confirm_reveal"
	evFail          = "fail"
)

// newOperationFSM builds the per-operation state machine. A reveal can only be
// submitted from reveal_building, which is only reachable once the commit is
// confirmed.
func newOperationFSM(callbacks fsm.Callbacks) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evBuildCommit, Src: []string{StateIdle}, Dst: StateCommitBuilding},
			{Name: evSubmitCommit, Src: []string{StateCommitBuilding}, Dst: StateCommitSubmitted},
			{Name: evConfirmCommit, Src: []string{StateCommitSubmitted}, Dst: StateCommitConfirmed},
			{Name: evBuildReveal, Src: []string{StateCommitConfirmed}, Dst: StateRevealBuilding},
			{Name: evSubmitReveal, Src: []string{StateRevealBuilding}, Dst: StateRevealSubmitted},
			{Name: evConfirmReveal, Src: []string{StateRevealSubmitted}, Dst: StateDone},
			{
				Name: evFail,
				Src: []string{
					StateIdle,
					StateCommitBuilding,
					StateCommitSubmitted,
					StateCommitConfirmed,
					StateRevealBuilding,
					StateRevealSubmitted,
				},
				Dst: StateFailed,
			},
		},
		callbacks,
	)
}
