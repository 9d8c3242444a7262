package model

import "time"

// OperationDescriptor describes one krc20 operation to inscribe.
type OperationDescriptor struct {
	Protocol string // always "krc-20" for now
	Op       string
	Tick     string
	Amount   string // base units, no decimal point
	To       string
}

type OperationPhase string

const (
	PhaseCommit OperationPhase = "commit"
	PhaseReveal OperationPhase = "reveal"
)

// PendingOperation tracks the single outstanding commit or reveal of one
// wallet. It lives only for the duration of one operation.
type PendingOperation struct {
	ID            string
	Phase         OperationPhase
	SubmittedTxID string
	ExpectedTxID  string
	Deadline      time.Time
	Confirmed     bool
}
