package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindRetryable  ErrorKind = "retryable"  // try again after a delay
	KindReportable ErrorKind = "reportable" // hand back to the caller, nothing on chain changed
	KindFatal      ErrorKind = "fatal"      // stop, on-chain state may need manual reconciliation
	KindUnknown    ErrorKind = "unknown"
)

var (
	ErrSecret            = fmt.Errorf("secret error")
	ErrNodeNotReady      = fmt.Errorf("node not ready")
	ErrSubmissionFailed  = fmt.Errorf("submission failed")
	ErrCommitTimeout     = fmt.Errorf("commit confirmation timed out")
	ErrRevealTimeout     = fmt.Errorf("reveal confirmation timed out")
	ErrRevealNotAccepted = fmt.Errorf("reveal not accepted")
	ErrBelowMinimum      = fmt.Errorf("amount below minimum")
	ErrWalletBusy        = fmt.Errorf("wallet has an operation in flight")
	ErrInsufficientFunds = fmt.Errorf("insufficient funds")
	ErrTransientAPI      = fmt.Errorf("transient api error")
	ErrLockUnavailable   = fmt.Errorf("task lock backend unavailable")
)

// checked in order, fatal kinds first
var kinds = []struct {
	sentinel error
	kind     ErrorKind
}{
	{ErrSecret, KindFatal},
	{ErrSubmissionFailed, KindFatal},
	{ErrCommitTimeout, KindFatal},
	{ErrRevealTimeout, KindFatal},
	{ErrRevealNotAccepted, KindFatal},
	{ErrBelowMinimum, KindReportable},
	{ErrWalletBusy, KindReportable},
	{ErrInsufficientFunds, KindReportable},
	{ErrNodeNotReady, KindRetryable},
	{ErrTransientAPI, KindRetryable},
	{ErrLockUnavailable, KindRetryable},
}

// Kind classifies err by the first sentinel it wraps.
func Kind(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindUnknown
}

// SubmissionError is returned when the node rejects a transaction. Partial holds
// the ids that were accepted before the failure, in submission order.
type SubmissionError struct {
	Partial []string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed after %d accepted transaction(s) [%s]: %v",
		len(e.Partial), strings.Join(e.Partial, ","), e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmissionFailed }
