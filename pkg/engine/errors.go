package engine

import "errors"

// Misuse errors are returned to the caller as explicit error values and
// leave the session state unchanged.
var (
	// ErrNoHistory is returned by StepBack when the snapshot stack is empty.
	ErrNoHistory = errors.New("no history")
	// ErrNotWaitingInput is returned by ChooseResponse when the session is
	// not waiting for a dialogue choice.
	ErrNotWaitingInput = errors.New("not waiting for input")
	// ErrAlreadyFinished is returned by Step when execution has ended.
	ErrAlreadyFinished = errors.New("execution already finished")
	// ErrEmptyCallStack is returned by PopFlowContext with no pushed frame.
	ErrEmptyCallStack = errors.New("call stack is empty")
)
