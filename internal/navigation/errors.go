package navigation

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrElementNotReady matches any *ElementNotReadyError.
	ErrElementNotReady = errors.New("element not ready")
	// ErrNavigationFailed matches any *NavigationFailedError.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrInvalidScript is returned before any step runs when the script is malformed.
	ErrInvalidScript = errors.New("invalid navigation script")
)

// ElementNotReadyError reports a step whose element did not reach its
// condition within the per-step timeout.
type ElementNotReadyError struct {
	StepIndex int
	Step      string
	Locator   Locator
	Condition Condition
	Timeout   time.Duration
}

func (e *ElementNotReadyError) Error() string {
	return fmt.Sprintf("step %d (%s): %s not %s within %v",
		e.StepIndex, e.Step, e.Locator, e.Condition, e.Timeout)
}

func (e *ElementNotReadyError) Is(target error) bool {
	return target == ErrElementNotReady
}

// NavigationFailedError reports an engine fault during a step, e.g. the
// target crashed or the page failed to load.
type NavigationFailedError struct {
	StepIndex int
	Step      string
	Err       error
}

func (e *NavigationFailedError) Error() string {
	return fmt.Sprintf("step %d (%s): navigation failed: %v", e.StepIndex, e.Step, e.Err)
}

func (e *NavigationFailedError) Unwrap() error { return e.Err }

func (e *NavigationFailedError) Is(target error) bool {
	return target == ErrNavigationFailed
}

// FailedStep returns the index of the step that ended a run, if err came
// from Controller.Run.
func FailedStep(err error) (int, bool) {
	var notReady *ElementNotReadyError
	if errors.As(err, &notReady) {
		return notReady.StepIndex, true
	}
	var failed *NavigationFailedError
	if errors.As(err, &failed) {
		return failed.StepIndex, true
	}
	return 0, false
}
