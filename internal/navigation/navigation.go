// Package navigation drives the browser through the eNotifikasi login and export path.
package navigation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultStepTimeout bounds how long a step waits for its element.
const DefaultStepTimeout = 30 * time.Second

// Engine is the browser surface the Controller needs. Implementations must
// return ctx.Err() (or an error wrapping it) when a wait is cut short by the
// context deadline.
type Engine interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, loc Locator, cond Condition) error
	Fill(ctx context.Context, loc Locator, text string) error
	Click(ctx context.Context, loc Locator) error
	Hover(ctx context.Context, loc Locator) error
	// EnterFrame scopes all later queries to the iframe at loc.
	EnterFrame(ctx context.Context, loc Locator) error
}

// Controller runs a script of steps against an Engine, one at a time,
// stopping at the first failure.
type Controller struct {
	engine      Engine
	stepTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces time.Now, used to stamp the cutoff.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController returns a Controller using engine. A non-positive
// stepTimeout falls back to DefaultStepTimeout.
func NewController(engine Engine, stepTimeout time.Duration, opts ...Option) *Controller {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	c := &Controller{
		engine:      engine,
		stepTimeout: stepTimeout,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes steps in order and returns the cutoff: the instant taken
// immediately before the trigger step's action. Any failure stops the run;
// later steps are never touched and no cutoff is returned.
func (c *Controller) Run(ctx context.Context, steps []Step) (time.Time, error) {
	if err := Validate(steps); err != nil {
		return time.Time{}, err
	}

	var cutoff time.Time
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return time.Time{}, &NavigationFailedError{StepIndex: i, Step: step.Name, Err: err}
		}

		c.logger.Debug("Running step", step.fields(i)...)
		start := c.now()

		triggeredAt, err := c.runStep(ctx, i, step)
		if err != nil {
			c.logger.Error("Step failed", append(step.fields(i), zap.Error(err))...)
			return time.Time{}, err
		}
		if step.Trigger {
			cutoff = triggeredAt
		}

		c.logger.Info("Step done", zap.Int("step", i), zap.String("name", step.Name),
			zap.Duration("took", c.now().Sub(start)))
	}
	return cutoff, nil
}

// runStep waits for the step's element, then performs its action. For the
// trigger step it returns the time read just before the action.
func (c *Controller) runStep(ctx context.Context, index int, step Step) (time.Time, error) {
	stepCtx, cancel := context.WithTimeout(ctx, c.stepTimeout)
	defer cancel()

	if step.Action == ActionNavigate {
		if err := c.engine.Navigate(stepCtx, step.URL); err != nil {
			return time.Time{}, &NavigationFailedError{StepIndex: index, Step: step.Name, Err: err}
		}
		return time.Time{}, nil
	}

	if err := c.engine.WaitFor(stepCtx, step.Locator, step.Condition); err != nil {
		if c.stepExpired(ctx, stepCtx, err) {
			return time.Time{}, &ElementNotReadyError{
				StepIndex: index,
				Step:      step.Name,
				Locator:   step.Locator,
				Condition: step.Condition,
				Timeout:   c.stepTimeout,
			}
		}
		return time.Time{}, &NavigationFailedError{StepIndex: index, Step: step.Name, Err: err}
	}

	var triggeredAt time.Time
	if step.Trigger {
		triggeredAt = c.now()
	}

	if err := c.perform(stepCtx, step); err != nil {
		return time.Time{}, &NavigationFailedError{StepIndex: index, Step: step.Name, Err: err}
	}
	return triggeredAt, nil
}

func (c *Controller) perform(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionFill:
		return c.engine.Fill(ctx, step.Locator, step.Text)
	case ActionClick:
		return c.engine.Click(ctx, step.Locator)
	case ActionHover:
		return c.engine.Hover(ctx, step.Locator)
	case ActionEnterFrame:
		return c.engine.EnterFrame(ctx, step.Locator)
	default:
		return errors.New("unsupported action " + step.Action.String())
	}
}

// stepExpired reports whether err is the per-step deadline running out, as
// opposed to the caller's context ending or an engine fault.
func (c *Controller) stepExpired(parent, stepCtx context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(stepCtx.Err(), context.DeadlineExceeded)
}
