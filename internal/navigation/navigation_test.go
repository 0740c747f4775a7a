package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// -- Test Helpers --

// tickClock advances by one millisecond on every read so ordering between
// reads is observable.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickClock() *tickClock {
	return &tickClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type call struct {
	op      string
	locator Locator
	text    string
	inFrame bool
	at      time.Time
}

// fakeEngine records every call. A locator listed in neverReady blocks its
// wait until the context ends; failOn makes the named op return an error.
type fakeEngine struct {
	clock      *tickClock
	calls      []call
	inFrame    bool
	neverReady map[Locator]bool
	failOn     map[string]error
}

func newFakeEngine(clock *tickClock) *fakeEngine {
	return &fakeEngine{
		clock:      clock,
		neverReady: map[Locator]bool{},
		failOn:     map[string]error{},
	}
}

func (f *fakeEngine) record(op string, loc Locator, text string) error {
	f.calls = append(f.calls, call{op: op, locator: loc, text: text, inFrame: f.inFrame, at: f.clock.Now()})
	return f.failOn[op+" "+loc.Value]
}

func (f *fakeEngine) Navigate(ctx context.Context, url string) error {
	return f.record("navigate", Locator{Value: url}, "")
}

func (f *fakeEngine) WaitFor(ctx context.Context, loc Locator, cond Condition) error {
	if err := f.record("wait", loc, cond.String()); err != nil {
		return err
	}
	if f.neverReady[loc] {
		<-ctx.Done()
		return fmt.Errorf("waiting for %s: %w", loc, ctx.Err())
	}
	return nil
}

func (f *fakeEngine) Fill(ctx context.Context, loc Locator, text string) error {
	return f.record("fill", loc, text)
}

func (f *fakeEngine) Click(ctx context.Context, loc Locator) error {
	return f.record("click", loc, "")
}

func (f *fakeEngine) Hover(ctx context.Context, loc Locator) error {
	return f.record("hover", loc, "")
}

func (f *fakeEngine) EnterFrame(ctx context.Context, loc Locator) error {
	err := f.record("frame", loc, "")
	if err == nil {
		f.inFrame = true
	}
	return err
}

func (f *fakeEngine) ops() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op+" "+c.locator.Value)
	}
	return out
}

func testScript() []Step {
	return ExportScript("http://portal.test/Login.aspx", "officer", "s3cret")
}

// -- Test Cases --

func TestControllerRunsScriptInOrder(t *testing.T) {
	clock := newTickClock()
	engine := newFakeEngine(clock)
	ctrl := NewController(engine, time.Second, WithClock(clock.Now))

	cutoff, err := ctrl.Run(context.Background(), testScript())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"navigate http://portal.test/Login.aspx",
		"wait txtUsrCd", "fill txtUsrCd",
		"wait txtUsrPwd", "fill txtUsrPwd",
		"wait btnLogin", "click btnLogin",
		"wait Muat Turun", "hover Muat Turun",
		"wait a[href='/UserInterface/Download/Download.aspx']", "click a[href='/UserInterface/Download/Download.aspx']",
		"wait iframe", "frame iframe",
		"wait ctl00_ContentPlaceHolder1_boolCheckAll", "click ctl00_ContentPlaceHolder1_boolCheckAll",
		"wait ctl00_ContentPlaceHolder1_btnSearch", "click ctl00_ContentPlaceHolder1_btnSearch",
	}, engine.ops())

	assert.Equal(t, "officer", engine.calls[2].text)
	assert.Equal(t, "s3cret", engine.calls[4].text)

	// Everything after the frame step is scoped to the frame.
	for _, c := range engine.calls {
		if c.locator.Value == allFieldsCheckID || c.locator.Value == exportButtonID {
			assert.True(t, c.inFrame, "%s %s should run inside the frame", c.op, c.locator.Value)
		}
	}

	t.Run("cutoff is taken after the trigger wait and before its click", func(t *testing.T) {
		n := len(engine.calls)
		triggerWait, triggerClick := engine.calls[n-2], engine.calls[n-1]
		require.Equal(t, "click", triggerClick.op)
		assert.True(t, cutoff.After(triggerWait.at))
		assert.True(t, cutoff.Before(triggerClick.at))
	})
}

func TestControllerHaltsOnFirstUnreadyStep(t *testing.T) {
	steps := testScript()
	for k := 1; k < len(steps); k++ {
		k := k
		t.Run(steps[k].Name, func(t *testing.T) {
			clock := newTickClock()
			engine := newFakeEngine(clock)
			engine.neverReady[steps[k].Locator] = true
			ctrl := NewController(engine, 10*time.Millisecond, WithClock(clock.Now))

			cutoff, err := ctrl.Run(context.Background(), steps)
			require.Error(t, err)
			assert.True(t, cutoff.IsZero())
			assert.ErrorIs(t, err, ErrElementNotReady)

			var notReady *ElementNotReadyError
			require.ErrorAs(t, err, &notReady)
			assert.Equal(t, k, notReady.StepIndex)
			assert.Equal(t, steps[k].Locator, notReady.Locator)
			assert.Equal(t, 10*time.Millisecond, notReady.Timeout)

			// The wait for step k is the last thing the engine saw.
			last := engine.calls[len(engine.calls)-1]
			assert.Equal(t, "wait", last.op)
			assert.Equal(t, steps[k].Locator, last.locator)
			for _, c := range engine.calls {
				for _, later := range steps[k+1:] {
					if later.Locator != steps[k].Locator {
						assert.NotEqual(t, later.Locator, c.locator, "step after %d must not run", k)
					}
				}
			}
		})
	}
}

func TestControllerMenuLinkNeverClickable(t *testing.T) {
	steps := testScript()
	menuLink := Locator{Strategy: ByCSS, Value: downloadPageLink}

	clock := newTickClock()
	engine := newFakeEngine(clock)
	engine.neverReady[menuLink] = true

	_, err := NewController(engine, 20*time.Millisecond, WithClock(clock.Now)).Run(context.Background(), steps)

	idx, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, "open download page", steps[idx].Name)
	assert.ErrorIs(t, err, ErrElementNotReady)
	assert.NotContains(t, engine.ops(), "frame iframe")
	assert.NotContains(t, engine.ops(), "click "+exportButtonID)
}

func TestControllerEngineFault(t *testing.T) {
	crash := errors.New("target crashed")

	t.Run("action fault", func(t *testing.T) {
		engine := newFakeEngine(newTickClock())
		engine.failOn["click "+loginButtonID] = crash

		_, err := NewController(engine, time.Second).Run(context.Background(), testScript())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNavigationFailed)
		assert.ErrorIs(t, err, crash)
		assert.NotErrorIs(t, err, ErrElementNotReady)

		idx, ok := FailedStep(err)
		require.True(t, ok)
		assert.Equal(t, 3, idx)
		assert.Equal(t, "click "+loginButtonID, engine.ops()[len(engine.ops())-1])
	})

	t.Run("wait fault is not a timeout", func(t *testing.T) {
		engine := newFakeEngine(newTickClock())
		engine.failOn["wait "+usernameFieldID] = crash

		_, err := NewController(engine, time.Second).Run(context.Background(), testScript())
		assert.ErrorIs(t, err, ErrNavigationFailed)
		assert.ErrorIs(t, err, crash)
	})

	t.Run("navigate fault", func(t *testing.T) {
		engine := newFakeEngine(newTickClock())
		engine.failOn["navigate http://portal.test/Login.aspx"] = crash

		_, err := NewController(engine, time.Second).Run(context.Background(), testScript())
		assert.ErrorIs(t, err, ErrNavigationFailed)
		assert.Len(t, engine.calls, 1)
	})
}

func TestControllerCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newFakeEngine(newTickClock())
	_, err := NewController(engine, time.Second).Run(ctx, testScript())

	assert.ErrorIs(t, err, ErrNavigationFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, engine.calls)
}

func TestControllerCallerDeadlineIsNotElementTimeout(t *testing.T) {
	steps := testScript()
	engine := newFakeEngine(newTickClock())
	engine.neverReady[steps[1].Locator] = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// The caller's deadline is shorter than the step budget.
	_, err := NewController(engine, time.Minute).Run(ctx, steps)
	assert.ErrorIs(t, err, ErrNavigationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrElementNotReady)
}

func TestControllerRejectsInvalidScript(t *testing.T) {
	noTrigger := testScript()
	noTrigger[len(noTrigger)-1].Trigger = false

	twoTriggers := testScript()
	twoTriggers[3].Trigger = true

	missingLocator := testScript()
	missingLocator[2].Locator.Value = ""

	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"no trigger", noTrigger},
		{"two triggers", twoTriggers},
		{"missing locator", missingLocator},
		{"navigate without url", []Step{{Name: "open", Action: ActionNavigate, Trigger: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine(newTickClock())
			_, err := NewController(engine, time.Second).Run(context.Background(), tt.steps)
			assert.ErrorIs(t, err, ErrInvalidScript)
			assert.Empty(t, engine.calls, "engine must not be touched")
		})
	}
}

func TestControllerMasksSecretsInLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	engine := newFakeEngine(newTickClock())

	_, err := NewController(engine, time.Second, WithLogger(zap.New(core))).Run(context.Background(), testScript())
	require.NoError(t, err)

	entries := logs.FilterField(zap.String("text", "********")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "enter password", entries[0].ContextMap()["name"])
	assert.Zero(t, logs.FilterField(zap.String("text", "s3cret")).Len())
	assert.Equal(t, 1, logs.FilterField(zap.String("text", "officer")).Len())
}

func TestNewControllerDefaultTimeout(t *testing.T) {
	ctrl := NewController(newFakeEngine(newTickClock()), 0)
	assert.Equal(t, DefaultStepTimeout, ctrl.stepTimeout)
}

func TestExportScriptShape(t *testing.T) {
	steps := ExportScript("", "officer", "s3cret")
	require.NoError(t, Validate(steps))
	require.Len(t, steps, 9)

	assert.Equal(t, DefaultLoginURL, steps[0].URL)
	assert.Equal(t, "submit login", steps[submitLoginIndex].Name)
	assert.True(t, steps[len(steps)-1].Trigger)
	assert.True(t, steps[2].Secret)

	assert.False(t, PastLogin(submitLoginIndex))
	assert.True(t, PastLogin(submitLoginIndex+1))
}
