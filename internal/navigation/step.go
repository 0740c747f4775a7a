package navigation

import (
	"fmt"

	"go.uber.org/zap"
)

// Strategy selects how a Locator value is interpreted by the engine.
type Strategy int

const (
	// ByID matches an element by its id attribute.
	ByID Strategy = iota
	// ByLinkText matches an anchor by its visible text.
	ByLinkText
	// ByCSS matches the first element for a CSS selector.
	ByCSS
	// ByTagName matches the first element with the given tag.
	ByTagName
)

func (s Strategy) String() string {
	switch s {
	case ByID:
		return "id"
	case ByLinkText:
		return "link text"
	case ByCSS:
		return "css"
	case ByTagName:
		return "tag"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Locator identifies a single UI element.
type Locator struct {
	Strategy Strategy
	Value    string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.Strategy, l.Value)
}

// Condition is the state an element must reach before its step acts on it.
type Condition int

const (
	// Present means the element exists in the DOM.
	Present Condition = iota
	// Visible means the element is rendered and visible.
	Visible
	// Clickable means the element is visible and enabled.
	Clickable
)

func (c Condition) String() string {
	switch c {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// Action is what a step does once its element is ready.
type Action int

const (
	// ActionNavigate loads Step.URL. It has no locator.
	ActionNavigate Action = iota
	// ActionFill types Step.Text into the element.
	ActionFill
	// ActionClick clicks the element.
	ActionClick
	// ActionHover moves the pointer over the element.
	ActionHover
	// ActionEnterFrame scopes every later query to the iframe element.
	ActionEnterFrame
)

func (a Action) String() string {
	switch a {
	case ActionNavigate:
		return "navigate"
	case ActionFill:
		return "fill"
	case ActionClick:
		return "click"
	case ActionHover:
		return "hover"
	case ActionEnterFrame:
		return "enter frame"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Step is one entry of a navigation script. Steps are plain data; the
// Controller interprets them in order.
type Step struct {
	Name      string
	Action    Action
	Locator   Locator
	Condition Condition

	// URL is used by ActionNavigate only.
	URL string
	// Text is typed by ActionFill. Secret keeps it out of logs.
	Text   string
	Secret bool

	// Trigger marks the step whose action starts the download. The
	// cutoff is taken right before that action.
	Trigger bool
}

func (s Step) String() string {
	if s.Action == ActionNavigate {
		return fmt.Sprintf("%s: %s %s", s.Name, s.Action, s.URL)
	}
	return fmt.Sprintf("%s: %s %s (%s)", s.Name, s.Action, s.Locator, s.Condition)
}

// fields returns the zap fields describing the step. Secret text is masked.
func (s Step) fields(index int) []zap.Field {
	fields := []zap.Field{
		zap.Int("step", index),
		zap.String("name", s.Name),
		zap.Stringer("action", s.Action),
	}
	if s.Action == ActionNavigate {
		return append(fields, zap.String("url", s.URL))
	}
	fields = append(fields,
		zap.Stringer("locator", s.Locator),
		zap.Stringer("condition", s.Condition),
	)
	if s.Action == ActionFill {
		text := s.Text
		if s.Secret {
			text = "********"
		}
		fields = append(fields, zap.String("text", text))
	}
	return fields
}

// Validate checks that a script can be run: it must be non-empty, contain
// exactly one trigger step, and every non-navigate step needs a locator.
func Validate(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScript)
	}

	triggers := 0
	for i, s := range steps {
		if s.Trigger {
			triggers++
			if s.Action == ActionNavigate {
				return fmt.Errorf("%w: step %d (%s) cannot trigger on navigate", ErrInvalidScript, i, s.Name)
			}
		}
		switch s.Action {
		case ActionNavigate:
			if s.URL == "" {
				return fmt.Errorf("%w: step %d (%s) has no url", ErrInvalidScript, i, s.Name)
			}
		case ActionFill, ActionClick, ActionHover, ActionEnterFrame:
			if s.Locator.Value == "" {
				return fmt.Errorf("%w: step %d (%s) has no locator", ErrInvalidScript, i, s.Name)
			}
		default:
			return fmt.Errorf("%w: step %d (%s) has unknown %s", ErrInvalidScript, i, s.Name, s.Action)
		}
	}

	if triggers != 1 {
		return fmt.Errorf("%w: expected exactly one trigger step, found %d", ErrInvalidScript, triggers)
	}
	return nil
}
