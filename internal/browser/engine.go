package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/cantalupo555/enotifikasi-exporter/internal/navigation"
)

const (
	// framePoll is the pause between lookups of a frame that is still loading.
	framePoll = 200 * time.Millisecond
	// frameAttempt bounds one try against a resolved frame document. The
	// frame is looked up again after it, since a reload replaces the node.
	frameAttempt = 2 * time.Second
)

// Engine implements navigation.Engine on chromedp. The contexts passed to
// its methods must descend from a browser Context.
type Engine struct {
	logger *zap.Logger
	// frame scopes queries once EnterFrame has run. The locator is kept
	// rather than the node: the iframe element is replaced whenever its
	// document reloads.
	frame *navigation.Locator

	framePoll    time.Duration
	frameAttempt time.Duration
	nodes        func(ctx context.Context, sel string, opts ...chromedp.QueryOption) ([]*cdp.Node, error)
	exec         func(ctx context.Context, actions ...chromedp.Action) error
}

var _ navigation.Engine = (*Engine)(nil)

// NewEngine returns an Engine with no frame selected.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		logger:       logger,
		framePoll:    framePoll,
		frameAttempt: frameAttempt,
		nodes:        queryNodes,
		exec:         chromedp.Run,
	}
}

func queryNodes(ctx context.Context, sel string, opts ...chromedp.QueryOption) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, append(opts, chromedp.AtLeast(1))...)); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Navigate loads url and waits for the load event.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	return e.exec(ctx, chromedp.Navigate(url))
}

// WaitFor blocks until the element reaches cond or ctx ends.
func (e *Engine) WaitFor(ctx context.Context, loc navigation.Locator, cond navigation.Condition) error {
	switch cond {
	case navigation.Present, navigation.Visible, navigation.Clickable:
	default:
		return fmt.Errorf("unsupported condition %s", cond)
	}

	return e.run(ctx, loc, func(sel string, opts []chromedp.QueryOption) []chromedp.Action {
		switch cond {
		case navigation.Present:
			return []chromedp.Action{chromedp.WaitReady(sel, opts...)}
		case navigation.Visible:
			return []chromedp.Action{chromedp.WaitVisible(sel, opts...)}
		default:
			return []chromedp.Action{
				chromedp.WaitVisible(sel, opts...),
				chromedp.WaitEnabled(sel, opts...),
			}
		}
	})
}

// Fill types text into the element.
func (e *Engine) Fill(ctx context.Context, loc navigation.Locator, text string) error {
	return e.run(ctx, loc, func(sel string, opts []chromedp.QueryOption) []chromedp.Action {
		return []chromedp.Action{chromedp.SendKeys(sel, text, opts...)}
	})
}

// Click clicks the element.
func (e *Engine) Click(ctx context.Context, loc navigation.Locator) error {
	return e.run(ctx, loc, func(sel string, opts []chromedp.QueryOption) []chromedp.Action {
		return []chromedp.Action{chromedp.Click(sel, opts...)}
	})
}

// Hover moves the mouse to the centre of the element so hover menus open.
func (e *Engine) Hover(ctx context.Context, loc navigation.Locator) error {
	var box *dom.BoxModel
	if err := e.run(ctx, loc, func(sel string, opts []chromedp.QueryOption) []chromedp.Action {
		return []chromedp.Action{
			chromedp.ScrollIntoView(sel, opts...),
			chromedp.Dimensions(sel, &box, opts...),
		}
	}); err != nil {
		return err
	}

	x, y, err := center(box)
	if err != nil {
		return fmt.Errorf("hover %s: %w", loc, err)
	}
	e.logger.Debug("Hovering", zap.Stringer("locator", loc), zap.Float64("x", x), zap.Float64("y", y))
	return e.exec(ctx, chromedp.MouseEvent(input.MouseMoved, x, y))
}

// EnterFrame waits until the iframe at loc has loaded a document and scopes
// all later queries to that frame.
func (e *Engine) EnterFrame(ctx context.Context, loc navigation.Locator) error {
	frameLoc := loc
	node, err := e.resolveFrame(ctx, &frameLoc)
	if err != nil {
		return err
	}
	e.frame = &frameLoc
	e.logger.Debug("Entered frame", zap.Stringer("locator", loc), zap.String("document", documentURL(node)))
	return nil
}

// run executes the actions built for loc. Inside a frame every try works on
// a freshly resolved frame node and is bounded by frameAttempt, so a reload
// of the frame costs one attempt rather than the whole step.
func (e *Engine) run(ctx context.Context, loc navigation.Locator, build func(string, []chromedp.QueryOption) []chromedp.Action) error {
	sel, opts := selector(loc)
	if e.frame == nil {
		return e.exec(ctx, build(sel, opts)...)
	}

	for {
		node, err := e.resolveFrame(ctx, e.frame)
		if err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.frameAttempt)
		scoped := append(append([]chromedp.QueryOption(nil), opts...), chromedp.FromNode(node))
		err = e.exec(attemptCtx, build(sel, scoped)...)
		cancel()

		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case !errors.Is(err, context.DeadlineExceeded):
			return err
		}
		e.logger.Debug("Retrying in re-resolved frame", zap.Stringer("locator", loc))
	}
}

// resolveFrame looks up the iframe at loc and waits until its content
// document is a real page.
func (e *Engine) resolveFrame(ctx context.Context, loc *navigation.Locator) (*cdp.Node, error) {
	sel, opts := selector(*loc)
	for {
		nodes, err := e.nodes(ctx, sel, opts...)
		if err != nil {
			return nil, err
		}
		if len(nodes) > 0 && frameLoaded(nodes[0]) {
			return nodes[0], nil
		}

		t := time.NewTimer(e.framePoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// frameLoaded reports whether the iframe node carries a loaded document.
func frameLoaded(n *cdp.Node) bool {
	url := documentURL(n)
	return url != "" && url != "about:blank"
}

func documentURL(n *cdp.Node) string {
	n.RLock()
	defer n.RUnlock()
	if n.ContentDocument == nil {
		return ""
	}
	return n.ContentDocument.DocumentURL
}

// selector translates a Locator into a chromedp selector and query options.
func selector(loc navigation.Locator) (string, []chromedp.QueryOption) {
	switch loc.Strategy {
	case navigation.ByID:
		return loc.Value, []chromedp.QueryOption{chromedp.ByID}
	case navigation.ByLinkText:
		// DOM.performSearch runs XPath over the whole document and
		// ignores FromNode.
		return linkTextXPath(loc.Value), []chromedp.QueryOption{chromedp.BySearch}
	default: // ByCSS, ByTagName
		return loc.Value, []chromedp.QueryOption{chromedp.ByQuery}
	}
}

// linkTextXPath matches an anchor whose normalised text equals text.
func linkTextXPath(text string) string {
	return fmt.Sprintf("//a[normalize-space(.)=%s]", xpathLiteral(strings.TrimSpace(text)))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		quoted = append(quoted, `"`+p+`"`)
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// center returns the midpoint of the element's content quad.
func center(box *dom.BoxModel) (float64, float64, error) {
	if box == nil || len(box.Content) < 8 {
		return 0, 0, errors.New("element has no layout box")
	}
	q := box.Content
	return (q[0] + q[2] + q[4] + q[6]) / 4, (q[1] + q[3] + q[5] + q[7]) / 4, nil
}
