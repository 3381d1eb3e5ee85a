// Package session drives a single live browser tab and provides the
// stale-tolerant interaction layer the extractor is built on.
//
// One Session may be driven by only one extraction operation at a time: any
// state change invalidates every element reference obtained before it, so
// concurrent structural interaction against the same tab is never safe.
// Independent Sessions in separate goroutines are fine.
package session

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Querier is the live-document capability the interaction layer drives.
// Implementations must return ErrAbsent when zero elements match, and
// surface devtools churn errors unwrapped so they can be classified.
type Querier interface {
	// Count returns how many elements currently match sel.
	Count(sel string) (int, error)
	// ClickFirst clicks the first element matching sel.
	ClickFirst(sel string) error
}

// Session wraps a chromedp browser context as a live document session.
type Session struct {
	ctx context.Context
	log *logrus.Entry
}

// New wraps an existing chromedp context. The caller owns the context's
// lifetime; external deadlines are imposed by cancelling it.
func New(ctx context.Context) *Session {
	return &Session{
		ctx: ctx,
		log: logrus.WithField("component", "session"),
	}
}

// Context returns the underlying chromedp context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Navigate loads url and waits for the document to be ready.
func (s *Session) Navigate(url string) error {
	if err := chromedp.Run(s.ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Location returns the current page URL.
func (s *Session) Location() (string, error) {
	var url string
	if err := chromedp.Run(s.ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Snapshot returns the full serialized HTML of the current document. All
// structural parsing happens offline against this frozen copy, independent
// of further mutation in the live tab.
func (s *Session) Snapshot() (string, error) {
	var html string
	err := chromedp.Run(s.ctx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot document: %w", err)
	}
	return html, nil
}

// Evaluate runs a script in the page and unmarshals its result into out.
func (s *Session) Evaluate(js string, out any) error {
	return chromedp.Run(s.ctx, chromedp.Evaluate(js, out))
}

// Count returns the number of elements matching sel.
func (s *Session) Count(sel string) (int, error) {
	var n int
	if err := s.Evaluate(fmt.Sprintf(`document.querySelectorAll(%q).length`, sel), &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ClickFirst clicks the first element matching sel, or returns ErrAbsent if
// nothing matches. Devtools churn errors (stale node ids, obscured targets)
// are returned as-is for the interaction layer to classify.
func (s *Session) ClickFirst(sel string) error {
	var nodes []*cdp.Node
	err := chromedp.Run(s.ctx,
		chromedp.Nodes(sel, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)),
	)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return ErrAbsent
	}
	return chromedp.Run(s.ctx, chromedp.MouseClickNode(nodes[0]))
}
