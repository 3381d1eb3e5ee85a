package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome is the terminal result of a single interaction.
type Outcome int

const (
	// OutcomeAbsent means the action target is provably not in the document.
	OutcomeAbsent Outcome = iota
	// OutcomeClicked means the action was invoked and the page has settled.
	OutcomeClicked
)

const (
	// DefaultSettleDelay is how long to wait after the loading marker clears,
	// letting asynchronously-inserted content finish attaching.
	DefaultSettleDelay = 250 * time.Millisecond

	// retryPause separates transient-failure retries and marker polls.
	retryPause = 100 * time.Millisecond

	// defaultRetryBudget bounds the retry loops. The session always
	// stabilizes eventually in practice; the budget exists so a wedged tab
	// fails loudly instead of spinning forever.
	defaultRetryBudget = 600
)

// Interactor performs single UI actions against a live document, absorbing
// element-vanished and click-blocked failures by retrying until the action
// succeeds or the target is provably absent.
type Interactor struct {
	q      Querier
	clock  Clock
	marker string
	settle time.Duration
	budget int
	log    *logrus.Entry
}

// ClickOpts adjusts a single Click call.
type ClickOpts struct {
	// Scope restricts the action to descendants of this selector.
	Scope string
	// Marker overrides the operation-in-flight indicator to poll for.
	Marker string
	// Settle overrides the post-marker settle delay.
	Settle time.Duration
}

// NewInteractor builds an Interactor over q. marker is the generic
// loading-indicator selector polled after each successful click.
func NewInteractor(q Querier, clock Clock, marker string, settle time.Duration) *Interactor {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Interactor{
		q:      q,
		clock:  clock,
		marker: marker,
		settle: settle,
		budget: defaultRetryBudget,
		log:    logrus.WithField("component", "interact"),
	}
}

// Click locates and clicks the first element matching action.
//
// Failure classes are handled per their nature: a structurally absent target
// is terminal and returns OutcomeAbsent; a node reference invalidated by a
// concurrent DOM mutation or a click blocked by an overlapping element is
// retried after a short pause. After a successful click it polls for the
// loading marker to disappear (treating churn during polling as "not yet
// settled") and then waits the settle delay before returning OutcomeClicked.
func (i *Interactor) Click(ctx context.Context, action string, opts ClickOpts) (Outcome, error) {
	sel := action
	if opts.Scope != "" {
		sel = opts.Scope + " " + action
	}

	if err := i.clickRetrying(ctx, sel); err != nil {
		if IsAbsent(err) {
			return OutcomeAbsent, nil
		}
		return 0, err
	}

	marker := i.marker
	if opts.Marker != "" {
		marker = opts.Marker
	}
	if err := i.awaitSettled(ctx, marker); err != nil {
		return 0, err
	}

	settle := i.settle
	if opts.Settle > 0 {
		settle = opts.Settle
	}
	i.clock.Sleep(settle)

	return OutcomeClicked, nil
}

// clickRetrying attempts the click until it succeeds, the target proves
// absent, or the retry budget runs out.
func (i *Interactor) clickRetrying(ctx context.Context, sel string) error {
	for attempt := 0; attempt < i.budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := i.q.ClickFirst(sel)
		if err == nil {
			return nil
		}
		if IsAbsent(err) {
			return err
		}
		if IsTransient(err) {
			i.log.WithField("selector", sel).WithError(err).Debug("transient failure, retrying")
			i.clock.Sleep(retryPause)
			continue
		}
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return fmt.Errorf("click %s: retry budget exhausted", sel)
}

// awaitSettled polls until no element matches marker. Churn errors during
// polling mean the document is still rewriting itself, so they count as
// "not yet settled" rather than failures.
func (i *Interactor) awaitSettled(ctx context.Context, marker string) error {
	if marker == "" {
		return nil
	}
	for attempt := 0; attempt < i.budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := i.q.Count(marker)
		if err == nil && n == 0 {
			return nil
		}
		if err != nil && !IsTransient(err) && !IsAbsent(err) {
			return fmt.Errorf("poll %s: %w", marker, err)
		}
		i.clock.Sleep(retryPause)
	}
	return fmt.Errorf("poll %s: retry budget exhausted", marker)
}
