package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// countPolls and countPollInterval govern how long RevealAll watches the
	// item count for movement after each expand click.
	countPolls        = 5
	countPollInterval = 200 * time.Millisecond
)

// Revealer repeatedly triggers "load more"-style controls until a page is
// fully expanded. The presence of the expand control is the authoritative
// exhaustion signal: the revealer never tries to distinguish "no new items
// because the page is done" from "no new items yet".
type Revealer struct {
	q     Querier
	i     *Interactor
	clock Clock
	log   *logrus.Entry
}

// NewRevealer builds a Revealer that clicks through i and counts through q.
func NewRevealer(q Querier, i *Interactor, clock Clock) *Revealer {
	return &Revealer{
		q:     q,
		i:     i,
		clock: clock,
		log:   logrus.WithField("component", "reveal"),
	}
}

// RevealAll clicks expandSel inside container until it disappears, after each
// click polling the count of itemSel matches for movement. The outer loop
// runs while the count keeps changing; it terminates when an iteration yields
// no change and the next expand attempt reports the control absent.
func (r *Revealer) RevealAll(ctx context.Context, container, itemSel, expandSel string) error {
	scoped := itemSel
	if container != "" {
		scoped = container + " " + itemSel
	}

	prev := -1
	for {
		out, err := r.i.Click(ctx, expandSel, ClickOpts{Scope: container})
		if err != nil {
			return err
		}
		if out == OutcomeAbsent {
			r.log.WithField("items", prev).Debug("expand control gone, page fully revealed")
			return nil
		}

		cur := prev
		for poll := 0; poll < countPolls; poll++ {
			n, err := r.q.Count(scoped)
			if err == nil {
				cur = n
			} else if !IsTransient(err) {
				return err
			}
			if cur != prev {
				break
			}
			r.clock.Sleep(countPollInterval)
		}
		prev = cur
	}
}

// RevealAllUnbounded clicks expandSel until it reports absent, with no item
// counting. Used for controls that disappear once exhausted and expose no
// stable count signal, like nested "view more replies" links.
func (r *Revealer) RevealAllUnbounded(ctx context.Context, expandSel string) error {
	for {
		out, err := r.i.Click(ctx, expandSel, ClickOpts{})
		if err != nil {
			return err
		}
		if out == OutcomeAbsent {
			return nil
		}
	}
}
