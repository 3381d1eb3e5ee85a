package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuerier scripts the results of successive ClickFirst and Count calls.
type fakeQuerier struct {
	clickErrs []error
	clicks    int

	counts    []int
	countErrs []error
	countIdx  int
}

func (f *fakeQuerier) ClickFirst(sel string) error {
	i := f.clicks
	f.clicks++
	if i < len(f.clickErrs) {
		return f.clickErrs[i]
	}
	return nil
}

func (f *fakeQuerier) Count(sel string) (int, error) {
	i := f.countIdx
	f.countIdx++
	var err error
	if i < len(f.countErrs) {
		err = f.countErrs[i]
	}
	n := 0
	if i < len(f.counts) {
		n = f.counts[i]
	} else if len(f.counts) > 0 {
		n = f.counts[len(f.counts)-1]
	}
	return n, err
}

// fakeClock records sleeps instead of performing them.
type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(d time.Duration) { c.sleeps = append(c.sleeps, d) }

var (
	errStaleNode = errors.New("could not find node with given id")
	errObscured  = errors.New("element is obscured by another element")
)

func TestClickSucceedsFirstTry(t *testing.T) {
	q := &fakeQuerier{}
	clock := &fakeClock{}
	i := NewInteractor(q, clock, "", 0)

	out, err := i.Click(context.Background(), ".expand", ClickOpts{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeClicked, out)
	assert.Equal(t, 1, q.clicks)
	// no marker configured, so the only wait is the settle delay
	assert.Equal(t, []time.Duration{DefaultSettleDelay}, clock.sleeps)
}

func TestClickRetriesStaleReferences(t *testing.T) {
	q := &fakeQuerier{clickErrs: []error{errStaleNode, errStaleNode, nil}}
	clock := &fakeClock{}
	i := NewInteractor(q, clock, "", 0)

	out, err := i.Click(context.Background(), ".expand", ClickOpts{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeClicked, out)
	assert.Equal(t, 3, q.clicks)
}

func TestClickRetriesBlockedTarget(t *testing.T) {
	q := &fakeQuerier{clickErrs: []error{errObscured, nil}}
	clock := &fakeClock{}
	i := NewInteractor(q, clock, "", 0)

	out, err := i.Click(context.Background(), ".expand", ClickOpts{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeClicked, out)
	assert.Equal(t, 2, q.clicks)
}

func TestClickAbsentIsTerminal(t *testing.T) {
	q := &fakeQuerier{clickErrs: []error{ErrAbsent}}
	clock := &fakeClock{}
	i := NewInteractor(q, clock, "", 0)

	out, err := i.Click(context.Background(), ".expand", ClickOpts{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbsent, out)
	assert.Equal(t, 1, q.clicks)
	// terminal: no settle delay, no polling
	assert.Empty(t, clock.sleeps)
}

func TestClickWaitsForLoadingMarker(t *testing.T) {
	// Marker present on the first two polls, gone on the third.
	q := &fakeQuerier{counts: []int{1, 1, 0}}
	clock := &fakeClock{}
	i := NewInteractor(q, clock, ".loading", 0)

	out, err := i.Click(context.Background(), ".expand", ClickOpts{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeClicked, out)
	assert.Equal(t, 3, q.countIdx)
	// two marker polls plus the settle delay
	assert.Len(t, clock.sleeps, 3)
	assert.Equal(t, DefaultSettleDelay, clock.sleeps[2])
}

func TestClickTreatsChurnDuringPollingAsNotSettled(t *testing.T) {
	q := &fakeQuerier{
		counts:    []int{1, 1, 0},
		countErrs: []error{nil, errStaleNode, nil},
	}
	clock := &fakeClock{}
	i := NewInteractor(q, clock, ".loading", 0)

	out, err := i.Click(context.Background(), ".expand", ClickOpts{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeClicked, out)
	assert.Equal(t, 3, q.countIdx)
}

func TestClickSurfacesRealErrors(t *testing.T) {
	q := &fakeQuerier{clickErrs: []error{errors.New("websocket closed")}}
	i := NewInteractor(q, &fakeClock{}, "", 0)

	_, err := i.Click(context.Background(), ".expand", ClickOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket closed")
}

func TestClickHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := &fakeQuerier{}
	i := NewInteractor(q, &fakeClock{}, "", 0)

	_, err := i.Click(ctx, ".expand", ClickOpts{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, q.clicks)
}

func TestClickScopesSelector(t *testing.T) {
	var seen string
	q := &scopedQuerier{onClick: func(sel string) { seen = sel }}
	i := NewInteractor(q, &fakeClock{}, "", 0)

	_, err := i.Click(context.Background(), ".expand", ClickOpts{Scope: "#thread"})
	require.NoError(t, err)
	assert.Equal(t, "#thread .expand", seen)
}

type scopedQuerier struct {
	onClick func(sel string)
}

func (s *scopedQuerier) ClickFirst(sel string) error {
	s.onClick(sel)
	return nil
}

func (s *scopedQuerier) Count(sel string) (int, error) { return 0, nil }
