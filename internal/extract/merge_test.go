package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjank/fbgrab/internal/identity"
	"github.com/sjank/fbgrab/internal/types"
)

// fakeOracle answers from a fixed table and counts invocations.
type fakeOracle struct {
	ids   map[string]int64
	calls int
}

func (f *fakeOracle) LookupID(_ context.Context, ref string) (int64, error) {
	f.calls++
	if id, ok := f.ids[ref]; ok {
		return id, nil
	}
	return 0, errors.New("not found")
}

func newTestReconstructor(oracle identity.Oracle) *Reconstructor {
	if oracle == nil {
		oracle = &fakeOracle{}
	}
	return NewReconstructor(identity.NewCache(oracle, 0), nil)
}

func TestMergeCommentsBuildsTree(t *testing.T) {
	r := newTestReconstructor(nil)
	st := newCommentState()

	recs := []RawComment{
		{ID: 1, AuthorID: 10, AuthorName: "A", Text: "top"},
		{ID: 2, AuthorID: 11, AuthorName: "B", Text: "other"},
		{ID: 3, AuthorID: 12, AuthorName: "C", Text: "reply", IsReply: true, ParentID: 1},
	}
	require.NoError(t, r.MergeComments(context.Background(), st, recs, 0, 1, false, nil))

	assert.Equal(t, 3, st.set.Len())
	assert.Equal(t, int64(1), st.set.Get(3).ParentID)
	assert.Equal(t, []int64{1, 2, 3}, st.set.Order)
}

func TestMergeCommentsIdempotent(t *testing.T) {
	r := newTestReconstructor(nil)
	st := newCommentState()

	recs := []RawComment{
		{ID: 1, AuthorID: 10, Text: "top"},
		{ID: 2, AuthorID: 11, Text: "reply", IsReply: true, ParentID: 1},
	}
	require.NoError(t, r.MergeComments(context.Background(), st, recs, 0, 1, false, nil))
	require.NoError(t, r.MergeComments(context.Background(), st, recs, 0, 1, false, nil))

	assert.Equal(t, 2, st.set.Len())
	assert.Equal(t, "top", st.set.Get(1).Text)
	assert.Equal(t, int64(1), st.set.Get(2).ParentID)
}

func TestMergeCommentsBackfillsParentWithinPass(t *testing.T) {
	r := newTestReconstructor(nil)
	st := newCommentState()

	// First observation has no parent assigned; the second only carries
	// the linkage and must not overwrite content.
	recs := []RawComment{
		{ID: 5, AuthorID: 10, Text: "original body"},
		{ID: 5, Text: "", IsReply: true, ParentID: 2},
	}
	require.NoError(t, r.MergeComments(context.Background(), st, recs, 0, 1, false, nil))

	c := st.set.Get(5)
	require.NotNil(t, c)
	assert.Equal(t, "original body", c.Text)
	assert.Equal(t, int64(2), c.ParentID)
	assert.True(t, c.IsReply)
}

func TestMergeCommentsSkipsPriorPassIDs(t *testing.T) {
	r := newTestReconstructor(nil)
	st := newCommentState()

	require.NoError(t, r.MergeComments(context.Background(), st,
		[]RawComment{{ID: 7, AuthorID: 10, Text: "pass one"}}, 0, 2, false, nil))
	st.finalizePass()

	// The same id re-observed in a later pass is skipped entirely, parent
	// linkage included.
	require.NoError(t, r.MergeComments(context.Background(), st,
		[]RawComment{{ID: 7, Text: "changed", IsReply: true, ParentID: 3}}, 1, 2, false, nil))

	c := st.set.Get(7)
	assert.Equal(t, "pass one", c.Text)
	assert.Zero(t, c.ParentID)
}

func TestMergeCommentsResolvesAuthorThroughOracle(t *testing.T) {
	oracle := &fakeOracle{ids: map[string]int64{"/dana": 77}}
	r := newTestReconstructor(oracle)
	st := newCommentState()

	recs := []RawComment{{ID: 1, AuthorRef: "/dana", AuthorName: "Dana"}}
	require.NoError(t, r.MergeComments(context.Background(), st, recs, 0, 1, false, nil))

	assert.Equal(t, int64(77), st.set.Get(1).AuthorID)
	assert.Equal(t, 1, oracle.calls)
}

func TestMergeCommentsFlagsUnlinkedReplies(t *testing.T) {
	r := newTestReconstructor(nil)
	st := newCommentState()

	recs := []RawComment{
		{ID: 1, AuthorID: 10, Text: "top"},
		{ID: 2, AuthorID: 11, Text: "orphan", IsReply: true, ParentID: 99},
	}
	require.NoError(t, r.MergeComments(context.Background(), st, recs, 0, 1, false, nil))

	// The orphan stays in the set but marks the merge incomplete.
	assert.Equal(t, 2, st.set.Len())
	assert.False(t, st.set.Complete())
	assert.Equal(t, []int64{2}, st.set.MissingParents())
}

func TestMergeCommentsUnresolvedAuthorsGetPlaceholders(t *testing.T) {
	oracle := &fakeOracle{}
	r := newTestReconstructor(oracle)
	st := newCommentState()

	recs := []RawComment{
		{ID: 1, AuthorRef: "/ghost", AuthorName: "Ghost"},
		{ID: 2, AuthorID: 20, AuthorName: "Real"},
		{ID: 3, AuthorRef: "/phantom", AuthorName: "Phantom"},
	}
	require.NoError(t, r.MergeComments(context.Background(), st, recs, 0, 1, false, nil))

	// Resolution failure leaves an explicit negative marker, never a zero,
	// and extraction goes on.
	assert.Equal(t, int64(-10), st.set.Get(1).AuthorID)
	assert.Equal(t, int64(20), st.set.Get(2).AuthorID)
	assert.Equal(t, int64(-11), st.set.Get(3).AuthorID)
}

func TestMergeCommentsMentionResolution(t *testing.T) {
	oracle := &fakeOracle{ids: map[string]int64{"/bob.m": 42}}
	r := newTestReconstructor(oracle)
	st := newCommentState()

	recs := []RawComment{{
		ID: 1,
		Mentions: []RawMention{
			{Label: "Bob", Ref: "/bob.m"},
			{Label: "Carol", ActorID: -10},
		},
	}}
	require.NoError(t, r.MergeComments(context.Background(), st, recs, 0, 1, true, nil))

	mentions := st.set.Get(1).Mentions
	require.Len(t, mentions, 2)
	assert.Equal(t, int64(42), mentions[0].ActorID)
	assert.Equal(t, int64(-10), mentions[1].ActorID, "placeholder survives merge untouched")
}

func TestMergeCommentsCancellation(t *testing.T) {
	r := newTestReconstructor(nil)
	st := newCommentState()

	calls := 0
	progress := func(float64) bool {
		calls++
		return calls < 2 // cancel on the second invocation
	}

	recs := []RawComment{{ID: 1}, {ID: 2}, {ID: 3}}
	err := r.MergeComments(context.Background(), st, recs, 0, 1, false, progress)
	require.ErrorIs(t, err, errCancelled)
	assert.Equal(t, 2, calls)
}

func TestMergeCommentsProgressFractions(t *testing.T) {
	r := newTestReconstructor(nil)
	st := newCommentState()

	var fracs []float64
	progress := func(f float64) bool {
		fracs = append(fracs, f)
		return true
	}

	// Pass 1 of 2 with two records: (0 + 1/2)/2, (0 + 2/2)/2.
	recs := []RawComment{{ID: 1}, {ID: 2}}
	require.NoError(t, r.MergeComments(context.Background(), st, recs, 0, 2, false, progress))
	assert.Equal(t, []float64{0.25, 0.5}, fracs)
}

func TestMergeReactionsLastWriteWins(t *testing.T) {
	r := newTestReconstructor(nil)
	rm := make(types.ReactionMap)

	first := []RawReaction{{ActorID: 501, Name: "Pam", Kind: types.ReactionLove}}
	require.NoError(t, r.MergeReactions(context.Background(), rm, first, nil, 0, 1, nil))

	// Same actor observed again replaces the record wholesale.
	second := []RawReaction{{ActorID: 501, Name: "Pam O.", Kind: types.ReactionAngry}}
	require.NoError(t, r.MergeReactions(context.Background(), rm, second, nil, 0, 1, nil))

	require.Len(t, rm, 1)
	assert.Equal(t, types.ReactionAngry, rm[501].Kind)
	assert.Equal(t, "Pam O.", rm[501].ActorName)
}

func TestMergeSharesFirstWriteWins(t *testing.T) {
	r := newTestReconstructor(nil)
	sm := make(types.ShareMap)

	recs := []RawShare{
		{ActorID: 601, Name: "Sam"},
		{ActorID: 601, Name: "Sam Renamed"},
	}
	require.NoError(t, r.MergeShares(context.Background(), sm, recs, nil, 0, 1, nil))

	require.Len(t, sm, 1)
	assert.Equal(t, "Sam", sm[601].ActorName)
}

func TestResolveActorHintsConsumedPositionally(t *testing.T) {
	r := newTestReconstructor(nil)
	rm := make(types.ReactionMap)

	recs := []RawReaction{
		{ProfileRef: "/pam", Name: "Pam"},
		{ProfileRef: "/quentin", Name: "Quentin"},
	}
	require.NoError(t, r.MergeReactions(context.Background(), rm, recs, []int64{11, 12}, 0, 1, nil))

	assert.Contains(t, rm, int64(11))
	assert.Contains(t, rm, int64(12))
}

func TestResolveActorPlaceholdersAreUnique(t *testing.T) {
	r := newTestReconstructor(&fakeOracle{})
	rm := make(types.ReactionMap)

	// Nothing resolvable: no hints, no blob ids, oracle knows nothing.
	recs := []RawReaction{
		{ProfileRef: "/u1", Name: "U1"},
		{ProfileRef: "/u2", Name: "U2"},
	}
	require.NoError(t, r.MergeReactions(context.Background(), rm, recs, nil, 0, 1, nil))

	require.Len(t, rm, 2)
	assert.Contains(t, rm, int64(-10))
	assert.Contains(t, rm, int64(-11))
}

func TestResolveActorProbeFeedsCache(t *testing.T) {
	oracle := &fakeOracle{}
	cache := identity.NewCache(oracle, 0)
	prober := proberFunc(func(_ context.Context, ref string) (int64, error) {
		return 900, nil
	})
	r := NewReconstructor(cache, prober)

	rm := make(types.ReactionMap)
	recs := []RawReaction{{ProfileRef: "/walter", Name: "Walter"}}
	require.NoError(t, r.MergeReactions(context.Background(), rm, recs, nil, 0, 1, nil))

	assert.Contains(t, rm, int64(900))
	id, ok := cache.TryResolve("/walter")
	require.True(t, ok)
	assert.Equal(t, int64(900), id)
	assert.Zero(t, oracle.calls)
}

type proberFunc func(ctx context.Context, ref string) (int64, error)

func (f proberFunc) ProbeID(ctx context.Context, ref string) (int64, error) { return f(ctx, ref) }
