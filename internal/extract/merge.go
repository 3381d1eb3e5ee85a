package extract

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/sjank/fbgrab/internal/identity"
	"github.com/sjank/fbgrab/internal/types"
)

// errCancelled aborts a merge when the progress callback declines to
// continue. It never escapes the extractor: cancellation is surfaced to
// callers as a nil result, not an error.
var errCancelled = errors.New("extract: cancelled by progress callback")

// ProgressFunc receives the overall completed fraction after each record.
// Returning false cancels the whole extraction; the in-flight merge is
// abandoned and the caller gets no partial result.
type ProgressFunc func(fraction float64) bool

// ActorProber discovers an actor id by live interaction: triggering the
// messaging affordance on a profile and reading the id out of the resulting
// thread URL. Consulted only when cheaper structural sources fail.
type ActorProber interface {
	ProbeID(ctx context.Context, profileRef string) (int64, error)
}

// hintQueue hands out an externally-supplied actor-id manifest positionally,
// in the order records are produced.
type hintQueue struct {
	ids []int64
}

func (h *hintQueue) next() (int64, bool) {
	if h == nil || len(h.ids) == 0 {
		return 0, false
	}
	id := h.ids[0]
	h.ids = h.ids[1:]
	return id, true
}

// Reconstructor merges raw records from one or more passes into the final
// deduplicated, relationship-aware entity set. It exclusively owns the
// growing collections for the duration of an extraction call.
type Reconstructor struct {
	ids    *identity.Cache
	prober ActorProber // optional
	// nextPlaceholder hands out negative ids for actors nothing could
	// resolve, so they still dedupe correctly without colliding with real
	// (non-negative) identifiers.
	nextPlaceholder int64
	log             *logrus.Entry
}

// NewReconstructor builds a Reconstructor over the shared identity cache.
// prober may be nil to disable live identity probing.
func NewReconstructor(ids *identity.Cache, prober ActorProber) *Reconstructor {
	return &Reconstructor{
		ids:             ids,
		prober:          prober,
		nextPlaceholder: -10,
		log:             logrus.WithField("component", "reconstruct"),
	}
}

// commentState tracks the growing comment set across passes. prior holds
// the ids finalized in earlier passes; those are skipped entirely on
// re-observation, while ids first seen in the current pass still accept
// parent-link backfill.
type commentState struct {
	set   *types.CommentSet
	prior map[int64]bool
}

func newCommentState() *commentState {
	return &commentState{
		set:   types.NewCommentSet(),
		prior: make(map[int64]bool),
	}
}

// finalizePass marks everything currently known as settled, ending the
// current pass.
func (st *commentState) finalizePass() {
	for id := range st.set.Comments {
		st.prior[id] = true
	}
}

// MergeComments folds one pass worth of raw comment records into st.
//
// A second observation of a known identifier within the same pass only fills
// in missing parent linkage; it never overwrites content. Replies can be
// discovered before or after their parent depending on expansion order, so
// backfill is attempted unconditionally.
func (r *Reconstructor) MergeComments(ctx context.Context, st *commentState, recs []RawComment,
	passIdx, totalPasses int, resolveMentions bool, progress ProgressFunc) error {

	n := len(recs)
	for i, rec := range recs {
		if st.prior[rec.ID] {
			if !report(progress, passIdx, totalPasses, i+1, n) {
				return errCancelled
			}
			continue
		}

		if existing := st.set.Get(rec.ID); existing != nil {
			if existing.ParentID == 0 && rec.ParentID != 0 {
				existing.ParentID = rec.ParentID
				existing.IsReply = true
			}
		} else {
			c := r.buildComment(ctx, rec, resolveMentions)
			st.set.Comments[c.ID] = c
			st.set.Order = append(st.set.Order, c.ID)
		}

		if !report(progress, passIdx, totalPasses, i+1, n) {
			return errCancelled
		}
	}

	return nil
}

func (r *Reconstructor) buildComment(ctx context.Context, rec RawComment, resolveMentions bool) *types.Comment {
	c := &types.Comment{
		ID:         rec.ID,
		AuthorID:   rec.AuthorID,
		AuthorName: rec.AuthorName,
		Text:       rec.Text,
		RichText:   rec.RichText,
		LinkTitle:  rec.LinkTitle,
		LinkURL:    rec.LinkURL,
		MediaURL:   rec.MediaURL,
		ParentID:   rec.ParentID,
		IsReply:    rec.IsReply,
	}

	if c.AuthorID != 0 && rec.AuthorRef != "" {
		// A successful structural resolution makes later lookups free.
		r.ids.Remember(rec.AuthorRef, c.AuthorID)
	} else if rec.AuthorRef != "" {
		if id, err := r.ids.Resolve(ctx, rec.AuthorRef); err == nil {
			c.AuthorID = id
		} else {
			r.log.WithField("ref", rec.AuthorRef).WithError(err).Warn("author identity unresolved, assigning placeholder")
		}
	}
	// An author nothing could resolve still gets an explicit marker, never a
	// silent zero.
	if c.AuthorID == 0 {
		c.AuthorID = r.placeholderID()
	}

	for _, m := range rec.Mentions {
		mention := types.Mention{Label: m.Label, ActorID: m.ActorID}
		if m.Ref != "" {
			if resolveMentions {
				if id, err := r.ids.Resolve(ctx, m.Ref); err == nil {
					mention.ActorID = id
				}
			} else if id, ok := r.ids.TryResolve(m.Ref); ok {
				mention.ActorID = id
			}
		}
		c.Mentions = append(c.Mentions, mention)
	}

	return c
}

// MergeReactions folds one pass worth of reactor records into rm.
// Last-observed-wins per actor: the rows arrive most-recent-first, and a new
// record replaces the stored one wholesale (delete-then-insert, so no field
// leaks through from the old record).
func (r *Reconstructor) MergeReactions(ctx context.Context, rm types.ReactionMap, recs []RawReaction,
	hints []int64, passIdx, totalPasses int, progress ProgressFunc) error {

	hq := &hintQueue{ids: hints}
	n := len(recs)
	for i, rec := range recs {
		id := r.resolveActor(ctx, hq, rec.ActorID, rec.ProfileRef)

		delete(rm, id)
		rm[id] = types.Reaction{ActorID: id, ActorName: rec.Name, Kind: rec.Kind}

		if !report(progress, passIdx, totalPasses, i+1, n) {
			return errCancelled
		}
	}

	return nil
}

// MergeShares folds one pass worth of share records into sm.
// First-observed-wins per actor: a repeat observation is discarded.
func (r *Reconstructor) MergeShares(ctx context.Context, sm types.ShareMap, recs []RawShare,
	hints []int64, passIdx, totalPasses int, progress ProgressFunc) error {

	hq := &hintQueue{ids: hints}
	n := len(recs)
	for i, rec := range recs {
		id := r.resolveActor(ctx, hq, rec.ActorID, rec.ProfileRef)

		if _, seen := sm[id]; !seen {
			sm[id] = types.Share{ActorID: id, ActorName: rec.Name}
		}

		if !report(progress, passIdx, totalPasses, i+1, n) {
			return errCancelled
		}
	}

	return nil
}

// resolveActor applies the identity resolution precedence: the positional
// hint list, the structural data blob, the live messaging probe, then the
// shared cache's oracle. Blob and probe successes feed the cache. When
// everything fails the actor is assigned a fresh negative placeholder and
// extraction proceeds.
func (r *Reconstructor) resolveActor(ctx context.Context, hq *hintQueue, blobID int64, ref string) int64 {
	if id, ok := hq.next(); ok {
		if ref != "" {
			r.ids.Remember(ref, id)
		}
		return id
	}

	if blobID > 0 {
		if ref != "" {
			r.ids.Remember(ref, blobID)
		}
		return blobID
	}

	if r.prober != nil && ref != "" {
		if id, err := r.prober.ProbeID(ctx, ref); err == nil && id > 0 {
			r.ids.Remember(ref, id)
			return id
		}
	}

	if ref != "" {
		if id, err := r.ids.Resolve(ctx, ref); err == nil {
			return id
		}
		r.log.WithField("ref", ref).Warn("actor identity unresolved, assigning placeholder")
	}

	return r.placeholderID()
}

// placeholderID hands out the next negative placeholder.
func (r *Reconstructor) placeholderID() int64 {
	id := r.nextPlaceholder
	r.nextPlaceholder--
	return id
}

// report emits fractional progress as (pass + fraction-of-pass) / passes.
// A nil callback always continues.
func report(progress ProgressFunc, passIdx, totalPasses, done, n int) bool {
	if progress == nil {
		return true
	}
	frac := 1.0
	if n > 0 {
		frac = float64(done) / float64(n)
	}
	return progress((float64(passIdx) + frac) / float64(totalPasses))
}
