// Package extract implements the content-extraction engine: incremental
// revelation of a post's engagement content, snapshot parsing, and
// reconstruction of the deduplicated entity set.
package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sjank/fbgrab/internal/auth"
	"github.com/sjank/fbgrab/internal/identity"
	"github.com/sjank/fbgrab/internal/session"
	"github.com/sjank/fbgrab/internal/types"
)

// Initialization failure causes. None are retryable by the core; the caller
// may retry with a different reference.
var (
	ErrEmptyReference = errors.New("extract: empty post reference")
	ErrPostIDNotFound = errors.New("extract: post id undiscoverable")
	ErrAuthorNotFound = errors.New("extract: post author undiscoverable")

	ErrNotInitialized = errors.New("extract: extractor not initialized")
)

// Options controls a comment extraction call.
type Options struct {
	// ResolveMentionIdentities escalates linked mentions to the identity
	// oracle when they cannot be resolved structurally.
	ResolveMentionIdentities bool
	// IncludeAuthenticatedPass runs a reveal+parse cycle with the session
	// logged in. When neither pass flag is set, this is the default.
	IncludeAuthenticatedPass bool
	// IncludeDeauthenticatedPass runs a second cycle with the session's
	// cookies stashed, surfacing content only visible logged-out.
	IncludeDeauthenticatedPass bool
}

// Extractor drives one live session through the full extraction flow for a
// single post. Not safe for concurrent use: a session tolerates only one
// extraction operation at a time.
type Extractor struct {
	sess     *session.Session
	interact *session.Interactor
	reveal   *session.Revealer
	rec      *Reconstructor
	auth     *auth.Manager

	postRef string
	post    types.PostInfo

	log *logrus.Entry
}

// New builds an Extractor over an authenticated live session. settle is the
// post-interaction settle delay; zero means the default.
func New(sess *session.Session, ids *identity.Cache, authMgr *auth.Manager, settle time.Duration) *Extractor {
	interact := session.NewInteractor(sess, session.SystemClock, LoadingMarker, settle)
	e := &Extractor{
		sess:     sess,
		interact: interact,
		reveal:   session.NewRevealer(sess, interact, session.SystemClock),
		auth:     authMgr,
		log:      logrus.WithField("component", "extract"),
	}
	e.rec = NewReconstructor(ids, e)
	return e
}

var (
	ftEntRe     = regexp.MustCompile(`ft_ent_identifier=(\d+)`)
	storyFbidRe = regexp.MustCompile(`story_fbid=(\d+)`)
	postPathRe  = regexp.MustCompile(`/posts/(\d+)`)
	postBlobRe  = regexp.MustCompile(`"post_id":"?(\d+)`)
	actorBlobRe = regexp.MustCompile(`"actor_id":"?(\d+)`)
	threadIDRe  = regexp.MustCompile(`/messages/thread/(\d+)`)
)

// Initialize resolves postRef to a concrete post: navigates to it and
// discovers the post id, the author id and whether it lives in a group.
// Must be called before any Extract method.
func (e *Extractor) Initialize(ctx context.Context, postRef string) (types.PostInfo, error) {
	if strings.TrimSpace(postRef) == "" {
		return types.PostInfo{}, ErrEmptyReference
	}

	if err := e.sess.Navigate(postRef); err != nil {
		return types.PostInfo{}, err
	}

	loc, err := e.sess.Location()
	if err != nil {
		return types.PostInfo{}, err
	}
	html, err := e.sess.Snapshot()
	if err != nil {
		return types.PostInfo{}, err
	}

	info := types.PostInfo{IsGroupPost: strings.Contains(loc, "/groups/")}

	info.PostID = firstNumericMatch(loc, ftEntRe, storyFbidRe, postPathRe)
	if info.PostID == 0 {
		info.PostID = firstNumericMatch(html, ftEntRe, postBlobRe)
	}
	if info.PostID == 0 {
		return types.PostInfo{}, fmt.Errorf("resolve %s: %w", postRef, ErrPostIDNotFound)
	}

	info.AuthorID = e.discoverAuthor(html)
	if info.AuthorID == 0 {
		return types.PostInfo{}, fmt.Errorf("resolve %s: %w", postRef, ErrAuthorNotFound)
	}

	e.postRef = postRef
	e.post = info
	e.log.WithFields(logrus.Fields{
		"post_id":   info.PostID,
		"author_id": info.AuthorID,
		"group":     info.IsGroupPost,
	}).Info("initialized")

	return info, nil
}

func (e *Extractor) discoverAuthor(html string) int64 {
	if doc, err := ParseDocument(html); err == nil {
		if ds, ok := doc.Find(StoryActor).First().Attr("data-store"); ok {
			if blob, ok := parseActorBlob(ds); ok {
				return blob.ActorID
			}
		}
	}
	return firstNumericMatch(html, actorBlobRe)
}

// PostInfo returns the post the extractor was initialized against.
func (e *Extractor) PostInfo() types.PostInfo {
	return e.post
}

// ExtractComments fully expands the post's comment thread and reconstructs
// the deduplicated comment tree, in one or two passes per opts. A nil, nil
// return means the progress callback cancelled the extraction; partial data
// is intentionally discarded.
func (e *Extractor) ExtractComments(ctx context.Context, opts Options, progress ProgressFunc) (*types.CommentSet, error) {
	if e.post.PostID == 0 {
		return nil, ErrNotInitialized
	}

	passes := passPlan(opts)
	st := newCommentState()

	for i, authenticated := range passes {
		err := e.runCommentPass(ctx, st, i, len(passes), authenticated, opts.ResolveMentionIdentities, progress)
		if errors.Is(err, errCancelled) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		st.finalizePass()
	}

	if missing := st.set.MissingParents(); len(missing) > 0 {
		e.log.WithField("unlinked", missing).Warn("comment set incomplete: replies without a linked parent")
	}
	e.log.WithField("comments", st.set.Len()).Info("comment extraction complete")
	return st.set, nil
}

// passPlan maps the option flags onto an ordered list of pass states.
// With neither flag set, a single pass runs in the current (authenticated)
// state.
func passPlan(opts Options) []bool {
	var passes []bool
	if opts.IncludeAuthenticatedPass {
		passes = append(passes, true)
	}
	if opts.IncludeDeauthenticatedPass {
		passes = append(passes, false)
	}
	if len(passes) == 0 {
		passes = []bool{true}
	}
	return passes
}

func (e *Extractor) runCommentPass(ctx context.Context, st *commentState,
	passIdx, totalPasses int, authenticated, resolveMentions bool, progress ProgressFunc) error {

	if !authenticated {
		stashed, err := e.auth.Stash(e.sess.Context())
		if err != nil {
			return fmt.Errorf("de-authenticate session: %w", err)
		}
		defer func() {
			if err := e.auth.Restore(e.sess.Context(), stashed); err != nil {
				e.log.WithError(err).Error("failed to restore session cookies")
			}
		}()
	}

	if err := e.sess.Navigate(e.postRef); err != nil {
		return err
	}

	// Fully expand: page through top-level comments, then chase the
	// nested "view more replies" controls until they stop appearing.
	if err := e.reveal.RevealAll(ctx, StoryContainer, CommentUnit, MoreCommentsLink); err != nil {
		return err
	}
	if err := e.reveal.RevealAllUnbounded(ctx, MoreRepliesLink); err != nil {
		return err
	}

	html, err := e.sess.Snapshot()
	if err != nil {
		return err
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return err
	}

	recs := ParseComments(doc)
	e.log.WithFields(logrus.Fields{
		"pass":          passIdx + 1,
		"authenticated": authenticated,
		"records":       len(recs),
	}).Debug("pass parsed")

	return e.rec.MergeComments(ctx, st, recs, passIdx, totalPasses, resolveMentions, progress)
}

// ExtractReactions pages through the reactions browser and reconstructs the
// reaction map, one entry per actor. nil, nil means cancelled.
func (e *Extractor) ExtractReactions(ctx context.Context, progress ProgressFunc) (types.ReactionMap, error) {
	if e.post.PostID == 0 {
		return nil, ErrNotInitialized
	}

	if err := e.sess.Navigate(fmt.Sprintf(ReactionsURL, e.post.PostID)); err != nil {
		return nil, err
	}
	if err := e.reveal.RevealAll(ctx, "", ReactorUnit, MoreReactorsLink); err != nil {
		return nil, err
	}

	html, err := e.sess.Snapshot()
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}

	rm := make(types.ReactionMap)
	err = e.rec.MergeReactions(ctx, rm, ParseReactors(doc), ParseActorHints(html), 0, 1, progress)
	if errors.Is(err, errCancelled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.log.WithField("reactions", len(rm)).Info("reaction extraction complete")
	return rm, nil
}

// ExtractShares pages through the shares browser and reconstructs the share
// map, one entry per actor. nil, nil means cancelled.
func (e *Extractor) ExtractShares(ctx context.Context, progress ProgressFunc) (types.ShareMap, error) {
	if e.post.PostID == 0 {
		return nil, ErrNotInitialized
	}

	if err := e.sess.Navigate(fmt.Sprintf(SharesURL, e.post.PostID)); err != nil {
		return nil, err
	}
	if err := e.reveal.RevealAll(ctx, "", ShareUnit, MoreReactorsLink); err != nil {
		return nil, err
	}

	html, err := e.sess.Snapshot()
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}

	sm := make(types.ShareMap)
	err = e.rec.MergeShares(ctx, sm, ParseShares(doc), ParseActorHints(html), 0, 1, progress)
	if errors.Is(err, errCancelled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.log.WithField("shares", len(sm)).Info("share extraction complete")
	return sm, nil
}

// ProbeID resolves an actor id by live interaction: open the profile, click
// the messaging affordance, read the id out of the thread URL, then revert
// the navigation. Expensive; the reconstructor only calls it after the
// cheaper structural sources fail.
func (e *Extractor) ProbeID(ctx context.Context, profileRef string) (int64, error) {
	origin, err := e.sess.Location()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := e.sess.Navigate(origin); err != nil {
			e.log.WithError(err).Error("failed to revert probe navigation")
		}
	}()

	if err := e.sess.Navigate(absolutizeURL(profileRef)); err != nil {
		return 0, err
	}

	out, err := e.interact.Click(ctx, MessageButton, session.ClickOpts{})
	if err != nil {
		return 0, err
	}
	if out == session.OutcomeAbsent {
		return 0, fmt.Errorf("probe %s: no messaging affordance", profileRef)
	}

	loc, err := e.sess.Location()
	if err != nil {
		return 0, err
	}
	m := threadIDRe.FindStringSubmatch(loc)
	if m == nil {
		return 0, fmt.Errorf("probe %s: thread url %q carries no id", profileRef, loc)
	}
	return strconv.ParseInt(m[1], 10, 64)
}

func firstNumericMatch(s string, res ...*regexp.Regexp) int64 {
	for _, re := range res {
		if m := re.FindStringSubmatch(s); m != nil {
			if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}
