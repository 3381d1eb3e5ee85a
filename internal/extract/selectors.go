package extract

// m.facebook.com DOM selectors
// These are isolated here because Facebook changes their mobile markup
// frequently. Update these when extraction breaks; the engine itself is
// selector-agnostic.

const (
	// SiteBase is the canonical host relative URLs are rewritten against.
	SiteBase = "https://m.facebook.com"

	// LoadingMarker flags an in-flight async fragment load. Interactions
	// wait for it to disappear before trusting the document again.
	LoadingMarker = `[data-sigil="m-loading-indicator"]`

	// Story (post) page
	StoryContainer = `div[data-sigil="m-story-view"]`
	StoryActor     = `div[data-sigil="m-story-view"] [data-store]`

	// Comment units. data-sigil is a word list: replies carry
	// "comment inline-reply" and still match the ~= word "comment".
	CommentUnit   = `div[data-sigil~="comment"]`
	CommentIDAttr = "id"
	ReplySigil    = "inline-reply"

	// Inside a comment unit
	AuthorRing     = `i[data-sigil="story-ring"]`
	CommentAuthor  = `div[data-sigil="comment-author"] a`
	CommentContent = `div[data-sigil="comment-content"]`
	CommentBody    = `div[data-sigil="comment-body"]`

	// Embedded-content region inside the content block
	AttachmentLink  = `a[data-sigil="attachment-link"]`
	PhotoAttachment = `a[data-sigil="photo-attachment"]`
	VideoAttachment = `div[data-sigil="video-attachment"]`

	// Expansion controls
	MoreCommentsLink = `div[data-sigil="pagination-link"] a`
	MoreRepliesLink  = `div[data-sigil="replies-see-more"] a`

	// Reactions browser page (ufi/reaction/profile/browser)
	ReactorUnit      = `div[data-sigil="reaction-profile-row"]`
	ReactionIcon     = `i[aria-label], img[aria-label]`
	MoreReactorsLink = `div[data-sigil="pagination-link"] a`

	// Shares browser page (browse/shares)
	ShareUnit = `div[data-sigil="share-profile-row"]`

	// Identity probe: the messaging affordance on a profile page navigates
	// to a thread URL that encodes the profile's numeric id.
	MessageButton = `a[data-sigil="message-button"]`
)

// Page URL templates
const (
	ReactionsURL = SiteBase + "/ufi/reaction/profile/browser/?ft_ent_identifier=%d"
	SharesURL    = SiteBase + "/browse/shares?id=%d"
)
