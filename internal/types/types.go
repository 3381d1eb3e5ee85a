package types

// ReactionKind is the set of reaction types the site exposes on a post.
type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLove  ReactionKind = "love"
	ReactionCare  ReactionKind = "care"
	ReactionLaugh ReactionKind = "laugh"
	ReactionWow   ReactionKind = "wow"
	ReactionSad   ReactionKind = "sad"
	ReactionAngry ReactionKind = "angry"
)

// Mention is an inline @-mention inside a comment body.
// ActorID is negative (a placeholder) when the mention carried no profile link.
type Mention struct {
	Label   string `json:"label"`
	ActorID int64  `json:"actor_id"`
}

// Comment is a single comment on a post. ParentID is 0 for top-level comments.
type Comment struct {
	ID         int64     `json:"id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	RichText   string    `json:"rich_text"`
	Mentions   []Mention `json:"mentions,omitempty"`
	LinkTitle  string    `json:"link_title,omitempty"`
	LinkURL    string    `json:"link_url,omitempty"`
	MediaURL   string    `json:"media_url,omitempty"`
	ParentID   int64     `json:"parent_id,omitempty"`
	IsReply    bool      `json:"is_reply"`
}

// Reaction is one actor's reaction to the post.
type Reaction struct {
	ActorID   int64        `json:"actor_id"`
	ActorName string       `json:"actor_name"`
	Kind      ReactionKind `json:"kind"`
}

// Share records that an actor shared the post.
type Share struct {
	ActorID   int64  `json:"actor_id"`
	ActorName string `json:"actor_name"`
}

// PostInfo identifies the post an extraction session is attached to.
type PostInfo struct {
	PostID      int64 `json:"post_id"`
	AuthorID    int64 `json:"author_id"`
	IsGroupPost bool  `json:"is_group_post"`
}

// CommentSet is the merged, deduplicated result of one or more extraction
// passes. Order preserves first observation in document order.
type CommentSet struct {
	Comments map[int64]*Comment `json:"comments"`
	Order    []int64            `json:"order"`
}

// NewCommentSet returns an empty comment set.
func NewCommentSet() *CommentSet {
	return &CommentSet{Comments: make(map[int64]*Comment)}
}

// Get returns the comment with the given id, or nil.
func (cs *CommentSet) Get(id int64) *Comment {
	return cs.Comments[id]
}

// Len returns the number of distinct comments in the set.
func (cs *CommentSet) Len() int {
	return len(cs.Order)
}

// InOrder returns the comments in first-observed document order.
func (cs *CommentSet) InOrder() []*Comment {
	out := make([]*Comment, 0, len(cs.Order))
	for _, id := range cs.Order {
		out = append(out, cs.Comments[id])
	}
	return out
}

// MissingParents returns the ids of replies whose parent linkage is broken:
// the parent id was never observed in the set, or the reply's ancestor
// carried no usable identifier at all (ParentID 0).
func (cs *CommentSet) MissingParents() []int64 {
	var out []int64
	for _, id := range cs.Order {
		c := cs.Comments[id]
		if !c.IsReply {
			continue
		}
		if c.ParentID == 0 || cs.Comments[c.ParentID] == nil {
			out = append(out, id)
		}
	}
	return out
}

// Complete reports whether every reply is linked to a parent present in the
// set. A false return means the merged set is structurally incomplete.
func (cs *CommentSet) Complete() bool {
	return len(cs.MissingParents()) == 0
}

// ReactionMap holds at most one reaction per actor id.
type ReactionMap map[int64]Reaction

// ShareMap holds at most one share per actor id.
type ShareMap map[int64]Share
