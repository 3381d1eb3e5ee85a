package extract

import "github.com/sjank/fbgrab/internal/types"

// RawRecord is one unit extracted from a document snapshot by static
// inspection, before identity resolution and deduplication.
type RawRecord interface {
	rawRecord()
}

// RawMention is an inline mention inside a comment body. Ref is empty for
// mentions with no profile link; those get a negative placeholder id
// assigned at parse time so they remain individually addressable.
type RawMention struct {
	Label   string
	Ref     string
	ActorID int64
}

// RawComment carries everything statically extractable from one comment unit.
type RawComment struct {
	ID         int64
	AuthorRef  string
	AuthorID   int64 // from an embedded data blob; 0 when the blob was absent
	AuthorName string
	Text       string
	RichText   string
	Mentions   []RawMention
	LinkTitle  string
	LinkURL    string
	MediaURL   string
	IsReply    bool
	ParentID   int64 // nearest comment-unit ancestor; 0 for top-level
}

// RawReaction carries one reactor-unit row from the reactions browser page.
type RawReaction struct {
	ProfileRef string
	Name       string
	ActorID    int64 // from an embedded data blob; 0 when unknown
	Kind       types.ReactionKind
}

// RawShare carries one row from the shares browser page.
type RawShare struct {
	ProfileRef string
	Name       string
	ActorID    int64
}

func (RawComment) rawRecord()  {}
func (RawReaction) rawRecord() {}
func (RawShare) rawRecord()    {}
