package store

import (
	"time"

	"github.com/sjank/fbgrab/internal/types"
)

// Result is one complete extraction of a post's engagement data.
type Result struct {
	Post        types.PostInfo   `json:"post"`
	Ref         string           `json:"ref"`
	Comments    []*types.Comment `json:"comments"`
	Reactions   []types.Reaction `json:"reactions"`
	Shares      []types.Share    `json:"shares"`
	ExtractedAt time.Time        `json:"extracted_at"`
}
