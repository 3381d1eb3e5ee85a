package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sjank/fbgrab/internal/types"
)

// expectedContentBlocks is how many child blocks a comment content region
// has when it carries an embedded attachment: the body itself plus the
// attachment region. Any other shape means no attachment to parse.
const expectedContentBlocks = 2

// ParseDocument parses a frozen HTML snapshot into a queryable tree. All
// extraction below runs against this copy, independent of the live session.
func ParseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ParseComments walks the comment units in document order and produces one
// raw record per unit. Units without a numeric identifier attribute are
// skipped; everything else is extracted best-effort.
func ParseComments(doc *goquery.Document) []RawComment {
	var out []RawComment

	doc.Find(CommentUnit).Each(func(_ int, unit *goquery.Selection) {
		idStr, ok := unit.Attr(CommentIDAttr)
		if !ok {
			return
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return
		}

		rc := RawComment{
			ID:      id,
			IsReply: strings.Contains(unit.AttrOr("data-sigil", ""), ReplySigil),
		}

		// A reply's parent is its nearest comment-unit ancestor.
		if rc.IsReply {
			anc := unit.ParentsFiltered(CommentUnit).First()
			if pid, err := strconv.ParseInt(anc.AttrOr(CommentIDAttr, ""), 10, 64); err == nil {
				rc.ParentID = pid
			}
		}

		// Author identity ring carries the actor id as a data blob.
		if ds, ok := unit.Find(AuthorRing).First().Attr("data-store"); ok {
			if blob, ok := parseActorBlob(ds); ok {
				rc.AuthorID = blob.ActorID
			}
		}

		author := unit.Find(CommentAuthor).First()
		rc.AuthorName = strings.TrimSpace(author.Text())
		rc.AuthorRef = author.AttrOr("href", "")

		body := unit.Find(CommentBody).First()
		rc.Text = strings.TrimSpace(body.Text())
		if rich, err := body.Html(); err == nil {
			rc.RichText = strings.TrimSpace(rich)
		}
		rc.Mentions = parseMentions(body)

		if content := unit.Find(CommentContent).First(); content.Length() > 0 {
			blocks := content.ChildrenFiltered("div")
			if blocks.Length() == expectedContentBlocks {
				parseAttachments(blocks.Eq(expectedContentBlocks-1), &rc)
			}
		}

		out = append(out, rc)
	})

	return out
}

// parseMentions extracts inline links from a comment body. Anchors without a
// destination get strictly decreasing negative placeholder ids starting at
// -10 so they stay individually addressable without colliding with real ids
// (which are always >= 0).
func parseMentions(body *goquery.Selection) []RawMention {
	var mentions []RawMention
	placeholder := int64(-10)

	body.Find("a").Each(func(_ int, a *goquery.Selection) {
		label := strings.TrimSpace(a.Text())
		if label == "" {
			return
		}
		href, ok := a.Attr("href")
		if !ok || href == "" || href == "#" {
			mentions = append(mentions, RawMention{Label: label, ActorID: placeholder})
			placeholder--
			return
		}
		mentions = append(mentions, RawMention{Label: label, Ref: href})
	})

	return mentions
}

var bgImageRe = regexp.MustCompile(`background-image:\s*url\(['"]?([^'")]+)['"]?\)`)

// parseAttachments fills the embedded-content fields of rc from the
// attachment region: background-image styling (sticker), a titled link card,
// and an image-post link vs. a JSON-carrying video attachment.
func parseAttachments(region *goquery.Selection, rc *RawComment) {
	// Sticker rendered as a background image
	region.Find("[style]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := bgImageRe.FindStringSubmatch(s.AttrOr("style", "")); m != nil {
			rc.MediaURL = m[1]
			return false
		}
		return true
	})

	// Titled link card
	if card := region.Find(AttachmentLink).First(); card.Length() > 0 {
		rc.LinkTitle = strings.TrimSpace(card.Text())
		rc.LinkURL = absolutizeURL(card.AttrOr("href", ""))
	}

	// Image-post link: the share target lives in a data blob, with the
	// href as fallback.
	if photo := region.Find(PhotoAttachment).First(); photo.Length() > 0 && rc.MediaURL == "" {
		if blob, ok := parseShareBlob(photo.AttrOr("data-store", "")); ok {
			rc.MediaURL = absolutizeURL(blob.URI)
		} else if href := photo.AttrOr("href", ""); href != "" {
			rc.MediaURL = absolutizeURL(href)
		}
	}

	// Video attachment: playable source embedded in a data blob
	if video := region.Find(VideoAttachment).First(); video.Length() > 0 && rc.MediaURL == "" {
		if blob, ok := parseVideoBlob(video.AttrOr("data-store", "")); ok {
			rc.MediaURL = blob.Src
		}
	}
}

// ParseReactors walks the reactor units of a reactions browser snapshot.
// Rows are served most-recent-first, which is why reaction merging is
// last-write-wins.
func ParseReactors(doc *goquery.Document) []RawReaction {
	var out []RawReaction

	doc.Find(ReactorUnit).Each(func(_ int, unit *goquery.Selection) {
		link := unit.Find("a[href]").First()
		if link.Length() == 0 {
			return
		}

		rr := RawReaction{
			ProfileRef: link.AttrOr("href", ""),
			Name:       reactorName(link),
			Kind:       kindFromLabel(unit.Find(ReactionIcon).First().AttrOr("aria-label", "")),
		}
		if ds, ok := unit.Attr("data-store"); ok {
			if blob, ok := parseActorBlob(ds); ok {
				rr.ActorID = blob.ActorID
			}
		}

		out = append(out, rr)
	})

	return out
}

// ParseShares walks the share units of a shares browser snapshot.
func ParseShares(doc *goquery.Document) []RawShare {
	var out []RawShare

	doc.Find(ShareUnit).Each(func(_ int, unit *goquery.Selection) {
		link := unit.Find("a[href]").First()
		if link.Length() == 0 {
			return
		}

		rs := RawShare{
			ProfileRef: link.AttrOr("href", ""),
			Name:       reactorName(link),
		}
		if ds, ok := unit.Attr("data-store"); ok {
			if blob, ok := parseActorBlob(ds); ok {
				rs.ActorID = blob.ActorID
			}
		}

		out = append(out, rs)
	})

	return out
}

var hintsRe = regexp.MustCompile(`"reactor_ids":\[([0-9,\s]*)\]`)

// ParseActorHints pulls the actor-id manifest the page sometimes embeds in a
// script blob, listing reactor ids in load order. Returns nil when absent.
func ParseActorHints(html string) []int64 {
	m := hintsRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func reactorName(link *goquery.Selection) string {
	if s := strings.TrimSpace(link.Find("strong").First().Text()); s != "" {
		return s
	}
	return strings.TrimSpace(link.Text())
}

var kindLabels = map[string]types.ReactionKind{
	"like":  types.ReactionLike,
	"love":  types.ReactionLove,
	"care":  types.ReactionCare,
	"haha":  types.ReactionLaugh,
	"laugh": types.ReactionLaugh,
	"wow":   types.ReactionWow,
	"sad":   types.ReactionSad,
	"angry": types.ReactionAngry,
}

// kindFromLabel maps an icon label to a reaction kind, defaulting to "like"
// when the label is missing or unrecognized.
func kindFromLabel(label string) types.ReactionKind {
	if k, ok := kindLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return k
	}
	return types.ReactionLike
}

// absolutizeURL rewrites relative URLs against the canonical host and
// unwraps the outbound link shim so callers see the real destination.
func absolutizeURL(href string) string {
	if href == "" {
		return ""
	}
	if u, err := url.Parse(href); err == nil {
		if strings.HasSuffix(u.Path, "/l.php") {
			if target := u.Query().Get("u"); target != "" {
				return target
			}
		}
	}
	if strings.HasPrefix(href, "/") {
		return SiteBase + href
	}
	return href
}
