// Package identity resolves profile references (URLs or vanity handles) to
// numeric actor ids, memoizing every answer for the life of the process.
package identity

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Oracle is the external last-resort resolver. It may perform network calls.
type Oracle interface {
	// LookupID returns the numeric actor id for a profile reference, or an
	// error when the reference cannot be resolved.
	LookupID(ctx context.Context, ref string) (int64, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(ctx context.Context, ref string) (int64, error)

// LookupID implements Oracle.
func (f OracleFunc) LookupID(ctx context.Context, ref string) (int64, error) {
	return f(ctx, ref)
}

// Cache is a process-wide memoized mapping from profile reference to actor
// id, plus the inverse handle mapping where derivable. Entries are
// append-only and never invalidated: a reference always denotes the same
// actor for the life of a session. Safe for concurrent use.
type Cache struct {
	mu          sync.Mutex
	byRef       map[string]int64
	handleByRef map[string]string
	oracle      Oracle
	selfID      int64
	log         *logrus.Entry
}

// NewCache builds a cache over oracle. selfID is the numeric id of the
// current session's own account, used for self-referencing profile links.
func NewCache(oracle Oracle, selfID int64) *Cache {
	return &Cache{
		byRef:       make(map[string]int64),
		handleByRef: make(map[string]string),
		oracle:      oracle,
		selfID:      selfID,
		log:         logrus.WithField("component", "identity"),
	}
}

// Resolve returns the actor id for ref, consulting cheaper sources before
// the oracle: the memo table, the id embedded in the reference itself, and
// the session's own identity for bare profile.php self-references. The
// oracle is only invoked on a miss, and its answer is memoized.
func (c *Cache) Resolve(ctx context.Context, ref string) (int64, error) {
	key := normalize(ref)

	c.mu.Lock()
	if id, ok := c.byRef[key]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	if id, ok := idFromReference(key); ok {
		c.Remember(ref, id)
		return id, nil
	}

	// A profile.php link with no id parameter is the mobile site's way of
	// pointing at the logged-in account itself.
	if isSelfReference(key) && c.selfID != 0 {
		c.Remember(ref, c.selfID)
		return c.selfID, nil
	}

	id, err := c.oracle.LookupID(ctx, ref)
	if err != nil {
		return 0, err
	}
	c.Remember(ref, id)
	return id, nil
}

// TryResolve returns a memoized or structurally derivable id for ref
// without ever consulting the oracle.
func (c *Cache) TryResolve(ref string) (int64, bool) {
	key := normalize(ref)

	c.mu.Lock()
	if id, ok := c.byRef[key]; ok {
		c.mu.Unlock()
		return id, true
	}
	c.mu.Unlock()

	if id, ok := idFromReference(key); ok {
		c.Remember(ref, id)
		return id, true
	}
	if isSelfReference(key) && c.selfID != 0 {
		c.Remember(ref, c.selfID)
		return c.selfID, true
	}
	return 0, false
}

// Remember memoizes ref -> id, along with the inverse handle mapping when
// the reference carries a vanity handle.
func (c *Cache) Remember(ref string, id int64) {
	key := normalize(ref)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byRef[key] = id
	if h := handleFromReference(key); h != "" {
		c.handleByRef[key] = h
	}
}

// HandleOf returns the display handle derived from ref, or "" if none.
func (c *Cache) HandleOf(ref string) string {
	key := normalize(ref)
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handleByRef[key]; ok {
		return h
	}
	return handleFromReference(key)
}

// normalize strips scheme, host and tracking query noise so the same profile
// observed through different link forms lands on one cache key.
func normalize(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		path = "/"
	}
	if id := u.Query().Get("id"); id != "" {
		return path + "?id=" + id
	}
	return path
}

// idFromReference extracts an explicit numeric id from the reference itself:
// either a profile.php?id=N link or an all-digit path segment.
func idFromReference(key string) (int64, bool) {
	if idx := strings.Index(key, "?id="); idx >= 0 {
		if id, err := strconv.ParseInt(key[idx+4:], 10, 64); err == nil {
			return id, true
		}
	}
	seg := strings.Trim(key, "/")
	if seg != "" && !strings.Contains(seg, "/") {
		if id, err := strconv.ParseInt(seg, 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}

func isSelfReference(key string) bool {
	return strings.Contains(key, "profile.php") && !strings.Contains(key, "?id=")
}

// handleFromReference pulls a vanity handle out of a /handle style path.
func handleFromReference(key string) string {
	seg := strings.Trim(key, "/")
	if seg == "" || strings.Contains(seg, "/") || strings.Contains(seg, "profile.php") {
		return ""
	}
	if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
		return ""
	}
	return seg
}
