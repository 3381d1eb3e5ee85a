package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sjank/fbgrab/internal/extract"
	"github.com/sjank/fbgrab/internal/identity"
)

var profileIDRe = regexp.MustCompile(`"(?:owner_id|entity_id|userID)":"?(\d+)`)

// newHTTPOracle returns an identity oracle that fetches the public profile
// page and scrapes the numeric id out of its markup. Best effort: private
// profiles come back without an id and resolve to not-found.
func newHTTPOracle() identity.Oracle {
	client := &http.Client{Timeout: 15 * time.Second}

	return identity.OracleFunc(func(ctx context.Context, ref string) (int64, error) {
		url := ref
		if strings.HasPrefix(url, "/") {
			url = extract.SiteBase + url
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return 0, err
		}

		m := profileIDRe.FindSubmatch(body)
		if m == nil {
			return 0, fmt.Errorf("no id found for %s", ref)
		}
		return strconv.ParseInt(string(m[1]), 10, 64)
	})
}
