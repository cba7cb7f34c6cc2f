package render

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/goliatone/go-pages/domain"
)

// computeETag fingerprints a page definition plus a time-derived salt. The
// salt format controls how long a validator stays stable: "2006-01-02"
// rotates every state daily, an empty format never rotates.
func computeETag(page *domain.Page, saltFormat string, now time.Time) string {
	canonical, err := json.Marshal(page)
	if err != nil {
		// Page definitions round-trip through JSON stores, a marshal
		// failure here means a corrupt definition. Degrade to no caching.
		return ""
	}
	salt := ""
	if saltFormat != "" {
		salt = now.UTC().Format(saltFormat)
	}
	sum := sha256.Sum256(append(canonical, salt...))
	return hex.EncodeToString(sum[:])
}

// lastModified resolves the page's validator timestamp, falling back to the
// current time when the definition carries none. The fallback means pages
// without a timestamp always look freshly modified.
func lastModified(page *domain.Page, now time.Time) string {
	ts := now
	if page.LastModified != nil {
		ts = *page.LastModified
	}
	return ts.UTC().Format(time.RFC3339)
}
