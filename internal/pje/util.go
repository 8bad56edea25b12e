package pje

import (
	"fmt"
	"regexp"
)

var invalidPathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// PageCount returns how many pages a result set of the given size spans.
// It never returns less than 1.
func PageCount(total, pageSize int) int {
	if pageSize < 1 || total < 1 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// snapshotPath builds the content-addressed blob path under which a raw
// result page is archived.
func snapshotPath(q SearchQuery, digest string) string {
	bar := invalidPathChars.ReplaceAllString(q.BarNumber, "_")
	return fmt.Sprintf("snapshots/%s/%s/%s.html", q.StateCode, bar, digest)
}
