package scraper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// idSeq disambiguates fingerprints when the same URL is submitted within one
// timestamp tick. IDs are therefore unique within a process; cross-process
// uniqueness is not guaranteed.
var idSeq atomic.Uint64

// Fingerprint derives a 12-character task ID from the URL and submission
// time, plus a process-wide sequence number.
func Fingerprint(url string, submittedAt time.Time) string {
	seq := idSeq.Add(1)
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", url, submittedAt.Format(time.RFC3339Nano), seq))
	return hex.EncodeToString(sum[:])[:12]
}
