package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// idSeparator joins the hashed identity parts.
const idSeparator = "||"

// TextKeyLen is the number of runes of prompt/response text that take part
// in an SFT row's identity.
const TextKeyLen = 256

// StableID returns the content hash identifying a row built from parts.
func StableID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, idSeparator)))
	return hex.EncodeToString(sum[:])
}

// Dedup collapses rows sharing an id. A later row replaces an earlier one.
// The result is sorted by (AtMs, ID).
func Dedup(rows []Row) []Row {
	index := make(map[string]int, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	Sort(out)
	return out
}

// Sort orders rows by (AtMs, ID) in place.
func Sort(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AtMs != rows[j].AtMs {
			return rows[i].AtMs < rows[j].AtMs
		}
		return rows[i].ID < rows[j].ID
	})
}

// Records returns the persisted payloads of rows, in order.
func Records(rows []Row) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.Record
	}
	return out
}
