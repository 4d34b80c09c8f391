package access

import (
	"path"
	"strings"
	"time"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/ident"
)

// Storage keys are date-partitioned: yyyy/mm/dd/<shareId>/<filename>.
// The date prefix keeps bucket listings bounded; the shareId segment
// lets the scan pipeline recover the record from a bare object key.

// StorageKey builds the object key for a new upload.
func StorageKey(now time.Time, shareID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return now.UTC().Format("2006/01/02") + "/" + shareID + "/" + base
}

// SharePrefix returns the prefix covering every object of the share the
// key belongs to.
func SharePrefix(storageKey string) string {
	return path.Dir(storageKey) + "/"
}

// ShareIDFromKey recovers the share ID embedded in an object key. The
// second return value is false when the key does not follow the layout;
// callers drop such events silently.
func ShareIDFromKey(key string) (string, bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 5 {
		return "", false
	}
	id := parts[3]
	if !ident.ValidShareID(id) {
		return "", false
	}
	return id, true
}
