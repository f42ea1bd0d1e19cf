// ABOUTME: Remote photo file naming: identifier plus generation timestamp
// ABOUTME: Ordered strip rules recover identifiers from current and legacy names
package images

import (
	"path"
	"regexp"
	"time"
)

// TimestampLayout is the generation timestamp embedded in file names (yymmddhhmmss).
const TimestampLayout = "060102150405"

// stripRules recover the identifier from a remote file name; the first
// matching rule wins.
var stripRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.+)_\d{12}\.jpe?g$`), // uid_190106123906.jpg
	regexp.MustCompile(`(?i)^(.+)\.jpe?g$`),        // legacy uid.jpg
}

// Filename returns the remote file name for an identifier and generation time.
func Filename(uid string, generated time.Time) string {
	return uid + "_" + generated.Format(TimestampLayout) + ".jpg"
}

// UIDFromFilename extracts the identifier from a remote file name.
func UIDFromFilename(name string) (string, bool) {
	name = path.Base(name)
	for _, rule := range stripRules {
		if m := rule.FindStringSubmatch(name); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// RemoteIndex maps identifiers to their current remote file name.
func RemoteIndex(names []string) map[string]string {
	index := make(map[string]string, len(names))
	for _, name := range names {
		if uid, ok := UIDFromFilename(name); ok {
			index[uid] = path.Base(name)
		}
	}
	return index
}
