package fileutil

import (
	"path/filepath"
	"regexp"
	"strings"
)

const maxSafeLen = 200

var nonAlphaNumExpr = regexp.MustCompile("[^a-zA-Z0-9_.]+")

// Safe strips everything but [a-zA-Z0-9_.] from filename, then truncates it
// to 200 bytes while keeping the extension
func Safe(filename string) string {
	filename = nonAlphaNumExpr.ReplaceAllString(filename, "")
	if len(filename) <= maxSafeLen {
		return filename
	}
	ext := filepath.Ext(filename)
	if len(ext) >= maxSafeLen {
		return filename[:maxSafeLen]
	}
	return filename[:maxSafeLen-len(ext)] + ext
}

// HasPrefix checks a path has a prefix, making sure to respect path boundaries. So that /aa & /a does not match, but /a/a & /a does.
func HasPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, filepath.Clean(prefix)+string(filepath.Separator))
}
