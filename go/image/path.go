package image

import (
	"path"
	"strings"
)

// NormalizePath maps DOS and ISO9660 spellings of a member path onto one key:
// "SYSTEM\\USER.EXE;1" becomes "/SYSTEM/USER.EXE".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if j := strings.LastIndexByte(part, ';'); j >= 0 {
			part = part[:j]
		}
		if part != "." && part != ".." {
			part = strings.TrimSuffix(part, ".")
		}
		parts[i] = part
	}
	return path.Clean("/" + strings.Join(parts, "/"))
}
