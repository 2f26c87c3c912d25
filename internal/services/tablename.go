package services

import (
	"path"
	"strings"
	"unicode"

	"github.com/vvka-141/pgstitch/internal/files/filesystem"
)

// DefaultTableName derives a table name from an input path: the base name
// without compression and data extensions, lower-cased, with every run of
// characters outside [a-z0-9_] collapsed to one underscore. Names that would
// start with a digit get a "t_" prefix.
func DefaultTableName(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	base = filesystem.StripCompressionExt(base)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}

	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(base) {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(r)
			underscore = r == '_'
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	name := strings.Trim(b.String(), "_")
	switch {
	case name == "":
		return "imported"
	case name[0] >= '0' && name[0] <= '9':
		return "t_" + name
	}
	return name
}
