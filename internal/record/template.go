package record

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultRootMarkers are the path components that mark the root of a
// deployed template tree. The template name is everything after the first
// slash following the marker.
var DefaultRootMarkers = []string{"-deploy"}

// PathNormalizer reduces a compiled template's file name to the name relative
// to its deployment or checkout root, so the same template hashes identically
// across hosts and releases.
type PathNormalizer struct {
	// RootMarkers are tried in order. An empty list means DefaultRootMarkers.
	RootMarkers []string
}

// TemplateName returns the root-relative template name for fileName and
// whether a root was found. Names starting with "./" are taken relative to
// the working directory. When no root is found the NFC-normalized input is
// returned unchanged.
func (p PathNormalizer) TemplateName(fileName string) (string, bool) {
	fileName = norm.NFC.String(fileName)

	markers := p.RootMarkers
	if len(markers) == 0 {
		markers = DefaultRootMarkers
	}
	for _, m := range markers {
		if m == "" {
			continue
		}
		i := strings.Index(fileName, m)
		if i < 0 {
			continue
		}
		rest := fileName[i+len(m):]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			return rest[slash+1:], true
		}
	}

	if strings.HasPrefix(fileName, "./") {
		return fileName[2:], true
	}
	return fileName, false
}

// Hash returns the template identity hash for fileName.
func (p PathNormalizer) Hash(fileName string) uint32 {
	name, _ := p.TemplateName(fileName)
	return HashString(name)
}

// HashString is the 32-bit multiplicative string hash used for template
// identity: h = h*37 + b over the bytes of s.
func HashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*37 + uint32(s[i])
	}
	return h
}

// TemplateHash hashes fileName with the default normalizer.
func TemplateHash(fileName string) uint32 {
	return PathNormalizer{}.Hash(fileName)
}
