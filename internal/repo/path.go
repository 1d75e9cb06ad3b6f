package repo

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Root is the path of the repository root node.
const Root = "/"

// CleanPath returns the canonical form of p: NFC-normalised, absolute and
// free of empty, "." and ".." segments. Two paths address the same item
// exactly when their clean forms are equal.
func CleanPath(p string) string {
	p = norm.NFC.String(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Split separates a clean path into its parent path and final segment.
// ok is false for the root, which has no parent.
func Split(p string) (parent, name string, ok bool) {
	p = CleanPath(p)
	if p == Root {
		return "", "", false
	}
	i := strings.LastIndex(p, "/")
	parent = p[:i]
	if parent == "" {
		parent = Root
	}
	return parent, p[i+1:], true
}

// Join appends name to a node path.
func Join(parent, name string) string {
	if parent == Root || parent == "" {
		return CleanPath("/" + name)
	}
	return CleanPath(parent + "/" + name)
}

// IsBelow reports whether p equals prefix or lies beneath it.
func IsBelow(p, prefix string) bool {
	p, prefix = CleanPath(p), CleanPath(prefix)
	if prefix == Root {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
