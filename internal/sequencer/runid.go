package sequencer

import (
	"fmt"
	"strconv"
	"strings"
)

// RunID derives the identifier of a derivation run from the token of the
// batch that triggered it, the run's kind and its source property path.
//
// Format: token "-" kind "-" path "#" len(token)
//
// The token is always a prefix, so a listener whose id prefixes the token
// also prefixes every RunID descending from it. The trailing length makes
// the encoding decodable (and therefore injective) even when the token or
// path contain the separators.
func RunID(token string, kind Kind, sourcePath string) string {
	var b strings.Builder
	b.Grow(len(token) + len(sourcePath) + 16)
	b.WriteString(token)
	b.WriteByte('-')
	b.WriteString(kind.String())
	b.WriteByte('-')
	b.WriteString(sourcePath)
	b.WriteByte('#')
	b.WriteString(strconv.Itoa(len(token)))
	return b.String()
}

// ParseRunID reverses RunID.
func ParseRunID(id string) (token string, kind Kind, sourcePath string, err error) {
	hash := strings.LastIndexByte(id, '#')
	if hash < 0 {
		return "", 0, "", fmt.Errorf("run id %q: missing token length", id)
	}
	n, err := strconv.Atoi(id[hash+1:])
	if err != nil || n < 0 || n >= hash || id[n] != '-' {
		return "", 0, "", fmt.Errorf("run id %q: bad token length", id)
	}

	kindName, sourcePath, ok := strings.Cut(id[n+1:hash], "-")
	if !ok {
		return "", 0, "", fmt.Errorf("run id %q: missing kind", id)
	}
	kind, err = ParseKind(kindName)
	if err != nil {
		return "", 0, "", fmt.Errorf("run id %q: %w", id, err)
	}
	return id[:n], kind, sourcePath, nil
}
