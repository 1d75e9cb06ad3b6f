package sequencer

import "github.com/roach88/sequencer/internal/repo"

// Classify decides which kind, if any, a change to property on container
// triggers. Kinds are tried in fixed priority order and the first match
// wins. A repository error inside a predicate counts as "no match" for that
// predicate only.
func Classify(container repo.Node, property string) (Kind, bool) {
	if container == nil {
		return 0, false
	}
	for _, k := range classificationOrder {
		s := kindSpecs[k]
		ok, err := s.matches(container, property)
		if err != nil || !ok {
			continue
		}
		return k, true
	}
	return 0, false
}
