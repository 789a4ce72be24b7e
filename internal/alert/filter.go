package alert

// Query selects alerts by metadata. Values within one dimension are OR'ed;
// dimensions with at least one value are AND'ed. The zero Query matches
// every alert.
type Query struct {
	Tags       []string
	Sources    []string
	Sessions   []string
	Kinds      []string
	DedupeKeys []string
}

// Empty reports whether q has no constraints.
func (q Query) Empty() bool {
	return len(q.Tags) == 0 && len(q.Sources) == 0 && len(q.Sessions) == 0 &&
		len(q.Kinds) == 0 && len(q.DedupeKeys) == 0
}

// Matches evaluates q against a. It never fails; an alert lacking a field
// simply fails that dimension when the dimension is constrained.
func (q Query) Matches(a Alert) bool {
	if len(q.Tags) > 0 && !intersects(q.Tags, a.Tags) {
		return false
	}
	if len(q.Sources) > 0 && !contains(q.Sources, a.Source) {
		return false
	}
	if len(q.Sessions) > 0 && !contains(q.Sessions, a.Session) {
		return false
	}
	if len(q.Kinds) > 0 && !contains(q.Kinds, a.Kind) {
		return false
	}
	if len(q.DedupeKeys) > 0 && !contains(q.DedupeKeys, a.DedupeKey) {
		return false
	}
	return true
}

// contains treats the empty value as absent so that "--source ''" does not
// match alerts without a source.
func contains(candidates []string, v string) bool {
	if v == "" {
		return false
	}
	for _, c := range candidates {
		if c == v {
			return true
		}
	}
	return false
}

func intersects(candidates, values []string) bool {
	for _, v := range values {
		if contains(candidates, v) {
			return true
		}
	}
	return false
}
