package dedup

import "strings"

const recordSeparator = ","

// RecordSet is the ordered, append-only list of keys a user already acted on.
type RecordSet struct {
	keys []string
}

// ParseRecordSet rebuilds a record set from its comma-joined storage form.
// An empty string yields an empty set.
func ParseRecordSet(raw string) RecordSet {
	if raw == "" {
		return RecordSet{}
	}
	return RecordSet{keys: strings.Split(raw, recordSeparator)}
}

func (r RecordSet) Contains(key string) bool {
	for _, k := range r.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Append adds key to the end of the set. Keys already present are ignored.
func (r *RecordSet) Append(key string) bool {
	if r.Contains(key) {
		return false
	}
	r.keys = append(r.keys, key)
	return true
}

func (r RecordSet) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r RecordSet) Len() int { return len(r.keys) }

// String returns the storage form of the set.
func (r RecordSet) String() string {
	return strings.Join(r.keys, recordSeparator)
}
