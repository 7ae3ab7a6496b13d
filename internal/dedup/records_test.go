package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordSetRoundTrip(t *testing.T) {
	var r RecordSet
	for _, k := range []string{"a", "b", "c"} {
		r.Append(k)
	}

	reloaded := ParseRecordSet(r.String())

	assert.Equal(t, "a,b,c", r.String())
	assert.Equal(t, []string{"a", "b", "c"}, reloaded.Keys())
}

func TestParseRecordSetEmpty(t *testing.T) {
	r := ParseRecordSet("")
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Contains(""))
}

func TestRecordSetAppendIgnoresDuplicates(t *testing.T) {
	r := ParseRecordSet("42")
	assert.False(t, r.Append("42"))
	assert.True(t, r.Append("7"))
	assert.Equal(t, []string{"42", "7"}, r.Keys())
}

func TestRecordSetKeysIsCopy(t *testing.T) {
	r := ParseRecordSet("x")
	keys := r.Keys()
	keys[0] = "y"
	assert.True(t, r.Contains("x"))
}
