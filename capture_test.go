package tokay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateCaptures_SilentFallsBackToSubstring(t *testing.T) {
	r := NewMemReaderString("hello")
	v, err := aggregateCaptures(nil, 0, 5, r)
	assert.NoError(t, err)
	assert.Equal(t, NewString("hello"), v)
}

func TestAggregateCaptures_EmptyRangeIsVoid(t *testing.T) {
	r := NewMemReaderString("hello")
	v, err := aggregateCaptures(nil, 2, 2, r)
	assert.NoError(t, err)
	assert.Equal(t, TheVoid, v)
}

func TestAggregateCaptures_SingleStrongValueWins(t *testing.T) {
	r := NewMemReaderString("hello")
	caps := []Capture{
		{Start: 0, End: 2, Severity: 1},
		{Start: 2, End: 5, Severity: 2, Value: Int(42)},
	}
	v, err := aggregateCaptures(caps, 0, 5, r)
	assert.NoError(t, err)
	assert.Equal(t, Int(42), v)
}

func TestAggregateCaptures_MultiplePushesBuildList(t *testing.T) {
	r := NewMemReaderString("hello")
	caps := []Capture{
		{Start: 0, End: 1, Severity: 3, Value: Int(1)},
		{Start: 1, End: 2, Severity: 3, Value: Int(2)},
		{Start: 2, End: 3, Severity: 1},
	}
	v, err := aggregateCaptures(caps, 0, 3, r)
	assert.NoError(t, err)
	list, ok := v.(*List)
	assert.True(t, ok)
	assert.Equal(t, []Value{Int(1), Int(2)}, list.Items)
}

func TestAggregateCaptures_AliasedCapturesBuildDict(t *testing.T) {
	r := NewMemReaderString("hello")
	caps := []Capture{
		{Start: 0, End: 2, Severity: 2, Value: NewString("he"), Alias: "head"},
		{Start: 2, End: 5, Severity: 2, Value: NewString("llo")},
	}
	v, err := aggregateCaptures(caps, 0, 5, r)
	assert.NoError(t, err)
	d, ok := v.(*Dict)
	assert.True(t, ok)
	head, ok := d.Get("head")
	assert.True(t, ok)
	assert.Equal(t, NewString("he"), head)
	auto, ok := d.Get("0")
	assert.True(t, ok)
	assert.Equal(t, NewString("llo"), auto)
}

func TestAggregateCaptures_MultipleStrongWithoutPushFallsBackToSubstring(t *testing.T) {
	r := NewMemReaderString("hello")
	caps := []Capture{
		{Start: 0, End: 2, Severity: 2, Value: Int(1)},
		{Start: 2, End: 5, Severity: 2, Value: Int(2)},
	}
	v, err := aggregateCaptures(caps, 0, 5, r)
	assert.NoError(t, err)
	assert.Equal(t, NewString("hello"), v)
}
