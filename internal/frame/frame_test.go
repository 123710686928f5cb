package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Frame {
	f := New("id", "name")
	f.Append(int64(1), "a")
	f.Append(int64(2), nil)
	f.Append(int64(3))
	return f
}

func TestFrame_Basics(t *testing.T) {
	f := sample()
	assert.Equal(t, 3, f.Count())
	assert.True(t, f.HasColumn("name"))
	assert.False(t, f.HasColumn("missing"))

	names, err := f.Column("name")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", nil, nil}, names)

	_, err = f.Column("missing")
	assert.Error(t, err)

	var nilFrame *Frame
	assert.Equal(t, 0, nilFrame.Count())
}

func TestFrame_HeadAndFilter(t *testing.T) {
	f := sample()
	assert.Equal(t, 2, f.Head(2).Count())
	assert.Equal(t, 3, f.Head(10).Count())
	assert.Equal(t, 3, f.Limit(-1).Count())

	odd := f.Filter(func(r Record) bool { return r["id"].(int64)%2 == 1 })
	assert.Equal(t, 2, odd.Count())
	assert.Equal(t, []string{"id", "name"}, odd.Columns)
}

func TestFrame_RecordsRoundTrip(t *testing.T) {
	f := sample()
	rebuilt := FromRecords(f.Columns, f.Records())
	assert.Equal(t, f.Rows, rebuilt.Rows)
}

func TestFrame_Format(t *testing.T) {
	out := sample().Format(2)
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "null")
	assert.NotContains(t, out, "3")
}
