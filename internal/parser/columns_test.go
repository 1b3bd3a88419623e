package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLetterToNumber(t *testing.T) {
	t.Parallel()

	cases := map[string]int{"A": 1, "Z": 26, "AA": 27, "AZ": 52, "BA": 53, "ZZ": 702, "AAA": 703, "XFD": 16384, "d": 4}
	for col, want := range cases {
		got, err := LetterToNumber(col)
		require.NoError(t, err, col)
		assert.Equal(t, want, got, col)
	}

	for _, bad := range []string{"", "A1", "下", "-"} {
		_, err := LetterToNumber(bad)
		assert.Error(t, err, bad)
	}
}

func TestColumnRoundTrip(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 20000; n++ {
		col := NumberToLetter(n)
		got, err := LetterToNumber(col)
		if err != nil || got != n {
			t.Fatalf("round trip %d -> %s -> %d (%v)", n, col, got, err)
		}
		if NumberToLetter(got) != col {
			t.Fatalf("round trip %s failed", col)
		}
	}
	assert.Equal(t, "", NumberToLetter(0))
}

func TestOffsetColumn(t *testing.T) {
	t.Parallel()

	got, err := OffsetColumn("Z", 1)
	require.NoError(t, err)
	assert.Equal(t, "AA", got)

	_, err = OffsetColumn("A", -1)
	assert.Error(t, err)
}

func TestBuildColumnMap_Standard(t *testing.T) {
	t.Parallel()

	m, err := BuildColumnMap(48, 49, "C", "D")
	require.NoError(t, err)
	require.Len(t, m, 10)

	assert.Equal(t, ColumnField{Field: "total_qty", Column: "C"}, m[0])
	wantFields := []string{
		"total_qty",
		"target_48", "actual_48", "diff_48", "target_48_pct", "actual_48_pct",
		"target_49", "actual_49", "target_49_pct", "actual_49_pct",
	}
	assert.Equal(t, wantFields, m.Fields())

	var cols []string
	for _, f := range m[1:] {
		cols = append(cols, f.Column)
	}
	assert.Equal(t, []string{"D", "E", "F", "G", "H", "I", "J", "K", "L"}, cols)
}

func TestBuildColumnMap_Detail(t *testing.T) {
	t.Parallel()

	m, err := BuildColumnMap(1, 2, "p", "Q")
	require.NoError(t, err)

	col, ok := m.Column("total_qty")
	require.True(t, ok)
	assert.Equal(t, "P", col)

	col, ok = m.Column("actual_2_pct")
	require.True(t, ok)
	assert.Equal(t, "Y", col)

	_, ok = m.Column("missing")
	assert.False(t, ok)
}

func TestBuildColumnMap_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := BuildColumnMap(10, 11, "C", "D")
	require.NoError(t, err)
	b, err := BuildColumnMap(10, 11, "C", "D")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = BuildColumnMap(10, 11, "C", "1")
	assert.Error(t, err)
}
