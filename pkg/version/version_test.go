package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		named   bool
		wantErr bool
	}{
		{"1.9.1", false, false},
		{"0.2.1", false, false},
		{"1.9", false, false},
		{"master", true, false},
		{"develop", true, false},
		{"", false, true},
		{"1.x.y", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.named, v.IsNamed())
			assert.Equal(t, tt.input, v.String())
		})
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.9.1", "1.9.1", 0},
		{"1.9", "1.9.0", 0},
		{"1.9.1", "1.10.0", -1},
		{"4.1.0", "3.6.1", 1},
		{"master", "4.1.0", 1},  // branches are newest
		{"1.9.1", "master", -1},
		{"develop", "master", -1}, // named versions order lexically
		{"master", "master", 0},
	}

	for _, tt := range tests {
		got := MustParse(tt.a).Compare(MustParse(tt.b))
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}
}

func TestVersionEqual(t *testing.T) {
	assert.True(t, MustParse("1.9").Equal(MustParse("1.9.0")))
	assert.False(t, MustParse("master").Equal(MustParse("1.9.0")))
	assert.True(t, MustParse("master").Equal(MustParse("master")))
}

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		admits     bool
	}{
		{"", "1.9.1", true},
		{":", "0.1.0", true},
		{"1.9.1:", "1.9.1", true},
		{"1.9.1:", "2.0.0", true},
		{"1.9.1:", "1.9.0", false},
		{":1.9", "1.9.0", true},
		{":1.9", "1.10.0", false},
		{"1.2:1.9", "1.5.0", true},
		{"1.2:1.9", "1.1.0", false},
		{"1.2:1.9", "2.0.0", false},
		{"0.1.0", "0.1.0", true},
		{"0.1.0", "0.1.1", false},
		{"master", "master", true},
		{"master", "develop", false},
		// Ranges never admit named versions.
		{"1.9.1:", "master", false},
		{":", "master", true},
	}

	for _, tt := range tests {
		t.Run(tt.constraint+"/"+tt.version, func(t *testing.T) {
			c, err := ParseConstraint(tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.admits, c.Admits(MustParse(tt.version)))
		})
	}
}

func TestConstraintPartialBounds(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		admits     bool
	}{
		// Bounds zero-fill missing segments: ":1.9" is "<= 1.9.0".
		{":1.9", "1.9.0", true},
		{":1.9", "1.9.1", false},
		{":1.9", "1.8.4", true},
		{"1.9:", "1.9.0", true},
		{"1.9:", "1.8.4", false},
		{"1.2:1.9", "1.9.0", true},
		{"1.2:1.9", "1.9.1", false},
		{"1.2:1.9", "1.2.0", true},
		{"1.2:1.9", "1.1.9", false},
		// Exact partials too: "1.9" admits only 1.9.0.
		{"1.9", "1.9.0", true},
		{"1.9", "1.9.1", false},
		{"2", "2.0.0", true},
		{"2", "2.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.constraint+"/"+tt.version, func(t *testing.T) {
			c, err := ParseConstraint(tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.admits, c.Admits(MustParse(tt.version)))
		})
	}
}

func TestParseConstraintErrors(t *testing.T) {
	for _, bad := range []string{"1.2:1.5:1.9", "master:", ":master", "1.x:"} {
		_, err := ParseConstraint(bad)
		assert.Error(t, err, "constraint %q", bad)
	}
}

func TestConstraintAnd(t *testing.T) {
	atLeast := MustParseConstraint("1.2:")
	atMost := MustParseConstraint(":1.9")
	both := atLeast.And(atMost)

	assert.True(t, both.Admits(MustParse("1.5.0")))
	assert.False(t, both.Admits(MustParse("1.1.0")))
	assert.False(t, both.Admits(MustParse("2.0.0")))

	// Any is the identity element.
	assert.Equal(t, atLeast.String(), Any().And(atLeast).String())
	assert.Equal(t, atLeast.String(), atLeast.And(Any()).String())
}

func TestConstraintFilter(t *testing.T) {
	vs := []Version{MustParse("2.0.0"), MustParse("1.9.1"), MustParse("1.2.0")}
	got := MustParseConstraint("1.9:").Filter(vs)

	require.Len(t, got, 2)
	assert.Equal(t, "2.0.0", got[0].String())
	assert.Equal(t, "1.9.1", got[1].String())
}

func TestConstraintString(t *testing.T) {
	assert.Equal(t, ":", Any().String())
	assert.Equal(t, "1.9.1:", MustParseConstraint("1.9.1:").String())
	assert.Equal(t, "1.2:,:1.9", MustParseConstraint("1.2:").And(MustParseConstraint(":1.9")).String())
}
