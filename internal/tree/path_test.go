package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timetravel/internal/ir"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		input   string
		want    Path
		wantErr bool
	}{
		{"", Path{}, false},
		{"/", Path{}, false},
		{"/todos", Path{"todos"}, false},
		{"/todos/0/title", Path{"todos", "0", "title"}, false},
		{"/a~1b/c~0d", Path{"a/b", "c~d"}, false},
		{"todos", nil, true},
		{"/todos//x", nil, true},
		{"/todos/", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePath(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidPath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathStringRoundTrip(t *testing.T) {
	for _, s := range []string{"/", "/todos", "/todos/0/title", "/a~1b/c~0d"} {
		assert.Equal(t, s, MustParsePath(s).String())
	}
}

func TestPathJoin(t *testing.T) {
	base := MustParsePath("/todos")
	joined := base.Join(Path{"0", "title"})

	assert.Equal(t, "/todos/0/title", joined.String())
	assert.Equal(t, "/todos", base.String(), "Join must not modify the receiver")
	assert.True(t, Path{}.IsRoot())
	assert.False(t, base.IsRoot())
}

func TestArrayIndex(t *testing.T) {
	tests := []struct {
		seg         string
		n           int
		allowAppend bool
		want        int
		wantErr     error
	}{
		{"0", 2, false, 0, nil},
		{"1", 2, false, 1, nil},
		{"2", 2, false, 0, ErrPathNotFound},
		{"2", 2, true, 2, nil},
		{"-1", 2, false, 0, ErrInvalidPath},
		{"01", 2, false, 0, ErrInvalidPath},
		{"x", 2, false, 0, ErrInvalidPath},
	}

	for _, tt := range tests {
		got, err := arrayIndex(tt.seg, tt.n, tt.allowAppend)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "segment %q", tt.seg)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestLookup(t *testing.T) {
	root := ir.IRObject{"todos": ir.IRArray{ir.IRString("milk")}}

	v, err := Lookup(root, "/todos/0")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("milk"), v)

	v, err = Lookup(root, "")
	require.NoError(t, err)
	assert.True(t, ir.Equal(root, v))

	_, err = Lookup(root, "/todos/1")
	assert.ErrorIs(t, err, ErrPathNotFound)
}
