package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opfilter/pkg/schema"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		raw      string
		anchor   Anchor
		alias    string
		segments []string
	}{
		{"#", AnchorCurrent, "", nil},
		{"#/value", AnchorCurrent, "", []string{"value"}},
		{"#/a/b/0", AnchorCurrent, "", []string{"a", "b", "0"}},
		{"#parent", AnchorAlias, "parent", nil},
		{"#parent/children", AnchorAlias, "parent", []string{"children"}},
		{"/order/lines", AnchorRoot, "", []string{"order", "lines"}},
		{"#/a~1b/c~0d", AnchorCurrent, "", []string{"a/b", "c~d"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := ParsePath(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, p.Raw)
			assert.Equal(t, tt.anchor, p.Anchor)
			assert.Equal(t, tt.alias, p.Alias)
			if len(tt.segments) == 0 {
				assert.Empty(t, p.Segments)
			} else {
				assert.Equal(t, tt.segments, p.Segments)
			}
		})
	}
}

func TestParsePath_SyntaxErrors(t *testing.T) {
	for _, raw := range []string{"", "value", "a/b", "#1bad/x", "#bad-alias", "#/a~2", "#/trailing~"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParsePath(raw)
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodePathSyntax), "got %v", err)

			var fe *schema.FilterError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, raw, fe.Path)
		})
	}
}

func TestPath_IsRelative(t *testing.T) {
	assert.True(t, MustParsePath("#/a").IsRelative())
	assert.True(t, MustParsePath("#item/a").IsRelative())
	assert.False(t, MustParsePath("/a").IsRelative())
}

func TestMustParsePath_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParsePath("nope") })
}
