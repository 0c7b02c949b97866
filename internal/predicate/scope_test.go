package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct{ ID string }

func TestRootScope(t *testing.T) {
	s := RootScope[order]("root")
	assert.Equal(t, "root", s.Alias())
	assert.Equal(t, "predicate.order", s.ElementType())
	assert.Equal(t, 0, s.Depth())
	assert.Nil(t, s.Parent())
	assert.NotEmpty(t, s.Binding())
}

func TestScope_ChildIsNewScope(t *testing.T) {
	root := NewScope("root", "parent")
	child := root.Child("child", ItemElementType)

	assert.Same(t, root, child.Parent())
	assert.Equal(t, 1, child.Depth())
	assert.Equal(t, "root", root.Alias(), "parent is untouched")
	assert.NotEqual(t, root.Binding(), child.Binding())
}

func TestScope_Find(t *testing.T) {
	root := NewScope("root", "parent")
	child := root.Child("child", ItemElementType)
	shadow := child.Child("root", ItemElementType)

	t.Run("nearest wins", func(t *testing.T) {
		s, ok := shadow.Find("root")
		require.True(t, ok)
		assert.Same(t, shadow, s)
	})

	t.Run("ancestor", func(t *testing.T) {
		s, ok := shadow.Find("child")
		require.True(t, ok)
		assert.Same(t, child, s)
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok := shadow.Find("missing")
		assert.False(t, ok)
	})

	assert.Equal(t, []string{"root", "child", "root"}, shadow.Aliases())
}

func TestScope_ShadowedBindingsAreDistinct(t *testing.T) {
	outer := NewScope("x", "a")
	inner := outer.Child("x", "b")
	assert.NotEqual(t, outer.Binding(), inner.Binding())
}

func TestEnv_BindDoesNotLeak(t *testing.T) {
	root := NewScope("root", "parent")
	child := root.Child("child", ItemElementType)

	base := NewEnv(root, "p")
	a := base.Bind(child, "a")
	b := base.Bind(child, "b")

	v, ok := a.Item(child)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = b.Item(child)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = base.Item(child)
	assert.False(t, ok, "binding a child never changes the parent env")

	v, ok = a.Item(root)
	require.True(t, ok)
	assert.Equal(t, "p", v)
	assert.Equal(t, "a", a.Current())
}

func TestEnv_Bindings(t *testing.T) {
	root := NewScope("root", "parent")
	child := root.Child("child", ItemElementType)
	shadow := child.Child("root", ItemElementType)

	env := NewEnv(root, 1).Bind(child, 2).Bind(shadow, 3)
	assert.Equal(t, map[string]any{"root": 3, "child": 2}, env.Bindings())

	var empty *Env
	assert.Nil(t, empty.Current())
	assert.Empty(t, empty.Bindings())
}
