package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opfilter/pkg/schema"
)

func evalCEL(t *testing.T, expression string, vars Vars) (any, error) {
	t.Helper()
	e, err := NewCELEngine()
	require.NoError(t, err)
	prg, err := e.Compile(expression)
	require.NoError(t, err)
	return prg.Eval(context.Background(), vars)
}

func TestNewCELEngine(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.NotNil(t, e)
	assert.Equal(t, "cel", e.Name())
}

// --- Basic evaluation ---

func TestCEL_BooleanLiteral(t *testing.T) {
	out, err := evalCEL(t, "true", Vars{})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_IntegerArithmetic(t *testing.T) {
	out, err := evalCEL(t, "1 + 2", Vars{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out)
}

// --- Variables ---

func TestCEL_ItemAccess(t *testing.T) {
	vars := Vars{Item: map[string]any{"value": int64(5), "name": "flap"}}

	t.Run("numeric comparison", func(t *testing.T) {
		out, err := evalCEL(t, `item.value > 3`, vars)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})

	t.Run("numeric comparison false", func(t *testing.T) {
		out, err := evalCEL(t, `item.value > 10`, vars)
		require.NoError(t, err)
		assert.Equal(t, false, out)
	})

	t.Run("string function", func(t *testing.T) {
		out, err := evalCEL(t, `item.name.contains("ap")`, vars)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})
}

func TestCEL_ScopeAccess(t *testing.T) {
	vars := Vars{
		Item: map[string]any{"value": int64(4)},
		Scope: map[string]any{
			"root":  map[string]any{"limit": int64(3)},
			"child": map[string]any{"value": int64(4)},
		},
	}
	out, err := evalCEL(t, `scope.child.value > scope.root.limit`, vars)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_ContextAccess(t *testing.T) {
	vars := Vars{
		Item:    map[string]any{"tags": []any{"a", "b"}},
		Context: map[string]any{"wanted": "b"},
	}
	out, err := evalCEL(t, `context.wanted in item.tags`, vars)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_HasMissingField(t *testing.T) {
	out, err := evalCEL(t, `has(item.missing)`, Vars{Item: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

// --- Errors ---

func TestCEL_EmptyExpression(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Compile("")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestCEL_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Compile(`invalid >>>`)
	require.Error(t, err)

	var fe *schema.FilterError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
	assert.Contains(t, fe.Message, "compile")
	assert.Contains(t, fe.Details, "expression")
}

func TestCEL_Sandbox_UndeclaredVariable(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Compile(`os.env["HOME"] == ""`)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestCEL_RuntimeError_MissingField(t *testing.T) {
	_, err := evalCEL(t, `item.nonexistent > 0`, Vars{Item: map[string]any{}})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValueResolution))
}

func TestCEL_CancelledContext(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	prg, err := e.Compile(`true`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = prg.Eval(ctx, Vars{})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeCancelled))
}

// --- Concurrency ---

func TestCEL_ProgramConcurrentEval(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	prg, err := e.Compile(`item.n % 2 == 0`)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]any, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := prg.Eval(context.Background(), Vars{Item: map[string]any{"n": int64(i)}})
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()

	for i, out := range results {
		assert.Equal(t, i%2 == 0, out, "item %d", i)
	}
}
