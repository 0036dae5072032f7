package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := New(CodeNotFound, "entity not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped chain is searched", func(t *testing.T) {
		inner := New(CodeConflict, "already owned")
		outer := Wrap(inner, CodeStorage, "tx failed")
		assert.True(t, HasCode(outer, CodeStorage))
		assert.True(t, HasCode(outer, CodeConflict))
	})

	t.Run("fmt wrapping preserves the code", func(t *testing.T) {
		err := fmt.Errorf("handling request: %w", New(CodeForbidden, "nope"))
		assert.True(t, HasCode(err, CodeForbidden))
	})

	t.Run("nil and uncoded errors carry nothing", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeStorage, "ignored"))
	})

	t.Run("chain survives for errors.Is", func(t *testing.T) {
		sentinel := errors.New("boom")
		err := Wrap(sentinel, CodeStorage, "storage failed")
		assert.ErrorIs(t, err, sentinel)
	})
}

func TestCodeOfAndMessageOf(t *testing.T) {
	t.Run("outermost code wins", func(t *testing.T) {
		err := Wrap(New(CodeConflict, "inner"), CodeStorage, "outer")
		assert.Equal(t, CodeStorage, CodeOf(err))
		assert.Equal(t, "outer", MessageOf(err))
	})

	t.Run("uncoded errors fall back to internal", func(t *testing.T) {
		err := errors.New("plain")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.Equal(t, "internal error", MessageOf(err))
	})
}

func TestErrorString(t *testing.T) {
	require.Equal(t, "not_found: entity not found", New(CodeNotFound, "entity not found").Error())

	wrapped := Wrap(errors.New("row missing"), CodeNotFound, "entity not found")
	assert.Equal(t, "not_found: entity not found: row missing", wrapped.Error())
}
