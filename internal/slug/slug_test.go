package slug

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type setChecker struct {
	taken map[string]bool
	calls int
	err   error
}

func (s *setChecker) SlugExists(_ context.Context, slug string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.taken[slug], nil
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello-world"},
		{"  Go   1.26 -- release notes ", "go-1-26-release-notes"},
		{"already-a-slug", "already-a-slug"},
		{"---Edge___Case---", "edge-case"},
		{"Ünïcödé Title", "n-c-d-title"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.True(t, Valid(got), "normalized %q should be a valid slug", got)
			}
		})
	}
}

func TestAssign_Suffixing(t *testing.T) {
	ctx := context.Background()

	t.Run("free base is returned as is", func(t *testing.T) {
		a := NewAssigner(&setChecker{taken: map[string]bool{}})
		got, err := a.Assign(ctx, "Hello, World!")
		require.NoError(t, err)
		assert.Equal(t, "hello-world", got)
	})

	t.Run("second post with same title gets -1", func(t *testing.T) {
		a := NewAssigner(&setChecker{taken: map[string]bool{"hello-world": true}})
		got, err := a.Assign(ctx, "Hello, World!")
		require.NoError(t, err)
		assert.Equal(t, "hello-world-1", got)
	})

	t.Run("k existing posts yields -k", func(t *testing.T) {
		taken := map[string]bool{"x": true}
		for i := 1; i < 5; i++ {
			taken["x-"+string(rune('0'+i))] = true
		}
		a := NewAssigner(&setChecker{taken: taken})
		got, err := a.Assign(ctx, "X")
		require.NoError(t, err)
		assert.Equal(t, "x-5", got)
	})
}

func TestAssign_EmptyBaseFallsBack(t *testing.T) {
	a := NewAssigner(&setChecker{taken: map[string]bool{}})
	got, err := a.Assign(context.Background(), "!!!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "post-"))
	assert.Len(t, got, len("post-")+8)
	assert.True(t, Valid(got))
}

func TestAssign_BoundedSearch(t *testing.T) {
	checker := &allTaken{}
	a := NewAssigner(checker)
	got, err := a.Assign(context.Background(), "popular")
	require.NoError(t, err)
	assert.Equal(t, MaxCandidates, checker.calls)
	assert.True(t, strings.HasPrefix(got, "popular-"))
	assert.True(t, Valid(got))
}

func TestAssign_StoreError(t *testing.T) {
	boom := errors.New("store unavailable")
	a := NewAssigner(&setChecker{err: boom})
	_, err := a.Assign(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

type allTaken struct{ calls int }

func (a *allTaken) SlugExists(context.Context, string) (bool, error) {
	a.calls++
	return true, nil
}
