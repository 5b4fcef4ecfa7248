package fragmentstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/mvtan/jigsaw/internal/errors"
)

func TestNameGeneratorShape(t *testing.T) {
	gen := NewNameGenerator(30, nil)

	name, err := gen.Next()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(name, Extension))
	base := strings.TrimSuffix(name, Extension)
	assert.Len(t, base, 30)
	for _, c := range []byte(base) {
		assert.Contains(t, string(nameAlphabet), string(c))
	}
}

func TestNameGeneratorUniqueness(t *testing.T) {
	gen := NewNameGenerator(8, nil)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		name, err := gen.Next()
		require.NoError(t, err)
		_, dup := seen[name]
		require.False(t, dup, "duplicate name %s", name)
		seen[name] = struct{}{}
	}
}

func TestNameGeneratorAvoidsExisting(t *testing.T) {
	// Occupy all but one single-character name, so the generator has exactly
	// one name left to hand out.
	var existing []string
	for _, c := range nameAlphabet[1:] {
		existing = append(existing, string(c)+Extension)
	}

	gen := NewNameGenerator(1, existing)
	name, err := gen.Next()
	require.NoError(t, err)
	assert.Equal(t, string(nameAlphabet[0])+Extension, name)
}

func TestNameGeneratorExhaustion(t *testing.T) {
	var existing []string
	for _, c := range nameAlphabet {
		existing = append(existing, string(c)+Extension)
	}

	gen := NewNameGenerator(1, existing)
	_, err := gen.Next()
	assert.ErrorIs(t, err, jerrors.ErrNameSpaceExhausted)
}
