package fragmentstore

import (
	"math/rand"
	"strings"
	"time"

	jerrors "github.com/mvtan/jigsaw/internal/errors"
)

// nameAlphabet is the restricted alphanumeric set fragment names are drawn
// from. Visually ambiguous letters are excluded. The draw uses math/rand:
// name randomness obfuscates, it does not protect.
var nameAlphabet = []byte("123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabdeghqrt")

// maxNameAttempts bounds collision retries before the namespace is treated
// as exhausted.
const maxNameAttempts = 10000

// NameGenerator hands out pairwise distinct fragment names for one encode
// run. It is seeded with the names already present in the target stores so
// consecutive runs into the same directory cannot collide either.
type NameGenerator struct {
	length int
	rng    *rand.Rand
	taken  map[string]struct{}
}

// NewNameGenerator creates a generator for names of the given length
// (excluding the extension), with existing names pre-registered.
func NewNameGenerator(length int, existing []string) *NameGenerator {
	g := &NameGenerator{
		length: length,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		taken:  make(map[string]struct{}, len(existing)),
	}
	for _, name := range existing {
		g.taken[name] = struct{}{}
	}
	return g
}

// Next returns a fresh fragment name including the ".jig" extension and
// registers it in the collision set.
func (g *NameGenerator) Next() (string, error) {
	var sb strings.Builder
	sb.Grow(g.length + len(Extension))
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		sb.Reset()
		for i := 0; i < g.length; i++ {
			sb.WriteByte(nameAlphabet[g.rng.Intn(len(nameAlphabet))])
		}
		sb.WriteString(Extension)
		name := sb.String()
		if _, dup := g.taken[name]; dup {
			continue
		}
		g.taken[name] = struct{}{}
		return name, nil
	}
	return "", jerrors.ErrNameSpaceExhausted
}
