// Package referencepkg generates human-readable unique references for
// transfers and journal entries, e.g. TRF20240110-X7K2QD.
package referencepkg

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

// ErrExhausted indicates that generation kept colliding with existing references.
var ErrExhausted = errors.New("reference space exhausted")

const (
	alphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	suffixLength = 6
	maxAttempts  = 5
)

// Checker probes a single collection for reference uniqueness. Each entity
// collection supplies its own Checker so generators for unrelated collections
// never contend with each other.
type Checker interface {
	ReferenceUsed(ctx context.Context, reference string) (bool, error)
}

// Generator produces date-stamped references unique within one collection.
type Generator struct {
	checker Checker
	now     func() time.Time
}

// New returns a Generator probing uniqueness through the given Checker.
func New(checker Checker) *Generator {
	return &Generator{
		checker: checker,
		now:     time.Now,
	}
}

// Next returns a fresh reference of the form prefix + YYYYMMDD + "-" + suffix.
// On collision it regenerates the suffix, giving up after a bounded number of
// attempts.
func (g *Generator) Next(ctx context.Context, prefix string) (string, error) {
	stamp := g.now().UTC().Format("20060102")

	for attempt := 0; attempt < maxAttempts; attempt++ {
		reference := prefix + stamp + "-" + suffix()

		used, err := g.checker.ReferenceUsed(ctx, reference)
		if err != nil {
			return "", err
		}

		if !used {
			return reference, nil
		}
	}

	return "", ErrExhausted
}

func suffix() string {
	var sb strings.Builder

	for i := 0; i < suffixLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			panic(err)
		}

		_ = sb.WriteByte(alphabet[n.Int64()]) // The returned err is always nil.
	}

	return sb.String()
}
