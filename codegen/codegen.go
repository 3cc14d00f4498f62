// Package codegen is the short-code generator: a configured alphabet, a
// single entry point that returns one fresh candidate per call, and no
// uniqueness bookkeeping of its own — that's left to the storage engine's
// uniqueness constraint (a pre-check would race).
package codegen

import (
	"crypto/rand"
	"math/big"
)

// DefaultAlphabet is the 62-character alphanumeric set.
const DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	MinLength = 4
	MaxLength = 16
)

// Generator produces uniformly-random short codes from a fixed alphabet and
// length. It is safe for concurrent use: every call is independent, there is
// no shared mutable state beyond the immutable alphabet/length.
type Generator struct {
	alphabet string
	length   int
}

// New builds a Generator. It does not validate length bounds itself —
// config.Validate is the single place that enforces [4,16] at startup,
// so a Generator built in a test with an odd length is still usable.
func New(alphabet string, length int) *Generator {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if length <= 0 {
		length = 6
	}
	return &Generator{alphabet: alphabet, length: length}
}

// Generate returns one candidate code. Each character is drawn uniformly
// from the alphabet via crypto/rand.Int, which samples [0, len(alphabet))
// without modulo bias, so codes are fit to hand to a uniqueness-enforcing
// insert.
func (g *Generator) Generate() (string, error) {
	n := big.NewInt(int64(len(g.alphabet)))
	out := make([]byte, g.length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		out[i] = g.alphabet[idx.Int64()]
	}
	return string(out), nil
}

// Alphabet and Length report the generator's configuration, used by
// validation of explicit caller-supplied codes.
func (g *Generator) Alphabet() string { return g.alphabet }
func (g *Generator) Length() int      { return g.length }

// Valid reports whether code matches this generator's alphabet and exact
// configured length — the invariant every generated code satisfies.
func (g *Generator) Valid(code string) bool {
	if len(code) != g.length {
		return false
	}
	return g.inAlphabet(code)
}

// ValidCustom reports whether a caller-supplied explicit code is
// acceptable: alphabet characters only, non-empty, and no longer than
// MaxLength. Custom codes are not pinned to the configured generation
// length — operators routinely reserve short vanity codes ("foo") next to
// machine-generated ones.
func (g *Generator) ValidCustom(code string) bool {
	if len(code) == 0 || len(code) > MaxLength {
		return false
	}
	return g.inAlphabet(code)
}

func (g *Generator) inAlphabet(code string) bool {
	for i := 0; i < len(code); i++ {
		if !containsByte(g.alphabet, code[i]) {
			return false
		}
	}
	return true
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
