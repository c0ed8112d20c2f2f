// Package apikey issues and fingerprints the opaque bearer credentials
// handed to business accounts.
//
// A credential looks like pk_<unix-millis>_<32 hex chars>. The timestamp
// only aids debugging and sorting; uniqueness comes from the 16 random bytes.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Prefix marks every credential issued by this service.
const Prefix = "pk_"

// RandomBytes is the amount of entropy in each credential.
const RandomBytes = 16

// displayRandomChars is how much of the random part DisplayPrefix reveals.
const displayRandomChars = 4

type Generator struct {
	now  func() time.Time
	rand io.Reader
}

type Option func(*Generator)

// WithClock overrides the time source used for the embedded timestamp.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRandom overrides the entropy source. Tests only.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.rand = r }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now, rand: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a fresh credential. It panics if the entropy source
// fails: no credential may be issued without it.
func (g *Generator) Generate() string {
	b := make([]byte, RandomBytes)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		panic(fmt.Sprintf("apikey: entropy source unavailable: %v", err))
	}
	return Prefix + strconv.FormatInt(g.now().UnixMilli(), 10) + "_" + hex.EncodeToString(b)
}

// HasValidFormat reports whether key carries the credential prefix.
func HasValidFormat(key string) bool {
	return strings.HasPrefix(key, Prefix)
}

// Hash returns the SHA-256 hex digest stored in place of the key.
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix returns the non-secret leading part of key: the prefix,
// the timestamp and the first few random characters.
func DisplayPrefix(key string) string {
	i := strings.LastIndexByte(key, '_')
	if i < 0 {
		return ""
	}
	end := i + 1 + displayRandomChars
	if end > len(key) {
		end = len(key)
	}
	return key[:end]
}
