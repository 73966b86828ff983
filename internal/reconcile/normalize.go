package reconcile

import (
	"fmt"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// asciiPunctuation is the set of ASCII punctuation characters stripped from
// manufacturer names. Underscore is included.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// KeyFunc derives the normalized manufacturer key from a manufacturer name
type KeyFunc func(name string) string

// NormalizeManufacturer returns the normalized key of a manufacturer name:
// the name lowercased with ASCII punctuation and Unicode punctuation or symbol
// runes (such as ® and ™) removed. Whitespace is kept. An empty name yields the empty key.
func NormalizeManufacturer(name string) string {
	if name == "" {
		return ""
	}
	// A Caser keeps state between calls and cannot be shared across goroutines
	lowered := cases.Lower(language.Und).String(name)
	return strings.Map(func(r rune) rune {
		if isPunctuation(r) {
			return -1
		}
		return r
	}, lowered)
}

func isPunctuation(r rune) bool {
	if r < unicode.MaxASCII {
		return strings.ContainsRune(asciiPunctuation, r)
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// NewCachedKeyFunc wraps NormalizeManufacturer with a bounded LRU memo of
// the given size. The returned function is safe for concurrent use.
func NewCachedKeyFunc(size int) (KeyFunc, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create key cache: %w", err)
	}
	return func(name string) string {
		if key, ok := cache.Get(name); ok {
			return key
		}
		key := NormalizeManufacturer(name)
		cache.Add(name, key)
		return key
	}, nil
}
