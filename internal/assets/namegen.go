package assets

import (
	"iter"
	"path"
	"strconv"
	"strings"
)

// DefaultMaxAttempts bounds the candidate sequence when none is configured.
const DefaultMaxAttempts = 1000

// NameGenerator yields unique-name candidates for a path: the path itself,
// then "-1", "-2" and so on.
type NameGenerator struct {
	MaxAttempts int
}

// Candidates returns a restartable sequence of at most MaxAttempts names for
// filename. With splitExt the counter goes before the extension of the leaf
// (cat-1.jpg); otherwise it is appended to the whole leaf (v1.2-1).
func (g NameGenerator) Candidates(filename string, splitExt bool) iter.Seq[string] {
	limit := g.MaxAttempts
	if limit < 1 {
		limit = DefaultMaxAttempts
	}

	dir, leaf := path.Split(filename)
	stem, ext := leaf, ""
	if splitExt {
		if e := path.Ext(leaf); e != "" && e != leaf {
			stem, ext = strings.TrimSuffix(leaf, e), e
		}
	}

	return func(yield func(string) bool) {
		if !yield(filename) {
			return
		}
		for n := 1; n < limit; n++ {
			if !yield(dir + stem + "-" + strconv.Itoa(n) + ext) {
				return
			}
		}
	}
}
