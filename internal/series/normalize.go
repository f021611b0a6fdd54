// Package series holds the pure core of the tracker: deriving a canonical
// series key from a raw book title, guessing a volume number out of one, and
// grouping a flat record collection into per-series summaries.
package series

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// maxPasses bounds the strip loop. Markers compound (volume number plus an
// edition parenthetical, sometimes nested behind another number), so rules
// re-run until the string stabilizes; the cap guarantees termination even if
// a future rule were to oscillate.
const maxPasses = 8

// stripRules remove one trailing volume/edition marker each. They run against
// the width-folded form, so only ASCII digits and punctuation need matching;
// the full-width alternates are kept anyway for inputs that slip past folding
// (e.g. strings already concatenated from mixed sources).
//
// Order matters only for readability; the fixed-point loop makes the set
// order-insensitive for the final result.
var stripRules = []*regexp.Regexp{
	// (12), （１２） and friends
	regexp.MustCompile(`[\(（]\s*\d+\s*[\)）]\s*$`),
	regexp.MustCompile(`\[\s*\d+\s*\]\s*$`),
	regexp.MustCompile(`<\s*\d+\s*>\s*$`),
	// 第12巻, 第3集, 12巻
	regexp.MustCompile(`第\s*\d+\s*[巻集]\s*$`),
	regexp.MustCompile(`\d+\s*巻\s*$`),
	// Vol.12, vol 12, Volume 12
	regexp.MustCompile(`(?i)vol(?:ume)?\.?\s*\d+\s*$`),
	regexp.MustCompile(`#\d+\s*$`),
	// edition parentheticals: (特装版), (限定版), (DVD付) ...
	regexp.MustCompile(`[\(（][^\)）]*(?:版|限定|特装|豪華|初回|完全|DVD|CD)[^\)）]*[\)）]\s*$`),
	// bare trailing integer: "Title 26"
	regexp.MustCompile(`\s\d+\s*$`),
}

var multiSpace = regexp.MustCompile(`\s{2,}`)

// Key strips trailing volume and edition markers from a raw title, yielding
// the canonical series key used for grouping.
//
// Full-width digits and punctuation are folded to their ASCII forms first:
// catalog sources freely mix ＯＮＥ ＰＩＥＣＥ １００ with "ONE PIECE 100"
// and both must land on the same key. The rule set is then re-applied until a
// pass changes nothing, so compound markers like "呪術廻戦 26(特装版)" strip
// completely.
//
// Key is idempotent, and "" is a valid result: a title that was nothing but
// markers groups under the empty key rather than erroring.
func Key(raw string) string {
	s := fold(raw)
	for i := 0; i < maxPasses; i++ {
		before := s
		for _, re := range stripRules {
			s = strings.TrimSpace(re.ReplaceAllString(s, ""))
		}
		if s == before {
			break
		}
	}
	return collapse(s)
}

// fold maps full-width digits/punctuation/latin to half-width and normalizes
// the ideographic space, leaving kana/kanji untouched.
func fold(s string) string {
	s = width.Fold.String(s)
	return strings.ReplaceAll(s, "　", " ")
}

func collapse(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}
