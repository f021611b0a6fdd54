package series

import (
	"regexp"
	"strconv"
)

// volumeRules are checked in priority order, most specific marker first.
// Earlier revisions of the tracker disagreed on this ordering (sometimes the
// bare trailing number won over an explicit Vol.N); here an explicit marker
// always beats an incidental number so "Foo 2020 Vol.3" reads as volume 3.
// Within one rule the last match in the string wins, which lets
// "呪術廻戦 26(特装版)" resolve to 26 even though the number is not trailing.
var volumeRules = []*regexp.Regexp{
	regexp.MustCompile(`第\s*(\d+)\s*[巻集]`),
	regexp.MustCompile(`(\d+)\s*巻`),
	regexp.MustCompile(`(?i)vol(?:ume)?\.?\s*(\d+)`),
	regexp.MustCompile(`#(\d+)`),
	regexp.MustCompile(`[\(（\[<]\s*(\d+)\s*[\)）\]>]`),
	regexp.MustCompile(`\s(\d+)`),
}

// Volume extracts the best-guess volume number from a raw title, defaulting
// to 1 when no numeric marker is found. Titles with several plausible numbers
// (a year in a subtitle, say) are inherently ambiguous; the priority order is
// the documented tie-break, not a disambiguator.
func Volume(raw string) int {
	s := fold(raw)
	for _, re := range volumeRules {
		ms := re.FindAllStringSubmatch(s, -1)
		if len(ms) == 0 {
			continue
		}
		n, err := strconv.Atoi(ms[len(ms)-1][1])
		if err != nil || n < 1 {
			continue
		}
		return n
	}
	return 1
}
