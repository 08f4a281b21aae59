package money

import "sort"

// Magnitude is one entry of the short-scale suffix table.
type Magnitude struct {
	Exponent int
	Code     string
	Word     string
}

// magnitudes is ordered by exponent. Codes and words are lowercase.
var magnitudes = [...]Magnitude{
	{3, "k", "thousand"},
	{6, "m", "million"},
	{9, "b", "billion"},
	{12, "t", "trillion"},
	{15, "qa", "quadrillion"},
	{18, "qi", "quintillion"},
	{21, "sx", "sextillion"},
	{24, "sp", "septillion"},
	{27, "oc", "octillion"},
	{30, "no", "nonillion"},
	{33, "dc", "decillion"},
	{36, "ud", "undecillion"},
	{39, "dd", "duodecillion"},
	{42, "td", "tredecillion"},
	{45, "qad", "quattuordecillion"},
	{48, "qid", "quindecillion"},
	{51, "sxd", "sexdecillion"},
	{54, "spd", "septendecillion"},
	{57, "ocd", "octodecillion"},
	{60, "nod", "novemdecillion"},
	{63, "vg", "vigintillion"},
	{66, "uvg", "unvigintillion"},
	{69, "dvg", "duovigintillion"},
	{72, "tvg", "trevigintillion"},
	{75, "qavg", "quattuorvigintillion"},
	{78, "qivg", "quinvigintillion"},
	{81, "sxvg", "sexvigintillion"},
	{84, "spvg", "septenvigintillion"},
	{87, "ocvg", "octovigintillion"},
	{90, "novg", "novemvigintillion"},
	{93, "tg", "trigintillion"},
	{123, "qag", "quadragintillion"},
	{153, "qig", "quinquagintillion"},
	{183, "sxg", "sexagintillion"},
	{213, "spg", "septuagintillion"},
	{243, "ocg", "octogintillion"},
	{273, "nog", "nonagintillion"},
	{303, "ce", "centillion"},
}

// commonSuffixes are offered when nothing in the vocabulary is close enough.
var commonSuffixes = []string{"k", "m", "b", "t"}

var (
	exponentBySuffix   map[string]int
	magnitudeByExpo    map[int]Magnitude
	suffixVocabulary   []string
	largestMagnitudeEx int
)

func init() {
	exponentBySuffix = make(map[string]int, len(magnitudes)*2)
	magnitudeByExpo = make(map[int]Magnitude, len(magnitudes))
	for _, m := range magnitudes {
		exponentBySuffix[m.Code] = m.Exponent
		exponentBySuffix[m.Word] = m.Exponent
		magnitudeByExpo[m.Exponent] = m
		suffixVocabulary = append(suffixVocabulary, m.Code, m.Word)
		if m.Exponent > largestMagnitudeEx {
			largestMagnitudeEx = m.Exponent
		}
	}
	sort.Strings(suffixVocabulary)
}

// LookupSuffix returns the power of ten for a code ("qa") or word ("quadrillion").
func LookupSuffix(s string) (int, bool) {
	e, ok := exponentBySuffix[s]
	return e, ok
}

// MagnitudeFor returns the table entry for an exact exponent.
func MagnitudeFor(exponent int) (Magnitude, bool) {
	m, ok := magnitudeByExpo[exponent]
	return m, ok
}

// Magnitudes returns a copy of the suffix table ordered by exponent.
func Magnitudes() []Magnitude {
	out := make([]Magnitude, len(magnitudes))
	copy(out, magnitudes[:])
	return out
}

// Vocabulary lists every accepted suffix code and word, sorted.
func Vocabulary() []string {
	out := make([]string, len(suffixVocabulary))
	copy(out, suffixVocabulary)
	return out
}
