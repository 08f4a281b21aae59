package money

import "sort"

const (
	// MaxSuggestions caps the corrections attached to a bad_suffix error.
	MaxSuggestions = 8
	// MaxSuggestionDistance is the largest edit distance offered as a correction.
	MaxSuggestionDistance = 2
)

// Suggest returns up to limit vocabulary entries within maxDistance edits of
// input, closest first, then shortest, then alphabetical.
func Suggest(input string, vocabulary []string, maxDistance, limit int) []string {
	type candidate struct {
		word string
		dist int
	}
	var found []candidate
	for _, w := range vocabulary {
		if d, ok := boundedDistance(input, w, maxDistance); ok {
			found = append(found, candidate{word: w, dist: d})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].dist != found[j].dist {
			return found[i].dist < found[j].dist
		}
		if len(found[i].word) != len(found[j].word) {
			return len(found[i].word) < len(found[j].word)
		}
		return found[i].word < found[j].word
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	out := make([]string, 0, len(found))
	for _, c := range found {
		out = append(out, c.word)
	}
	return out
}

// boundedDistance computes the Levenshtein distance between a and b, giving
// up as soon as every cell of a row exceeds bound.
func boundedDistance(a, b string, bound int) (int, bool) {
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > bound {
		return 0, false
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if cur[j] < rowMin {
				rowMin = cur[j]
			}
		}
		if rowMin > bound {
			return 0, false
		}
		prev, cur = cur, prev
	}
	d := prev[len(rb)]
	return d, d <= bound
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
