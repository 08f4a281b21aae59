package money

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseErrorKind classifies a rejected human amount.
type ParseErrorKind string

const (
	KindBadNumber ParseErrorKind = "bad_number"
	KindBadSuffix ParseErrorKind = "bad_suffix"
	KindNegative  ParseErrorKind = "negative"
	KindTooLarge  ParseErrorKind = "too_large"
)

// DefaultMaxExponent is the largest power of ten accepted by ParseHuman.
const DefaultMaxExponent = 303

// ParseError is returned by ParseHuman. Suggestions is only set for KindBadSuffix.
type ParseError struct {
	Kind        ParseErrorKind
	Input       string
	Suffix      string
	Suggestions []string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindBadSuffix:
		msg := fmt.Sprintf("%s: unknown suffix %q in %q", e.Kind, e.Suffix, e.Input)
		if len(e.Suggestions) > 0 {
			msg += " (did you mean " + strings.Join(e.Suggestions, ", ") + "?)"
		}
		return msg
	case KindNegative:
		return fmt.Sprintf("%s: %q must not be negative", e.Kind, e.Input)
	case KindTooLarge:
		return fmt.Sprintf("%s: %q exceeds the largest accepted amount", e.Kind, e.Input)
	default:
		return fmt.Sprintf("%s: %q is not a number", e.Kind, e.Input)
	}
}

// ParseOptions controls ParseHuman. The zero value rejects negatives and
// uses DefaultMaxExponent.
type ParseOptions struct {
	AllowNegative bool
	MaxExponent   int
}

var humanAmountRE = regexp.MustCompile(`^([+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:e[+-]?\d+)?)\s*([a-z]*)$`)

// ParseHuman parses amounts like "1500", "2.5m", "3 billion" or "1e6" into
// whole minor units. Fractions left after applying the suffix are truncated.
func ParseHuman(input string, opts ParseOptions) (Amount, error) {
	maxExp := opts.MaxExponent
	if maxExp <= 0 {
		maxExp = DefaultMaxExponent
	}

	cleaned := strings.ToLower(strings.TrimSpace(input))
	cleaned = strings.NewReplacer(",", "", "_", "").Replace(cleaned)

	match := humanAmountRE.FindStringSubmatch(cleaned)
	if match == nil {
		if loose := strings.TrimLeft(cleaned, "+-0123456789.e "); loose != "" && loose != cleaned && startsWithNumber(cleaned) {
			return Zero, suffixError(input, loose)
		}
		return Zero, &ParseError{Kind: KindBadNumber, Input: input}
	}

	number, err := decimal.NewFromString(match[1])
	if err != nil {
		return Zero, &ParseError{Kind: KindBadNumber, Input: input}
	}

	power := 0
	if suffix := match[2]; suffix != "" {
		p, ok := LookupSuffix(suffix)
		if !ok {
			return Zero, suffixError(input, suffix)
		}
		power = p
	}

	if number.IsNegative() && !opts.AllowNegative {
		return Zero, &ParseError{Kind: KindNegative, Input: input}
	}
	if number.IsZero() {
		return Zero, nil
	}

	digits := len(new(big.Int).Abs(number.Coefficient()).Text(10))
	magnitude := int64(number.Exponent()) + int64(digits) - 1 + int64(power)
	if magnitude > int64(maxExp) {
		return Zero, &ParseError{Kind: KindTooLarge, Input: input}
	}
	if magnitude < 0 {
		return Zero, nil
	}

	return Amount{d: number.Shift(int32(power))}.Truncate(), nil
}

func startsWithNumber(s string) bool {
	return s != "" && strings.ContainsRune("+-0123456789.", rune(s[0]))
}

func suffixError(input, suffix string) *ParseError {
	suggestions := Suggest(suffix, suffixVocabulary, MaxSuggestionDistance, MaxSuggestions)
	if len(suggestions) == 0 {
		suggestions = append([]string(nil), commonSuffixes...)
	}
	return &ParseError{
		Kind:        KindBadSuffix,
		Input:       input,
		Suffix:      suffix,
		Suggestions: suggestions,
	}
}

// FormatHuman renders a with the largest suffix that keeps at least one whole
// unit, truncated to two decimals: 2500000 -> "2.5m". Amounts below one
// thousand are rendered as plain integers.
func FormatHuman(a Amount) string {
	whole := a.Truncate()
	digits := len(new(big.Int).Abs(whole.BigInt()).Text(10))
	if whole.IsZero() || digits <= 3 {
		return whole.String()
	}

	exp := digits - 1
	if exp > largestMagnitudeEx {
		exp = largestMagnitudeEx
	}
	var mag Magnitude
	for e := exp; e >= 3; e-- {
		if m, ok := MagnitudeFor(e); ok {
			mag = m
			break
		}
	}
	scaled := whole.d.Shift(int32(-mag.Exponent)).Truncate(2)
	return scaled.String() + mag.Code
}
