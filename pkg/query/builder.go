package query

import (
	"errors"
	"strconv"
	"strings"
)

// Build turns a word length and the remaining command tokens into a
// predicate. The last token becomes a CJK literal pattern when it contains an
// ideograph; all other tokens are pinyin syllables, padded with placeholders
// up to length. args is not modified.
func Build(length int, args []string) (Predicate, error) {
	if length <= 0 {
		return Predicate{}, &Error{
			Kind:  KindLength,
			Token: strconv.Itoa(length),
			Err:   errors.New("length must be positive"),
		}
	}

	syllables := make([]string, len(args), max(len(args), length))
	copy(syllables, args)

	var clauses []Clause
	if n := len(syllables); n > 0 && ContainsHan(syllables[n-1]) {
		literal := syllables[n-1]
		syllables = syllables[:n-1]
		if !ValidLiteralPattern(literal) {
			return Predicate{}, &Error{Kind: KindCJK, Token: literal}
		}
		clauses = append(clauses, Clause{Op: OpLike, Field: FieldText, Pattern: ToStorePattern(literal)})
	}

	for len(syllables) < length {
		syllables = append(syllables, string(Placeholder))
	}
	pinyin := strings.Join(syllables, " ")
	if !ValidPinyinPattern(pinyin) {
		return Predicate{}, &Error{Kind: KindPinyin, Token: pinyin}
	}

	clauses = append(clauses,
		Clause{Op: OpLike, Field: FieldPinyin, Pattern: ToStorePattern(pinyin)},
		Clause{Op: OpLength, Field: FieldText, Length: length},
	)
	return Predicate{Clauses: clauses, Limit: MaxResults}, nil
}

// BuildFuzzy is Build with an extra "pinyin contains term" clause for each of
// mustContain, placed before the base clauses in input order.
func BuildFuzzy(mustContain []string, length int, args []string) (Predicate, error) {
	for _, term := range mustContain {
		if !ValidFuzzyTerm(term) {
			return Predicate{}, &Error{Kind: KindFuzzy, Token: term}
		}
	}

	base, err := Build(length, args)
	if err != nil {
		return Predicate{}, err
	}

	clauses := make([]Clause, 0, len(mustContain)+len(base.Clauses))
	for _, term := range mustContain {
		clauses = append(clauses, Clause{Op: OpContains, Field: FieldPinyin, Pattern: term})
	}
	base.Clauses = append(clauses, base.Clauses...)
	return base, nil
}
