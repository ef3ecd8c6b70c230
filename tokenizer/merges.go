package tokenizer

import (
	"fmt"
	"strings"

	"github.com/mrcloudchase/inference-runtime/util/stringx"
)

// MergeRule is one ranked BPE merge: left and right token strings that
// combine into a single token when adjacent. Rank 0 is highest priority.
type MergeRule struct {
	Left, Right string
	Rank        int
}

// InvalidMergeEntryError reports a tokenizer.ggml.merges entry that does not
// split into exactly two space-separated fields.
type InvalidMergeEntryError struct {
	Entry string
}

func (e *InvalidMergeEntryError) Error() string {
	return fmt.Sprintf("tokenizer: merge entry %q does not contain exactly one ASCII space", e.Entry)
}

// Merges is the ranked merge table, indexed for O(1) rank lookup by
// (left, right) pair.
type Merges struct {
	rules []MergeRule
	rank  map[[2]string]int
}

// NewMerges parses the raw tokenizer.ggml.merges string array. Each entry is
// split on its first ASCII space; an entry containing zero or more than one
// space is a fatal load error, since a well-formed entry always has exactly
// one separator between its left and right halves.
func NewMerges(entries []string) (*Merges, error) {
	rules := make([]MergeRule, len(entries))
	rank := make(map[[2]string]int, len(entries))

	for i, e := range entries {
		if strings.Count(e, " ") != 1 {
			return nil, &InvalidMergeEntryError{Entry: e}
		}
		left, right, _ := stringx.CutFromLeft(e, " ")
		rules[i] = MergeRule{Left: left, Right: right, Rank: i}
		rank[[2]string{left, right}] = i
	}

	return &Merges{rules: rules, rank: rank}, nil
}

// RankOf returns the merge rank of the (left, right) pair and whether a rule
// for it exists.
func (m *Merges) RankOf(left, right string) (int, bool) {
	r, ok := m.rank[[2]string{left, right}]
	return r, ok
}

// Len returns the number of merge rules.
func (m *Merges) Len() int {
	return len(m.rules)
}
