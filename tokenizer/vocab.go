// Package tokenizer implements byte-pair-encoding against the vocabulary and
// merge table embedded in a GGUF file's metadata.
package tokenizer

import "fmt"

// Vocabulary is the token-string table plus its derived lookup structures.
// Invariant: len(Tokens) == len(Scores) == Size(). The reverse map is a
// bijection on token strings; a duplicate token string resolves to the
// last-inserted ID, matching build order.
type Vocabulary struct {
	Tokens []string
	Scores []float32
	ids    map[string]uint32

	BOSID uint32
	EOSID uint32
}

// LengthMismatchError reports that the tokens and scores arrays read from
// metadata did not agree in length.
type LengthMismatchError struct {
	TokensLen, ScoresLen int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("tokenizer: tokens length %d does not match scores length %d", e.TokensLen, e.ScoresLen)
}

// NewVocabulary builds a Vocabulary from the raw token and score arrays
// read off a GGUF file's tokenizer.ggml.tokens / tokenizer.ggml.scores keys.
func NewVocabulary(tokens []string, scores []float32, bosID, eosID uint32) (*Vocabulary, error) {
	if len(tokens) != len(scores) {
		return nil, &LengthMismatchError{TokensLen: len(tokens), ScoresLen: len(scores)}
	}

	ids := make(map[string]uint32, len(tokens))
	for i, t := range tokens {
		ids[t] = uint32(i)
	}

	return &Vocabulary{
		Tokens: tokens,
		Scores: scores,
		ids:    ids,
		BOSID:  bosID,
		EOSID:  eosID,
	}, nil
}

// Size returns n_vocab.
func (v *Vocabulary) Size() int {
	return len(v.Tokens)
}

// TokenToID looks up a token string's ID.
func (v *Vocabulary) TokenToID(tok string) (uint32, bool) {
	id, ok := v.ids[tok]
	return id, ok
}

// IDToToken returns the token string for id, or false if out of range.
func (v *Vocabulary) IDToToken(id uint32) (string, bool) {
	if int(id) >= len(v.Tokens) {
		return "", false
	}
	return v.Tokens[id], true
}
