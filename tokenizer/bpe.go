package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// Tokenizer encodes and decodes text against a Vocabulary and its ranked
// Merges table.
type Tokenizer struct {
	Vocab  *Vocabulary
	Merges *Merges
}

// New builds a Tokenizer over an already-parsed vocabulary and merge table.
func New(vocab *Vocabulary, merges *Merges) *Tokenizer {
	return &Tokenizer{Vocab: vocab, Merges: merges}
}

// Encode splits s into per-byte seed tokens, greedily applies the
// lowest-rank applicable merge until none remain, then maps the resulting
// token strings to vocabulary IDs. Unknown tokens map to ID 0.
func (t *Tokenizer) Encode(s string) []uint32 {
	if s == "" {
		return []uint32{}
	}

	pieces := make([]string, 0, len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		single := string(b)
		if _, ok := t.Vocab.TokenToID(single); ok {
			pieces = append(pieces, single)
			continue
		}
		hexForm := byteToHexToken(b)
		if _, ok := t.Vocab.TokenToID(hexForm); ok {
			pieces = append(pieces, hexForm)
			continue
		}
		pieces = append(pieces, single)
	}

	for {
		bestRank := -1
		bestIdx := -1
		for i := 0; i < len(pieces)-1; i++ {
			rank, ok := t.Merges.RankOf(pieces[i], pieces[i+1])
			if !ok {
				continue
			}
			if bestRank == -1 || rank < bestRank {
				bestRank = rank
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		merged := pieces[bestIdx] + pieces[bestIdx+1]
		pieces = append(pieces[:bestIdx], append([]string{merged}, pieces[bestIdx+2:]...)...)
	}

	ids := make([]uint32, len(pieces))
	for i, p := range pieces {
		id, ok := t.Vocab.TokenToID(p)
		if !ok {
			id = 0
		}
		ids[i] = id
	}
	return ids
}

// Decode maps token IDs back to their strings, expands any `<0xHH>`
// byte-level form to its raw byte, and interprets the concatenation as
// UTF-8, substituting the replacement character for invalid sequences so
// the result is always a valid string.
func (t *Tokenizer) Decode(ids []uint32) string {
	var raw []byte
	for _, id := range ids {
		tok, ok := t.Vocab.IDToToken(id)
		if !ok {
			continue
		}
		if b, ok := hexTokenToByte(tok); ok {
			raw = append(raw, b)
			continue
		}
		raw = append(raw, tok...)
	}
	return sanitizeUTF8(raw)
}

const hexDigits = "0123456789ABCDEF"

func byteToHexToken(b byte) string {
	return "<0x" + string(hexDigits[b>>4]) + string(hexDigits[b&0x0f]) + ">"
}

// hexTokenToByte recognizes the exact six-character `<0xHH>` pattern.
func hexTokenToByte(tok string) (byte, bool) {
	if len(tok) != 6 || !strings.HasPrefix(tok, "<0x") || tok[5] != '>' {
		return 0, false
	}
	hi, ok := hexVal(tok[3])
	if !ok {
		return 0, false
	}
	lo, ok := hexVal(tok[4])
	if !ok {
		return 0, false
	}
	return hi<<4 | lo, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

func sanitizeUTF8(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size <= 1 {
			b.WriteRune(utf8.RuneError)
			i++
			continue
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}
