package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	vocab, err := NewVocabulary(
		[]string{"<pad>", "<bos>", "<eos>", "a", "b", "c", "ab", "bc"},
		[]float32{0, 0, 0, 0, 0, 0, 0, 0},
		1, 2,
	)
	require.NoError(t, err)

	merges, err := NewMerges([]string{"a b", "ab c"})
	require.NoError(t, err)

	return New(vocab, merges)
}

func TestEncodeMergesHighestRankFirst(t *testing.T) {
	tok := fixtureTokenizer(t)

	ids := tok.Encode("abc")
	// byte pieces: "a","b","c" -> rank0 merge "a"+"b"->"ab" -> pieces "ab","c"
	// -> rank1 merge "ab"+"c"->"abc", not in vocab -> falls back to id 0.
	require.Len(t, ids, 1)
	assert.EqualValues(t, 0, ids[0])
}

func TestEncodeSingleMergeProducesKnownToken(t *testing.T) {
	tok := fixtureTokenizer(t)

	ids := tok.Encode("ab")
	require.Len(t, ids, 1)
	assert.EqualValues(t, 6, ids[0]) // "ab"
}

func TestEncodeEmptyString(t *testing.T) {
	tok := fixtureTokenizer(t)
	assert.Equal(t, []uint32{}, tok.Encode(""))
}

func TestEncodeIsDeterministic(t *testing.T) {
	tok := fixtureTokenizer(t)
	a := tok.Encode("abcabc")
	b := tok.Encode("abcabc")
	assert.Equal(t, a, b)
}

func TestDecodeRoundTripASCII(t *testing.T) {
	vocab, err := NewVocabulary(
		[]string{"<pad>", "<bos>", "<eos>", "x", "y", "z"},
		[]float32{0, 0, 0, 0, 0, 0},
		1, 2,
	)
	require.NoError(t, err)
	merges, err := NewMerges(nil)
	require.NoError(t, err)
	tok := New(vocab, merges)

	s := "xyzxyz"
	ids := tok.Encode(s)
	assert.Equal(t, s, tok.Decode(ids))
}

func TestDecodeHexByteFallback(t *testing.T) {
	vocab, err := NewVocabulary(
		[]string{"<pad>", "<0x41>"},
		[]float32{0, 0},
		0, 0,
	)
	require.NoError(t, err)
	merges, err := NewMerges(nil)
	require.NoError(t, err)
	tok := New(vocab, merges)

	assert.Equal(t, "A", tok.Decode([]uint32{1}))
}

func TestDecodeInvalidUTF8Sanitized(t *testing.T) {
	vocab, err := NewVocabulary(
		[]string{"<0xFF>"},
		[]float32{0},
		0, 0,
	)
	require.NoError(t, err)
	merges, err := NewMerges(nil)
	require.NoError(t, err)
	tok := New(vocab, merges)

	out := tok.Decode([]uint32{0})
	assert.Contains(t, out, "�")
}

func TestNewMergesInvalidEntry(t *testing.T) {
	_, err := NewMerges([]string{"noSpaceHere"})
	assert.ErrorAs(t, err, new(*InvalidMergeEntryError))

	_, err = NewMerges([]string{"too many spaces"})
	assert.ErrorAs(t, err, new(*InvalidMergeEntryError))
}

func TestVocabularyLengthMismatch(t *testing.T) {
	_, err := NewVocabulary([]string{"a", "b"}, []float32{0}, 0, 0)
	assert.ErrorAs(t, err, new(*LengthMismatchError))
}
