package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, Params{MaxSize: 100, Overlap: 10}.Validate())
	assert.NoError(t, Params{MaxSize: 100, Overlap: 0}.Validate())
	assert.Error(t, Params{MaxSize: 0, Overlap: 0}.Validate())
	assert.Error(t, Params{MaxSize: 100, Overlap: -1}.Validate())
	assert.Error(t, Params{MaxSize: 100, Overlap: 100}.Validate())
	assert.Error(t, Params{MaxSize: 100, Overlap: 200}.Validate())
}

func TestSplitBlankPage(t *testing.T) {
	params := Params{MaxSize: 100, Overlap: 10}
	assert.Empty(t, Split("", "doc-1", 1, params))
	assert.Empty(t, Split("   \n\t \f ", "doc-1", 1, params))
}

func TestSplitSingleSmallPage(t *testing.T) {
	params := Params{MaxSize: 200, Overlap: 20}
	chunks := Split("Revenue grew 10%. Costs fell slightly.", "doc-1", 3, params)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Revenue grew 10%. Costs fell slightly.", chunks[0].Text)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
	assert.Equal(t, 3, chunks[0].PageNumber)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestSplitOverlapSeedsNextChunk(t *testing.T) {
	params := Params{MaxSize: 30, Overlap: 5}
	chunks := Split("Revenue grew 10%. Costs fell slightly.", "doc-1", 1, params)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Revenue grew 10%.", chunks[0].Text)
	assert.True(t, strings.HasPrefix(chunks[1].Text, tail(chunks[0].Text, 5)),
		"second chunk %q must begin with the 5-char tail of the first", chunks[1].Text)
	assert.Contains(t, chunks[1].Text, "Costs fell slightly.")
}

func TestSplitEarningsPage(t *testing.T) {
	params := Params{MaxSize: 30, Overlap: 5}
	chunks := Split("Revenue grew 10%. Costs fell slightly. Outlook is positive.", "doc-1", 1, params)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, "Revenue grew 10%.", chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		assert.True(t, strings.HasPrefix(chunks[i].Text, tail(chunks[i-1].Text, 5)),
			"chunk %d must begin with the overlap tail of chunk %d", i, i-1)
	}

	// every sentence survives chunking intact
	joined := ""
	for _, c := range chunks {
		joined += c.Text + " "
	}
	for _, sentence := range []string{"Revenue grew 10%.", "Costs fell slightly.", "Outlook is positive."} {
		assert.Contains(t, joined, sentence)
	}
}

func TestAccumulateSizeBound(t *testing.T) {
	params := Params{MaxSize: 40, Overlap: 8}
	segments := []string{
		"The cat sat.",
		"The dog ran away.",
		"A bird sang all morning.",
		"The fish swam.",
		"It rained at night.",
	}
	chunks := accumulate(segments, "doc-1", 1, params)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), params.MaxSize, "chunk %q exceeds max size", c.Text)
	}
}

func TestAccumulateOversizedSentencePassedThroughWhole(t *testing.T) {
	params := Params{MaxSize: 30, Overlap: 5}
	long := "This single sentence is far longer than the configured maximum chunk size."
	chunks := accumulate([]string{long}, "doc-1", 1, params)
	require.Len(t, chunks, 1)
	assert.Equal(t, long, chunks[0].Text)
}

func TestAccumulateOversizedSentenceBetweenNeighbours(t *testing.T) {
	params := Params{MaxSize: 30, Overlap: 5}
	long := "This single sentence is far longer than the configured maximum."
	chunks := accumulate([]string{"Short one.", long, "Tail bit."}, "doc-1", 1, params)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Short one.", chunks[0].Text)
	assert.Contains(t, chunks[1].Text, long)
	assert.Contains(t, chunks[2].Text, "Tail bit.")
}

func TestAccumulateZeroOverlap(t *testing.T) {
	params := Params{MaxSize: 22, Overlap: 0}
	chunks := accumulate([]string{"First sentence here.", "Second sentence here."}, "doc-1", 1, params)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First sentence here.", chunks[0].Text)
	assert.Equal(t, "Second sentence here.", chunks[1].Text)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", normalize("a\f b\n\n  c"))
	assert.Equal(t, "", normalize(" \t\n "))
}

func TestSplitSentencesFallbackShape(t *testing.T) {
	// the tokenizer path and the fallback path both yield trimmed,
	// period-terminated segments for plain prose
	segs := splitSentences("One thing happened. Then another thing happened.")
	require.Len(t, segs, 2)
	for _, s := range segs {
		assert.Equal(t, s, strings.TrimSpace(s))
		assert.True(t, strings.HasSuffix(s, "."))
	}
}

func TestTail(t *testing.T) {
	assert.Equal(t, "", tail("abcdef", 0))
	assert.Equal(t, "def", tail("abcdef", 3))
	assert.Equal(t, "abcdef", tail("abcdef", 10))
}
