package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type extractedCV struct {
	Competences []string `json:"competences"`
	Ville       string   `json:"ville"`
}

func TestDecodeObject_PlainJSON(t *testing.T) {
	var out extractedCV
	err := DecodeObject(`{"competences":["Go","SQL"],"ville":"Paris"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "SQL"}, out.Competences)
	assert.Equal(t, "Paris", out.Ville)
}

func TestDecodeObject_MarkdownWrapped(t *testing.T) {
	raw := "```json\n{\"competences\":[\"Go\"],\"ville\":\"Lyon\"}\n```"
	var out extractedCV
	require.NoError(t, DecodeObject(raw, &out))
	assert.Equal(t, "Lyon", out.Ville)
}

func TestDecodeObject_ProseAroundObject(t *testing.T) {
	raw := `Voici le JSON demandé : {"competences":["JavaScript"],"ville":"Paris"} — j'espère que cela convient.`
	var out extractedCV
	require.NoError(t, DecodeObject(raw, &out))
	assert.Equal(t, []string{"JavaScript"}, out.Competences)
}

func TestDecodeObject_BracesInsideStrings(t *testing.T) {
	raw := `note: {"competences":["C{++}"],"ville":"a } b"} trailing`
	var out extractedCV
	require.NoError(t, DecodeObject(raw, &out))
	assert.Equal(t, "a } b", out.Ville)
}

func TestDecodeObject_RepairsTruncatedReply(t *testing.T) {
	// Output cut off mid-generation: unclosed array and object.
	raw := `{"competences":["Go","SQL"`
	var out extractedCV
	require.NoError(t, DecodeObject(raw, &out))
	assert.Equal(t, []string{"Go", "SQL"}, out.Competences)
}

func TestDecodeObject_RepairsTrailingComma(t *testing.T) {
	raw := `{"competences":["Go"],"ville":"Paris",`
	var out extractedCV
	require.NoError(t, DecodeObject(raw, &out))
	assert.Equal(t, "Paris", out.Ville)
}

func TestDecodeObject_Unrecoverable(t *testing.T) {
	var out extractedCV
	err := DecodeObject("désolé, je ne peux pas répondre", &out)
	require.Error(t, err)

	var malformed *MalformedOutputError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "désolé, je ne peux pas répondre", malformed.Raw)
}

func TestDecodeArray_ProseAroundArray(t *testing.T) {
	raw := `Les 2 meilleures offres sont : [{"ville":"Paris"},{"ville":"Lyon"}] Bonne chance !`
	var out []extractedCV
	require.NoError(t, DecodeArray(raw, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "Lyon", out[1].Ville)
}

func TestDecodeArray_EmptyArray(t *testing.T) {
	var out []extractedCV
	require.NoError(t, DecodeArray("[]", &out))
	assert.Empty(t, out)
}

func TestCleanJSONBlock_GenericFence(t *testing.T) {
	raw := "```\n{\"ville\":\"Paris\"}\n```"
	assert.Equal(t, `{"ville":"Paris"}`, CleanJSONBlock(raw))
}

func TestBalancedSpan_PrefersLargestSpan(t *testing.T) {
	s := `{"a":1} et plus loin {"b":2}`
	span, ok := balancedSpan(s, '{', '}')
	require.True(t, ok)
	// Largest span runs from the first opening brace to the last balanced close.
	assert.Equal(t, s, span)
}
