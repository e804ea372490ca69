package embedding

import (
	"strings"
	"unicode"
)

// Tokenizer turns entry text into the padded BERT-style input triple
// (input_ids, attention_mask, token_type_ids) the ONNX session expects.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// bertCLS and bertSEP are the BERT special token IDs framing every sequence.
const (
	bertCLS = 101
	bertSEP = 102
)

// hashVocabSize bounds hash-derived token IDs to a BERT-sized vocabulary.
const hashVocabSize = 30000

// HashTokenizer maps each whitespace-separated word of an entry to a
// deterministic hash-derived ID. There is no learned vocabulary; the same
// reflection text always produces the same sequence, which is all the
// embedding cache and the deterministic test embedder need.
type HashTokenizer struct{}

// Tokenize produces padded token IDs up to maxTokens. Words beyond the
// budget are dropped; journal entries rarely come close to it.
func (t *HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = bertCLS
	attentionMask[0] = 1

	pos := 1
	for _, word := range splitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word) % hashVocabSize)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = bertSEP
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// splitWords returns the non-empty whitespace-separated words of text.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, unicode.IsSpace)
}

// HashString returns a deterministic non-negative hash of s. Both the
// tokenizer and the test embedder derive IDs from it, so its value for a
// given string must never change.
func HashString(s string) int {
	h := 0
	for _, r := range s {
		h = 31*h + int(r)
	}
	if h < 0 {
		h = -h
	}
	return h
}
