package tts

import (
	"regexp"
	"strings"
)

var endOfSentenceRegex = regexp.MustCompile(`\n\s*|(\.|\?|!)+(\s+|$)`)

// SplitIntoSentences splits the given text at punctuation marks and line breaks.
// Synthesizing a response sentence by sentence reduces the time until the first sentence is spoken.
func SplitIntoSentences(text string) []string {
	sentences := splitIntoSentences(text)
	result := make([]string, 0, len(sentences))

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence != "" {
			result = append(result, sentence)
		}
	}

	return result
}

// splitIntoSentences splits a given text at punctuation marks, preserving whitespaces.
func splitIntoSentences(text string) []string {
	m := endOfSentenceRegex.FindAllStringIndex(text, -1)
	sentences := make([]string, len(m))
	pos := 0

	for i, idx := range m {
		sentences[i] = text[pos:idx[1]]
		pos = idx[1]
	}

	if pos < len(text) {
		sentences = append(sentences, text[pos:])
	}

	return sentences
}
