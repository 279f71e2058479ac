package podcast

import (
	"regexp"
	"strings"
)

// MaxChunkSize keeps each SSML chunk safely below Polly's 3000-character
// SynthesizeSpeech limit.
const MaxChunkSize = 2800

// speakTagOverhead is the length budget reserved for the wrapping
// <speak></speak> tags in each chunk.
const speakTagOverhead = 16

var (
	speakTags       = regexp.MustCompile(`</?speak>`)
	paragraphSplit  = regexp.MustCompile(`\n+`)
	sentenceEndings = regexp.MustCompile(`([.!?])\s+`)
)

// SplitIntoChunks splits an SSML script into self-contained <speak> chunks
// no longer than maxSize characters. Scripts that already fit are returned
// as a single chunk unchanged. Longer scripts are split on paragraph
// boundaries first, then on sentence boundaries for paragraphs that exceed
// the limit on their own.
func SplitIntoChunks(script string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = MaxChunkSize
	}
	if len(script) <= maxSize {
		return []string{script}
	}

	// Re-wrap each chunk in its own speak tags.
	body := speakTags.ReplaceAllString(script, "")
	paragraphs := paragraphSplit.Split(body, -1)

	var chunks []string
	var current string

	flush := func() {
		if current != "" {
			chunks = append(chunks, "<speak>"+current+"</speak>")
			current = ""
		}
	}

	for _, paragraph := range paragraphs {
		if len(current)+len(paragraph)+speakTagOverhead > maxSize {
			flush()

			if len(paragraph)+speakTagOverhead > maxSize {
				current = splitParagraph(paragraph, maxSize, &chunks)
				continue
			}
		}
		if current == "" {
			current = paragraph
		} else {
			current += "\n" + paragraph
		}
	}
	flush()

	return chunks
}

// splitParagraph breaks an oversized paragraph on sentence boundaries,
// appending full chunks and returning the trailing remainder.
func splitParagraph(paragraph string, maxSize int, chunks *[]string) string {
	sentences := splitSentences(paragraph)

	var current string
	for _, sentence := range sentences {
		if len(current)+len(sentence)+speakTagOverhead > maxSize {
			if current != "" {
				*chunks = append(*chunks, "<speak>"+current+"</speak>")
			}
			current = sentence
			continue
		}
		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}
	return current
}

// splitSentences splits on sentence-final punctuation followed by
// whitespace, keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	matches := sentenceEndings.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var sentences []string
	start := 0
	for _, m := range matches {
		// m[3] is the end of the punctuation group; the following
		// whitespace is consumed.
		sentences = append(sentences, text[start:m[3]])
		start = m[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}

	out := sentences[:0]
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
