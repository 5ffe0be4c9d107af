package parser

import (
	"strings"

	"condo-rag/internal/models"
)

// defaultSeparators are tried in order: paragraph breaks first, then line
// breaks, sentence ends, spaces, and finally raw characters.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts text into windows of at most ChunkSize characters, each
// overlapping the previous by up to ChunkOverlap characters. Splitting is
// hierarchical: it prefers the coarsest separator that occurs in the text
// and recurses with finer ones for pieces that are still too large.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int

	separators []string
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = models.DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split returns the chunked text. Chunks are trimmed and empty chunks are
// dropped.
func (s *Splitter) Split(text string) []string {
	var out []string
	for _, chunk := range s.splitRecursive(text, s.separators) {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= s.ChunkSize {
		return []string{text}
	}

	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		return s.hardCut(text)
	}

	pieces := strings.SplitAfter(text, sep)

	var final []string
	var pending []string
	for _, piece := range pieces {
		if len(piece) <= s.ChunkSize {
			pending = append(pending, piece)
			continue
		}
		final = append(final, s.merge(pending)...)
		pending = nil
		final = append(final, s.splitRecursive(piece, rest)...)
	}
	final = append(final, s.merge(pending)...)
	return final
}

// pickSeparator returns the first separator that occurs in the text and the
// finer separators left to recurse with. The empty separator always matches.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// merge packs separator-terminated pieces into chunks of at most ChunkSize,
// carrying trailing pieces totalling at most ChunkOverlap into the next
// chunk to preserve cross-boundary context.
func (s *Splitter) merge(pieces []string) []string {
	if len(pieces) == 0 {
		return nil
	}

	var chunks []string
	var window []string
	total := 0
	for _, piece := range pieces {
		if total+len(piece) > s.ChunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for len(window) > 0 && (total > s.ChunkOverlap || total+len(piece) > s.ChunkSize) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += len(piece)
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}

// hardCut falls back to fixed character windows when no separator is left,
// e.g. one unbroken run of characters.
func (s *Splitter) hardCut(text string) []string {
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + s.ChunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
