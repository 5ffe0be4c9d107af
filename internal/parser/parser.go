package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"condo-rag/internal/models"
)

// ErrUnsupportedFormat is returned before any pipeline work starts when the
// uploaded file is not a PDF.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ExtractText parses a document into plain text per page number. Pages with
// no extractable text are skipped.
func ExtractText(filePath string) (map[int]string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return extractPDF(filePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func extractPDF(filePath string) (map[int]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	textByPage := make(map[int]string)
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		textByPage[i] = pageText
	}

	log.Info().Int("pages", len(textByPage)).Str("file", filepath.Base(filePath)).Msg("Extracted text")
	return textByPage, nil
}

// ChunkPages splits each page's text into overlapping windows, keeping the
// page reference. The chunk index increases across the whole document, not
// per page.
func ChunkPages(textByPage map[int]string, splitter *Splitter) []models.Chunk {
	pageNums := make([]int, 0, len(textByPage))
	for p := range textByPage {
		pageNums = append(pageNums, p)
	}
	sort.Ints(pageNums)

	var chunks []models.Chunk
	for _, pageNum := range pageNums {
		for _, text := range splitter.Split(textByPage[pageNum]) {
			chunks = append(chunks, models.Chunk{
				Content:    text,
				PageNumber: pageNum,
				ChunkIndex: len(chunks),
			})
		}
	}

	log.Info().Int("chunks", len(chunks)).Msg("Created chunks")
	return chunks
}
