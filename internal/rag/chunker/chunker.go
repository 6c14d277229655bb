package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
)

var ErrInvalidChunkConfig = errors.New("chunker: need chunk size >= 1 and 0 <= overlap < chunk size")

// Split cuts text into windows of size runes, each starting size-overlap runes after the previous
// one. The final window takes whatever remains, so every chunk but the last is exactly size long.
func Split(documentId string, text string, size int, overlap int) ([]docModel.Chunk, error) {
	if size < 1 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w (size=%d overlap=%d)", ErrInvalidChunkConfig, size, overlap)
	}
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]docModel.Chunk, 0, n/step+1)
	start := 0
	for n-start > size {
		chunks = append(chunks, docModel.Chunk{
			DocumentId: documentId,
			Seq:        len(chunks),
			Start:      start,
			End:        start + size,
			Overlap:    overlap,
			Text:       string(runes[start : start+size]),
		})
		start += step
	}
	chunks = append(chunks, docModel.Chunk{
		DocumentId: documentId,
		Seq:        len(chunks),
		Start:      start,
		End:        n,
		Text:       string(runes[start:]),
	})
	return chunks, nil
}

// Join rebuilds the source text by dropping each chunk's overlapping suffix except on the last chunk.
func Join(chunks []docModel.Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == len(chunks)-1 {
			b.WriteString(c.Text)
			break
		}
		r := []rune(c.Text)
		b.WriteString(string(r[:len(r)-c.Overlap]))
	}
	return b.String()
}
