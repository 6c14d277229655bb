package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dslipak/pdf"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

var pdfMagic = []byte("%PDF")

var errPageTimeout = errors.New("page extraction timed out")

type Extractor struct {
	pageTimeout time.Duration
	logger      *logger_i.Logger
}

func New(pageTimeout time.Duration) *Extractor {
	if pageTimeout <= 0 {
		pageTimeout = config.PageExtractTimeout
	}
	return &Extractor{
		pageTimeout: pageTimeout,
		logger:      logger_i.NewLogger("extractor"),
	}
}

// CheckMagic rejects anything that does not start with the PDF signature.
func CheckMagic(data []byte) error {
	if !bytes.HasPrefix(data, pdfMagic) {
		return errorModel.New(errorModel.InvalidFormat, "extract", errors.New("missing %PDF signature"))
	}
	return nil
}

// Extract returns the text of every page in page order. Pages that fail or time out are skipped,
// a document without any non-whitespace text is EmptyDocument.
func (e *Extractor) Extract(ctx context.Context, data []byte) (result docModel.Extraction, err error) {
	if err := CheckMagic(data); err != nil {
		return result, err
	}
	log := e.logger.WithTrace(ctx)
	defer metrics.Since("extraction", time.Now())

	// the parser panics on some malformed structures
	defer func() {
		if r := recover(); r != nil {
			log.Error("pdf parser panic", "panic", r)
			result = docModel.Extraction{}
			err = errorModel.New(errorModel.ExtractionFailed, "extract", fmt.Errorf("parser panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Error("failed opening of pdf", "error", err)
		return result, errorModel.New(errorModel.ExtractionFailed, "extract", err)
	}

	numPages := reader.NumPage()
	log.Debug("extracting pdf", "pages", numPages, "bytes", len(data))

	var text strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return docModel.Extraction{}, errorModel.Classify(errorModel.ExtractionFailed, "extract", err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			log.Debug("page value is null", "page", i)
			continue
		}

		content, err := e.protectExtract(ctx, page)
		if err != nil {
			log.Warn("skipping page", "page", i, "error", err)
			continue
		}
		appendPage(&text, content)
	}

	if strings.TrimSpace(text.String()) == "" {
		return docModel.Extraction{}, errorModel.New(errorModel.EmptyDocument, "extract", fmt.Errorf("%d pages without text", numPages))
	}
	return docModel.Extraction{Text: text.String(), PageCount: numPages}, nil
}

// appendPage keeps page text apart with a newline unless the previous page already ended in whitespace.
func appendPage(b *strings.Builder, content string) {
	if content == "" {
		return
	}
	if b.Len() > 0 {
		last, _ := utf8.DecodeLastRuneInString(b.String())
		if !unicode.IsSpace(last) {
			b.WriteByte('\n')
		}
	}
	b.WriteString(content)
}

func (e *Extractor) protectExtract(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	// GetPlainText cannot be cancelled. On timeout the goroutine runs to completion in the
	// background and its send lands in the buffer, so it never blocks.
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("page panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(e.pageTimeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-timer.C:
		return "", errPageTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
