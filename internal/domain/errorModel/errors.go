package errorModel

import (
	"context"
	"errors"
	"net/http"
)

type Kind string

const (
	InvalidFormat         Kind = "InvalidFormat"
	ExtractionFailed      Kind = "ExtractionFailed"
	EmptyDocument         Kind = "EmptyDocument"
	DownloadTimeout       Kind = "DownloadTimeout"
	EmbeddingUnavailable  Kind = "EmbeddingUnavailable"
	DimensionMismatch     Kind = "DimensionMismatch"
	GenerationUnavailable Kind = "GenerationUnavailable"
	ContentBlocked        Kind = "ContentBlocked"
	SessionInitFailed     Kind = "SessionInitFailed"
	NotFound              Kind = "NotFound"
	Timeout               Kind = "Timeout"
	InvalidRequest        Kind = "InvalidRequest"
	Internal              Kind = "Internal"
)

// Error is the tagged failure every core component returns.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare kind sentinels below, so errors.Is(err, ErrNotFound) works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidFormat         = &Error{Kind: InvalidFormat}
	ErrExtractionFailed      = &Error{Kind: ExtractionFailed}
	ErrEmptyDocument         = &Error{Kind: EmptyDocument}
	ErrDownloadTimeout       = &Error{Kind: DownloadTimeout}
	ErrEmbeddingUnavailable  = &Error{Kind: EmbeddingUnavailable}
	ErrDimensionMismatch     = &Error{Kind: DimensionMismatch}
	ErrGenerationUnavailable = &Error{Kind: GenerationUnavailable}
	ErrContentBlocked        = &Error{Kind: ContentBlocked}
	ErrSessionInitFailed     = &Error{Kind: SessionInitFailed}
	ErrNotFound              = &Error{Kind: NotFound}
	ErrTimeout               = &Error{Kind: Timeout}
	ErrInvalidRequest        = &Error{Kind: InvalidRequest}
)

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Classify tags err with kind unless it already carries one. Deadline errors become Timeout.
func Classify(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(Timeout, op, err)
	}
	return New(kind, op, err)
}

// KindOf returns the outermost kind in the chain, Internal for untagged errors.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return Internal
}

// CauseKind looks through SessionInitFailed to the failure that caused it.
func CauseKind(err error) Kind {
	kind := Internal
	for err != nil {
		var tagged *Error
		if !errors.As(err, &tagged) {
			break
		}
		kind = tagged.Kind
		if tagged.Kind != SessionInitFailed {
			break
		}
		err = tagged.Err
	}
	return kind
}

type Info struct {
	Status  int
	Message string
	Retry   bool
}

var catalogue = map[Kind]Info{
	InvalidFormat:         {http.StatusBadRequest, "The file is not a PDF.", false},
	InvalidRequest:        {http.StatusBadRequest, "The request is malformed.", false},
	ExtractionFailed:      {http.StatusUnprocessableEntity, "The PDF could not be read.", false},
	EmptyDocument:         {http.StatusUnprocessableEntity, "The PDF contains no extractable text.", false},
	NotFound:              {http.StatusNotFound, "Nothing was found for this document.", false},
	DownloadTimeout:       {http.StatusGatewayTimeout, "Downloading the PDF timed out, please try again.", true},
	Timeout:               {http.StatusGatewayTimeout, "The request timed out, please try again.", true},
	EmbeddingUnavailable:  {http.StatusServiceUnavailable, "The embedding service is unavailable, please try again.", true},
	GenerationUnavailable: {http.StatusServiceUnavailable, "The answer service is unavailable, please try again.", true},
	DimensionMismatch:     {http.StatusInternalServerError, "The vector index is misconfigured.", false},
	ContentBlocked:        {http.StatusOK, BlockedFallback, false},
	Internal:              {http.StatusInternalServerError, "Internal Server Error", true},
}

const BlockedFallback = "I apologize, but I cannot provide an answer due to content safety restrictions."

// Describe maps an error to its public status, message and retry flag.
func Describe(err error) (Kind, Info) {
	kind := CauseKind(err)
	info, ok := catalogue[kind]
	if !ok {
		return Internal, catalogue[Internal]
	}
	return kind, info
}
