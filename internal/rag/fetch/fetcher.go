package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/customHttpClient"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

const userAgent = "nexus-ai/1.0"

// Fetcher downloads referenced PDFs over the shared pooled client.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	logger   *logger_i.Logger
}

func New(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client:   customHttpClient.NewClient(0),
		timeout:  timeout,
		maxBytes: maxBytes,
		logger:   logger_i.NewLogger("Fetcher"),
	}
}

// Reference canonicalizes rawURL and returns a reference whose loader downloads it on a cache miss.
func (f *Fetcher) Reference(rawURL string) (docModel.Reference, error) {
	canonical, err := Canonical(rawURL)
	if err != nil {
		return docModel.Reference{}, err
	}
	return docModel.Reference{
		Id:   DocumentId(canonical),
		Name: canonical,
		Loader: docModel.LoaderFunc(func(ctx context.Context) ([]byte, error) {
			return f.Fetch(ctx, canonical)
		}),
	}, nil
}

// Fetch downloads rawURL within the fetch timeout. Running out of that budget is DownloadTimeout,
// running out of the caller's is Timeout, and everything else is ExtractionFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	const op = "fetch.Fetch"
	defer metrics.Since("fetch", time.Now())
	log := f.logger.WithTrace(ctx).With("url", rawURL)

	fetchCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errorModel.New(errorModel.InvalidRequest, op, err)
	}
	req.Header.Set("Accept", "application/pdf")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn("download failed", "error", err)
		return nil, f.classify(ctx, fetchCtx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("download rejected", "status", resp.StatusCode)
		return nil, errorModel.New(errorModel.ExtractionFailed, op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, errorModel.New(errorModel.ExtractionFailed, op, fmt.Errorf("document of %d bytes exceeds %d", resp.ContentLength, f.maxBytes))
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		log.Warn("download interrupted", "error", err)
		return nil, f.classify(ctx, fetchCtx, op, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, errorModel.New(errorModel.ExtractionFailed, op, fmt.Errorf("document exceeds %d bytes", f.maxBytes))
	}
	log.Debug("downloaded", "bytes", len(data))
	return data, nil
}

func (f *Fetcher) classify(parent, fetchCtx context.Context, op string, err error) error {
	if parent.Err() != nil {
		return errorModel.New(errorModel.Timeout, op, parent.Err())
	}
	var netErr net.Error
	if fetchCtx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errorModel.New(errorModel.DownloadTimeout, op, err)
	}
	return errorModel.New(errorModel.ExtractionFailed, op, err)
}

// Canonical normalizes a reference url so the same document always maps to the same key: lower case
// scheme and host, no default port, no fragment, sorted query.
func Canonical(rawURL string) (string, error) {
	const op = "fetch.Canonical"
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", errorModel.New(errorModel.InvalidRequest, op, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errorModel.New(errorModel.InvalidRequest, op, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", errorModel.New(errorModel.InvalidRequest, op, errors.New("missing host"))
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	return u.String(), nil
}

// DocumentId keys a canonical url. The prefix keeps it apart from upload content hashes.
func DocumentId(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return "url-" + hex.EncodeToString(sum[:16])
}
