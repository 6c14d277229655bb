package customHttpClient

import (
	"net"
	"net/http"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
)

// one transport for every outbound call: pdf downloads and the provider SDKs share its idle pool
var customTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          config.MaxIdleConns,
	MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
	IdleConnTimeout:       config.IdleConnTimeout,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: time.Second,
	ForceAttemptHTTP2:     true,
}

// NewClient returns a client on the shared transport. timeout 0 leaves the deadline to the caller's context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Transport: customTransport, Timeout: timeout}
}

func Transport() http.RoundTripper { return customTransport }
