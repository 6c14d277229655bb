package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"golang.org/x/time/rate"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

// Chain is the per-route pipeline: trace id, bearer auth, per-ip rate limit and request metrics.
type Chain struct {
	auth    config.AuthConfig
	limiter *IPRateLimiter
}

func NewChain(auth config.AuthConfig, server config.ServerConfig) *Chain {
	c := &Chain{auth: auth}
	if server.RatePerSecond > 0 {
		c.limiter = NewIPRateLimiter(rate.Limit(server.RatePerSecond), server.RateBurst)
	}
	return c
}

// Public runs the pipeline without the bearer check.
func (c *Chain) Public(next http.HandlerFunc) http.HandlerFunc {
	return c.wrap(next, false)
}

func (c *Chain) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return c.wrap(next, true)
}

func (c *Chain) wrap(next http.HandlerFunc, authenticated bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		defer func() {
			metrics.HttpRequestsTotal.WithLabelValues(routeLabel(r), strconv.Itoa(rec.Status)).Inc()
		}()

		re := c.processRequest(requestResponseStruct{req: r, writer: rec}, authenticated)
		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)
	}
}

func (c *Chain) processRequest(re requestResponseStruct, authenticated bool) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re = injectTrace(re)
	re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)
	if authenticated {
		if re = c.authenticate(re); re.badRequest.isBadRequest {
			return re
		}
	}
	return c.rateLimiter(re)
}

// routeLabel keeps the metric cardinality bounded by using the chi pattern instead of the raw path.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", config.TRACE_HEADER},
		ExposedHeaders: []string{config.TRACE_HEADER},
		MaxAge:         300,
	})
}
