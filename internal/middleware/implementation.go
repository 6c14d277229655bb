package middleware

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/imfeniljikadara/nexus-ai/internal/adapter/utils"
	"github.com/imfeniljikadara/nexus-ai/internal/api"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/handlers"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	trace := req.Header.Get(config.TRACE_HEADER)
	if trace == "" {
		trace = utils.GetNewUUID()
	}
	ctx := context.WithValue(req.Context(), config.TRACE_ID_KEY, trace)
	re.logger = re.logger.WithTrace(ctx)
	re.writer.Header().Set(config.TRACE_HEADER, trace)
	re.req = req.WithContext(ctx)

	re.logger.Debug("trace middleware injected")
	return re
}

func (c *Chain) authenticate(re requestResponseStruct) requestResponseStruct {
	if !IsValidBearerToken(re.req.Header.Get("Authorization"), c.auth, re.logger) {
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusUnauthorized,
			errorMessage: "missing or invalid bearer token",
		}
		return re
	}
	re.logger.Debug("Authorized")
	return re
}

func IsValidBearerToken(authHeader string, auth config.AuthConfig, log *logger_i.Logger) bool {
	if auth.Bypass {
		log.Debug("auth bypass enabled")
		return true
	}
	if authHeader == "" {
		log.Warn("Empty authorization header")
		return false
	}
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		log.Warn("No Bearer header")
		return false
	}
	if auth.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(auth.Token)) != 1 {
		log.Warn("Invalid authorization header")
		return false
	}
	return true
}

func (c *Chain) rateLimiter(re requestResponseStruct) requestResponseStruct {
	if c.limiter == nil {
		return re
	}
	ip, _, err := net.SplitHostPort(re.req.RemoteAddr)
	if err != nil {
		ip = re.req.RemoteAddr
	}

	if !c.limiter.GetLimiter(ip).Allow() {
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusTooManyRequests,
			errorMessage: "rate limit exceeded, slow down",
		}
		return re
	}
	return re
}

func handleBadRequest(re requestResponseStruct) {
	re.logger.Warn("Bad request", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "IP", re.req.RemoteAddr)
	handlers.WriteErrorResponse(re.writer, api.ErrorBody{
		Code:    re.badRequest.httpCode,
		Kind:    string(errorModel.InvalidRequest),
		Message: re.badRequest.errorMessage,
		Retry:   re.badRequest.httpCode == http.StatusTooManyRequests,
	})
}
