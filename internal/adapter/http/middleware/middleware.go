package middleware

import (
	"net/http"
	"strings"
	"time"

	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"
	"rebooked-marketplace/pkg/metrics"
	"rebooked-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderAuthorization  = "Authorization"
	HeaderServiceToken   = "X-Service-Token"
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	// Context keys
	CtxRequestID = "request_id"
	CtxClaims    = "claims"
	CtxUserID    = "user_id"
	CtxService   = "service"

	maxRequestIDLen = 64
)

// JWTAuth validates the Supabase session token on user routes.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(HeaderAuthorization)
		if authHeader == "" {
			response.Abort(c, apperror.ErrUnauthorized())
			return
		}
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			response.Abort(c, apperror.ErrInvalidToken())
			return
		}

		claims, err := tokenSvc.Validate(strings.TrimSpace(tokenStr))
		if err != nil {
			log.Debug().Err(err).Msg("rejected session token")
			response.Abort(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxClaims, claims)
		c.Set(CtxUserID, claims.UserID)
		c.Next()
	}
}

// ServiceTokenAuth guards internal routes with a shared token checked
// against its Argon2id hash. An empty hash disables the routes.
func ServiceTokenAuth(hashSvc ports.HashService, tokenHash string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(HeaderServiceToken)
		if token == "" || tokenHash == "" {
			response.Abort(c, apperror.ErrUnauthorized())
			return
		}
		ok, err := hashSvc.Verify(token, tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("service token verification failed")
			response.Abort(c, apperror.ErrUnauthorized())
			return
		}
		if !ok {
			log.Warn().Str("client_ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("invalid service token")
			response.Abort(c, apperror.ErrUnauthorized())
			return
		}
		c.Set(CtxService, true)
		c.Next()
	}
}

// Claims returns the session claims set by JWTAuth.
func Claims(c *gin.Context) (*ports.TokenClaims, bool) {
	v, ok := c.Get(CtxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*ports.TokenClaims)
	return claims, ok && claims != nil
}

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, " \t\r\n") {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetString(CtxRequestID)
		reqLog := log.With().Str("request_id", reqID).Logger()
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))

		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := reqLog.Info()
		if status >= http.StatusInternalServerError {
			event = reqLog.Error()
		} else if status >= http.StatusBadRequest {
			event = reqLog.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Abort(c, apperror.New(apperror.CodeInternal, "Internal server error", http.StatusInternalServerError))
			}
		}()
		c.Next()
	}
}

// CORS answers preflight requests and sets the allow headers for listed
// origins. "*" allows every origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	allowHeaders := strings.Join([]string{
		HeaderAuthorization, "Content-Type", HeaderIdempotencyKey, HeaderServiceToken, HeaderRequestID, "x-client-info", "apikey",
	}, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Expose-Headers", HeaderRequestID+", Retry-After")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Metrics records request counts and latency per matched route.
func Metrics(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.Observe(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// NoRoute answers unknown paths with the error envelope.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Error(c, apperror.ErrRouteNotFound())
	}
}

// NoMethod answers known paths called with the wrong method.
func NoMethod() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Error(c, apperror.ErrMethodNotAllowed())
	}
}
