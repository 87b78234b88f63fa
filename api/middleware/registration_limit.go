package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/angelmondragon/proppilot-backend/api/responses"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
)

const maxRegistrationBody = 64 << 10

type windowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RegistrationLimitPolicy throttles organization sign-ups by caller address and by
// the contact details in the payload, so one business cannot be re-submitted with
// fresh names until the gate lets it through.
type RegistrationLimitPolicy struct {
	Window       time.Duration
	IPLimit      int
	ContactLimit int
}

func (p RegistrationLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.ContactLimit > 0)
}

type limitHit struct {
	dimension string
	count     int64
	limit     int
}

// RegistrationLimit enforces the policy against a fixed-window counter store.
// Counter failures fail closed with 503.
func RegistrationLimit(policy RegistrationLimitPolicy, counter windowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || counter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			scopes := map[string]int{}
			if ip := clientIP(r); ip != "" && policy.IPLimit > 0 {
				scopes["register:ip:"+ip] = policy.IPLimit
			}

			if policy.ContactLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRegistrationBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				email, phone := contactFields(body)
				if email != "" {
					scopes["register:email:"+hashValue(email)] = policy.ContactLimit
				}
				if phone != "" {
					scopes["register:phone:"+hashValue(phone)] = policy.ContactLimit
				}
			}

			for scope, limit := range scopes {
				allowed, count, err := counter.FixedWindowAllow(ctx, scope, int64(limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting unavailable"))
					return
				}
				if !allowed {
					dimension := strings.SplitN(strings.TrimPrefix(scope, "register:"), ":", 2)[0]
					respondLimited(ctx, logg, w, policy, limitHit{dimension: dimension, count: count, limit: limit})
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RegistrationLimitPolicy, hit limitHit) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"dimension":      hit.dimension,
			"attempts":       hit.count,
			"limit":          hit.limit,
			"window_seconds": int(policy.Window.Seconds()),
		})
		logg.Warn(logCtx, "registration.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many registration attempts").
		WithDetails(map[string]any{"dimension": hit.dimension}))
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// contactFields pulls the normalized email and phone digits out of a registration body.
func contactFields(payload []byte) (email, phone string) {
	var body struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", ""
	}
	email = strings.ToLower(strings.TrimSpace(body.Email))
	phone = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, body.Phone)
	return email, phone
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
