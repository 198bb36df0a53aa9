// Package auth guards the operator endpoints with a bearer JWT.
package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/auth/config"
	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/token"
)

type Auth interface {
	Middleware(h http.HandlerFunc) http.HandlerFunc
	Enabled() bool
}

const cookieOperatorToken = "pixreconOperatorToken"

type operatorKey struct{}

type auth struct {
	cfg    config.Config
	zaplog *zap.Logger
}

func NewAuth(cfg config.Config, zaplog *zap.Logger) Auth {
	zaplog = zaplog.Named("auth")
	if cfg.Secret == "" {
		zaplog.Warn("AUTH_SECRET is empty, operator endpoints are open")
	}
	return &auth{cfg: cfg, zaplog: zaplog}
}

func (a *auth) Enabled() bool {
	return a.cfg.Secret != ""
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			h.ServeHTTP(w, r)
			return
		}

		// получение оператора из токена
		operator, err := a.getOperator(r)
		if err != nil {
			a.zaplog.Info("operator token rejected", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, errs.ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}

		// передаём управление хендлеру
		h.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), operator)))
	}
}

// getOperator reads the Authorization header, then the cookie.
func (a *auth) getOperator(r *http.Request) (string, error) {
	var tokenString string
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", errs.Wrap(token.ErrInvalidToken, "authorization scheme must be Bearer")
		}
		tokenString = strings.TrimSpace(value)
	} else {
		tokenCookie, err := r.Cookie(cookieOperatorToken)
		if err != nil {
			return "", errs.Wrap(token.ErrInvalidToken, "no token")
		}
		tokenString = tokenCookie.Value
	}
	return token.GetOperator(a.cfg.Secret, tokenString)
}

func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

// Operator returns the authenticated operator, empty when auth is disabled.
func Operator(ctx context.Context) string {
	operator, _ := ctx.Value(operatorKey{}).(string)
	return operator
}
