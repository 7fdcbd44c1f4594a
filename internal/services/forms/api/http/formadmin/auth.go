package formadmin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/mw/forms/internal/platform/errors"
	"github.com/mw/forms/internal/platform/requestctx"
)

// Claims is the bearer token payload of an admin request.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	CompanyID int64  `json:"company_id"`
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator creates an authenticator for the shared signing secret.
func NewAuthenticator(secret string) (*Authenticator, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Authenticator{secret: []byte(secret), now: time.Now}, nil
}

// Sign issues a token for the given actor, valid for ttl.
func (a *Authenticator) Sign(userID string, companyID int64, ttl time.Duration) (string, error) {
	now := a.clock()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		CompanyID: companyID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses and validates a raw token.
func (a *Authenticator) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required")
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "bearer token expired", err)
		}
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "bearer token invalid", err)
	}
	if strings.TrimSpace(claims.UserID) == "" || claims.CompanyID <= 0 {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "bearer token lacks actor claims")
	}
	return claims, nil
}

// Require rejects requests without a valid bearer token and attaches the
// token's actor to the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required"))
			return
		}
		claims, err := a.Verify(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := requestctx.WithActor(r.Context(), claims.UserID, claims.CompanyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
