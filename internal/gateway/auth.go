package gateway

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/soyeahso/sharkchat/internal/config"
)

// Auth modes.
const (
	AuthModeToken    = "token"
	AuthModePassword = "password"
	AuthModeJWT      = "jwt"
	AuthModeNone     = "none"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // one of the auth modes
	// Subject is the widget user named by a JWT, if any.
	Subject string `json:"subject,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Operator reports whether the client authenticated with an operator
// credential rather than as an anonymous or widget user.
func (r AuthResult) Operator() bool {
	return r.Method == AuthModeToken || r.Method == AuthModePassword
}

// ResolvedAuth holds the resolved auth configuration for the gateway.
type ResolvedAuth struct {
	Mode      string
	Token     string
	Password  string
	JWTSecret string
	JWTIssuer string
}

// ResolveAuth resolves authentication credentials from config and environment.
// Precedence: config value → env variable → empty.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:      cfg.Mode,
		Token:     cfg.Token,
		Password:  cfg.Password,
		JWTSecret: cfg.JWTSecret,
		JWTIssuer: cfg.JWTIssuer,
	}

	if auth.Token == "" {
		auth.Token = os.Getenv("SHARKCHAT_GATEWAY_TOKEN")
	}
	if auth.Password == "" {
		auth.Password = os.Getenv("SHARKCHAT_GATEWAY_PASSWORD")
	}
	if auth.JWTSecret == "" {
		auth.JWTSecret = os.Getenv("SHARKCHAT_WIDGET_JWT_SECRET")
	}

	if auth.Mode == "" {
		if auth.Password != "" {
			auth.Mode = AuthModePassword
		} else {
			auth.Mode = AuthModeToken
		}
	}

	return auth
}

// Authorize checks the provided ConnectAuth against the resolved server auth.
// Operators holding the token or password may connect in every mode.
func Authorize(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if serverAuth.Mode == AuthModeNone {
		return AuthResult{OK: true, Method: AuthModeNone}
	}
	if clientAuth == nil {
		return AuthResult{OK: false, Reason: "no credentials provided"}
	}

	switch serverAuth.Mode {
	case AuthModeToken:
		return authorizeToken(serverAuth, clientAuth)

	case AuthModePassword:
		if serverAuth.Password == "" {
			return AuthResult{OK: false, Reason: "server password not configured"}
		}
		if clientAuth.Password == "" {
			return AuthResult{OK: false, Reason: "password required"}
		}
		if !safeEqual(clientAuth.Password, serverAuth.Password) {
			return AuthResult{OK: false, Reason: "password_mismatch"}
		}
		return AuthResult{OK: true, Method: AuthModePassword}

	case AuthModeJWT:
		if clientAuth.JWT == "" && clientAuth.Token != "" && serverAuth.Token != "" {
			return authorizeToken(serverAuth, clientAuth)
		}
		if serverAuth.JWTSecret == "" {
			return AuthResult{OK: false, Reason: "server jwt secret not configured"}
		}
		if clientAuth.JWT == "" {
			return AuthResult{OK: false, Reason: "jwt required"}
		}
		claims, err := ParseWidgetToken(serverAuth.JWTSecret, serverAuth.JWTIssuer, clientAuth.JWT)
		if err != nil {
			return AuthResult{OK: false, Reason: "invalid_jwt"}
		}
		return AuthResult{OK: true, Method: AuthModeJWT, Subject: claims.Subject}

	default:
		return AuthResult{OK: false, Reason: "unknown auth mode: " + serverAuth.Mode}
	}
}

func authorizeToken(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if serverAuth.Token == "" {
		return AuthResult{OK: false, Reason: "server token not configured"}
	}
	if clientAuth.Token == "" {
		return AuthResult{OK: false, Reason: "token required"}
	}
	if !safeEqual(clientAuth.Token, serverAuth.Token) {
		return AuthResult{OK: false, Reason: "token_mismatch"}
	}
	return AuthResult{OK: true, Method: AuthModeToken}
}

// WidgetClaims are the claims of a widget token.
type WidgetClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// IssueWidgetToken mints an HS256 widget token for subject, valid for ttl.
func IssueWidgetToken(secret, issuer, subject, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	now := time.Now()
	claims := WidgetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseWidgetToken verifies an HS256 widget token. When issuer is set the
// token must carry it.
func ParseWidgetToken(secret, issuer, token string) (*WidgetClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	claims := &WidgetClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing widget token: %w", err)
	}
	return claims, nil
}

// safeEqual performs a constant-time string comparison to prevent timing attacks.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
