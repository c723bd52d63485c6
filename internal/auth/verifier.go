package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatmesh/server/internal/domain"
)

// Claims carried by an issued access token. Issuance happens elsewhere;
// this side only verifies.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId,omitempty"`
}

// Verifier validates signed bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify checks signature and expiry and returns the embedded principal
// id. The principal id is the userId claim, falling back to the subject.
func (v *Verifier) Verify(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", domain.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrTokenExpired
		}
		return "", domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", domain.ErrInvalidToken
	}

	principal := claims.UserID
	if principal == "" {
		principal = claims.Subject
	}
	if principal == "" {
		return "", domain.ErrInvalidToken
	}

	return principal, nil
}
