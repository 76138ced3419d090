package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserUUID string `json:"user_uuid,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier pulls the account id out of access tokens. With neither a
// secret nor a public key configured it parses without verifying; the
// token came straight from the auth service over our own connection.
type Verifier struct {
	secret []byte
	pub    *rsa.PublicKey
}

func NewVerifier(hsSecret, publicKeyPath string) (*Verifier, error) {
	v := &Verifier{}
	if publicKeyPath != "" {
		b, err := os.ReadFile(publicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		v.pub = pub
	}
	if hsSecret != "" {
		v.secret = []byte(hsSecret)
	}
	return v, nil
}

func (v *Verifier) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	switch {
	case v.pub != nil:
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return v.pub, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if err != nil {
			return nil, err
		}
	case v.secret != nil:
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return v.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			return nil, err
		}
	default:
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

func (v *Verifier) UserID(token string) (string, error) {
	c, err := v.Parse(token)
	if err != nil {
		return "", err
	}
	switch {
	case c.UserUUID != "":
		return c.UserUUID, nil
	case c.UserID != "":
		return c.UserID, nil
	case c.Subject != "":
		return c.Subject, nil
	}
	return "", errors.New("token carries no user id")
}
