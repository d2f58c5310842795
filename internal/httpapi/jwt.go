package httpapi

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// A login challenge carries the username between a correct password and
// the verification code, so no server-side pending state is kept.
const (
	challengeExpiry = 5 * time.Minute
	challengeType   = "login_challenge"
)

var errChallengeInvalid = errors.New("invalid login challenge")

type challengeSigner struct {
	key []byte
	now func() time.Time
}

func newChallengeSigner(secret string) *challengeSigner {
	if secret != "" {
		return &challengeSigner{key: []byte(secret), now: time.Now}
	}
	// Generate a random key if no secret is configured.
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate challenge key: " + err.Error())
	}
	return &challengeSigner{key: b, now: time.Now}
}

func (c *challengeSigner) issue(username string) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"sub": username,
		"typ": challengeType,
		"exp": now.Add(challengeExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.key)
}

func (c *challengeSigner) parse(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.key, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Join(errChallengeInvalid, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errChallengeInvalid
	}
	if typ, _ := claims["typ"].(string); typ != challengeType {
		return "", errChallengeInvalid
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errChallengeInvalid
	}
	return sub, nil
}
