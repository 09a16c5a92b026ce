package auth

import (
	"fmt"

	dirdomain "advisor-chat/internal/domain/directory"
	chat_errors "advisor-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the access-token payload issued by the identity service.
type Claims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	OfficeID string `json:"office_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenParser validates access tokens minted elsewhere. This service never
// issues tokens.
type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

func (p *TokenParser) ParseAccessToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, chat_errors.ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, chat_errors.ErrUnauthorized
	}
	return claims, nil
}

// Identity resolves the claims into typed fields.
func (c *Claims) Identity() (uuid.UUID, dirdomain.Role, *uuid.UUID, error) {
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, "", nil, chat_errors.ErrUnauthorized
	}

	var officeID *uuid.UUID
	if c.OfficeID != "" {
		if id, err := uuid.Parse(c.OfficeID); err == nil {
			officeID = &id
		}
	}
	return userID, dirdomain.Role(c.Role), officeID, nil
}
