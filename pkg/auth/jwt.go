package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mahaj/supportdesk/pkg/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the caller of the sync engine. Requester tokens are scoped
// to a single conversation; operator tokens are not.
type Claims struct {
	Role           model.Role `json:"role"`
	Identity       string     `json:"identity"`
	ConversationID int64      `json:"conversation_id,omitempty"`
	jwt.RegisteredClaims
}

// CanAccess reports whether the caller may act on the conversation.
func (c *Claims) CanAccess(conversationID int64) bool {
	return c.Role == model.RoleOperator || c.ConversationID == conversationID
}

type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{key: []byte(secret), ttl: ttl, now: time.Now}
}

// OperatorToken creates a token for a staff operator.
func (i *Issuer) OperatorToken(operatorID string) (string, error) {
	return i.sign(&Claims{Role: model.RoleOperator, Identity: operatorID})
}

// RequesterToken creates a token bound to one conversation.
func (i *Issuer) RequesterToken(identity string, conversationID int64) (string, error) {
	return i.sign(&Claims{Role: model.RoleRequester, Identity: identity, ConversationID: conversationID})
}

func (i *Issuer) sign(claims *Claims) (string, error) {
	now := i.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.key)
}

// Validate parses and validates a JWT token
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))

	if err != nil {
		return nil, err
	}

	if !token.Valid || !claims.Role.Valid() || claims.Identity == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
