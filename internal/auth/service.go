package auth

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

const (
	issuer = "cthulhu-news"

	// VisitorContextKey holds the validated visitor id in the gin context.
	VisitorContextKey = "visitor_id"
)

var (
	ErrMissingToken = errors.New("missing visitor token")
	ErrInvalidToken = errors.New("invalid token")
)

// Service issues and validates visitor tokens. A visitor token only proves
// that the server minted the opaque visitor id it carries.
type Service struct {
	jwtSecret     string
	jwtExpiration time.Duration
	now           func() time.Time
}

type Claims struct {
	VisitorID string `json:"visitor_id"`
	jwt.RegisteredClaims
}

type VisitorResponse struct {
	VisitorID string `json:"visitor_id"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func NewService(jwtSecret string, jwtExpiration time.Duration) *Service {
	return &Service{
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		now:           time.Now,
	}
}

// NewVisitorID returns a fresh visitor id: the current time in
// milliseconds, the same form the pages generate locally.
func (s *Service) NewVisitorID() string {
	return strconv.FormatInt(s.now().UnixMilli(), 10)
}

func (s *Service) IssueVisitorToken(visitorID string) (*VisitorResponse, error) {
	if visitorID == "" {
		return nil, errors.New("visitor id required")
	}
	now := s.now()
	expirationTime := now.Add(s.jwtExpiration)

	claims := &Claims{
		VisitorID: visitorID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   visitorID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &VisitorResponse{
		VisitorID: visitorID,
		Token:     tokenString,
		ExpiresAt: expirationTime.Unix(),
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if !token.Valid || claims.VisitorID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Pseudonym maps a visitor id to a stable keyed hash, so the reaction
// database never stores raw visitor ids.
func (s *Service) Pseudonym(visitorID string) string {
	h, err := blake2b.New256([]byte(s.jwtSecret))
	if err != nil {
		// keys longer than 64 bytes are rejected; hash the secret down first
		sum := blake2b.Sum256([]byte(s.jwtSecret))
		h, _ = blake2b.New256(sum[:])
	}
	h.Write([]byte(visitorID))
	return hex.EncodeToString(h.Sum(nil))
}

// VisitorMiddleware requires a bearer visitor token and stores the visitor
// id under VisitorContextKey.
func (s *Service) VisitorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}
		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}
		c.Set(VisitorContextKey, claims.VisitorID)
		c.Next()
	}
}
