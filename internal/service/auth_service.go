package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"greenhouse_control/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = time.Hour
	tokenIssuer     = "greenhouse-edge"
)

// AuthOptions configure token issuance for operator accounts.
type AuthOptions struct {
	SigningKey string
	TokenTTL   time.Duration
}

var (
	ErrInvalidPassword   = errors.New("invalid password")
	ErrEmptyUsername     = errors.New("username is empty")
	ErrOperatorNotFound  = errors.New("operator not found")
	ErrInvalidToken      = errors.New("invalid token")
	ErrNoSigningKey      = errors.New("auth signing key is not configured")
	errEmptyPasswordText = errors.New("password is empty")
)

// AuthService registers operators and issues the bearer tokens the control
// API requires.
type AuthService struct {
	operators  repository.Authorization
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewAuthService(repo repository.Authorization, opts AuthOptions) *AuthService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	return &AuthService{
		operators:  repo,
		signingKey: []byte(opts.SigningKey),
		ttl:        opts.TokenTTL,
		now:        time.Now,
	}
}

// normalizeUsername makes operator names case-insensitive.
func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SignUp stores a new operator with a bcrypt hash of password.
func (s *AuthService) SignUp(username, password string) (int, error) {
	name := normalizeUsername(username)
	if name == "" {
		return 0, ErrEmptyUsername
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	return s.operators.Create(name, hash)
}

// Claims are the JWT claims of an operator token.
type Claims struct {
	jwt.RegisteredClaims
	OperatorID int `json:"operator_id"`
}

// GenerateToken checks the credentials, stamps the sign-in and returns a token.
func (s *AuthService) GenerateToken(username, password string) (string, error) {
	op, err := s.operators.GetByUsername(normalizeUsername(username))
	if err != nil {
		return "", err
	}
	if op == nil {
		return "", ErrOperatorNotFound
	}
	if err := verifyPassword(op.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}

	token, err := s.issueToken(op.ID)
	if err != nil {
		return "", err
	}
	if err := s.operators.TouchSignIn(op.ID, s.now()); err != nil {
		return "", fmt.Errorf("record sign-in: %w", err)
	}
	return token, nil
}

// ParseToken validates an HS256 operator token and returns the operator ID.
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.OperatorID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.OperatorID, nil
}

func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errEmptyPasswordText
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) issueToken(operatorID int) (string, error) {
	if len(s.signingKey) == 0 {
		return "", ErrNoSigningKey
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OperatorID: operatorID,
	})
	return token.SignedString(s.signingKey)
}
