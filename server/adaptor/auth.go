package adaptor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ponyo877/livedeck/server/domain"
)

const (
	tokenIssuer       = "livedeck"
	identityAudience  = "livedeck"
	presenterAudience = "livedeck-presenter"
)

var ErrInvalidToken = errors.New("invalid token")

type IdentityClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// PresenterClaims lists the presentation uids the bearer may drive.
type PresenterClaims struct {
	Presents []string `json:"presents"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies the HS256 tokens carried in the
// session-token and presenter-token cookies.
type TokenService struct {
	secret       []byte
	presenterTTL time.Duration
	now          func() time.Time
}

func NewTokenService(secret string, presenterTTL time.Duration) *TokenService {
	if presenterTTL <= 0 {
		presenterTTL = 12 * time.Hour
	}
	return &TokenService{
		secret:       []byte(secret),
		presenterTTL: presenterTTL,
		now:          time.Now,
	}
}

func (s *TokenService) IssueIdentity(identity domain.Identity, ttl time.Duration) (string, error) {
	now := s.now()
	claims := IdentityClaims{
		Name: identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(identity.UserID, 10),
			Audience:  jwt.ClaimStrings{identityAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) ParseIdentity(tokenString string) (*domain.Identity, error) {
	var claims IdentityClaims
	if err := s.parse(tokenString, &claims, identityAudience); err != nil {
		return nil, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("subject %q: %w", claims.Subject, ErrInvalidToken)
	}
	return &domain.Identity{UserID: userID, Name: claims.Name}, nil
}

// IssuePresenter merges uid into the uids already granted by previous, if
// previous is still valid.
func (s *TokenService) IssuePresenter(uid, previous string) (string, error) {
	var uids []string
	if previous != "" {
		if granted, err := s.ParsePresenter(previous); err == nil {
			uids = granted
		}
	}
	if !slices.Contains(uids, uid) {
		uids = append(uids, uid)
	}

	now := s.now()
	claims := PresenterClaims{
		Presents: uids,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{presenterAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.presenterTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) ParsePresenter(tokenString string) ([]string, error) {
	var claims PresenterClaims
	if err := s.parse(tokenString, &claims, presenterAudience); err != nil {
		return nil, err
	}
	return claims.Presents, nil
}

func (s *TokenService) PresenterTTL() time.Duration {
	return s.presenterTTL
}

func (s *TokenService) parse(tokenString string, claims jwt.Claims, audience string) error {
	if tokenString == "" {
		return ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// ChannelSignature is the Pusher-compatible "key:signature" auth string for
// a socket joining channel.
func ChannelSignature(key, secret, socketID, channel string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(socketID + ":" + channel))
	return key + ":" + hex.EncodeToString(mac.Sum(nil))
}
