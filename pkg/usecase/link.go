package usecase

import (
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultLinkTTL keeps digest links clickable for a month
	DefaultLinkTTL = 30 * 24 * time.Hour

	linkClaimItem  = "item"
	linkPathPrefix = "/r/"
)

// LinkUseCase issues and resolves signed click-through links. A token binds
// a user to an article so the redirect handler can attribute the click.
type LinkUseCase struct {
	key     []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

type LinkOption func(*LinkUseCase)

// WithLinkClock overrides the clock used for issuing and validating tokens
func WithLinkClock(now func() time.Time) LinkOption {
	return func(uc *LinkUseCase) {
		uc.now = now
	}
}

func NewLinkUseCase(secret []byte, baseURL string, ttl time.Duration, opts ...LinkOption) *LinkUseCase {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	uc := &LinkUseCase{
		key:     secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Token signs an HS256 JWT carrying the user as subject and the article as
// the "item" claim
func (uc *LinkUseCase) Token(userID, articleID string) (string, error) {
	now := uc.now()
	tok, err := jwt.NewBuilder().
		Subject(userID).
		Claim(linkClaimItem, articleID).
		IssuedAt(now).
		Expiration(now.Add(uc.ttl)).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build link token", goerr.V(UserIDKey, userID), goerr.V(ArticleIDKey, articleID))
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, uc.key))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign link token", goerr.V(UserIDKey, userID), goerr.V(ArticleIDKey, articleID))
	}

	return string(signed), nil
}

// Issue returns the absolute click-through URL for the pair
func (uc *LinkUseCase) Issue(userID, articleID string) (string, error) {
	token, err := uc.Token(userID, articleID)
	if err != nil {
		return "", err
	}
	return uc.baseURL + linkPathPrefix + url.PathEscape(token), nil
}

// Resolve verifies a token and returns the user and article it was issued for.
// Bad signatures, expired tokens and missing claims are ErrValidation.
func (uc *LinkUseCase) Resolve(token string) (string, string, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, uc.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(uc.now)),
	)
	if err != nil {
		return "", "", goerr.Wrap(ErrValidation, "invalid link token", goerr.V("cause", err.Error()))
	}

	userID := tok.Subject()
	raw, ok := tok.Get(linkClaimItem)
	articleID, isString := raw.(string)
	if userID == "" || !ok || !isString || articleID == "" {
		return "", "", goerr.Wrap(ErrValidation, "link token lacks user or article")
	}

	return userID, articleID, nil
}
