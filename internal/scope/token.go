package scope

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNoToken = errors.New("scope: access token unavailable")

// TokenSource fetches a client-credentials access token. Each call hits the
// token endpoint; a run asks for one token up front.
type TokenSource struct {
	cfg clientcredentials.Config
	hc  *http.Client
}

func NewTokenSource(tokenURL, clientID, clientSecret string, hc *http.Client) *TokenSource {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &TokenSource{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		hc: hc,
	}
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.hc)
	tok, err := s.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoToken, err)
	}
	if tok.AccessToken == "" {
		return "", ErrNoToken
	}
	return tok.AccessToken, nil
}
