// ABOUTME: Read-only People API service for the Google contact source
// ABOUTME: Refreshed access tokens are written back so unattended runs keep working
package sync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

// NewPeopleClient creates a People API service limited to the contacts.readonly
// scope. A token that has expired and cannot be refreshed is rejected before
// any request is made.
func NewPeopleClient(ctx context.Context, token *oauth2.Token, logger *zap.Logger) (*people.Service, error) {
	if token == nil {
		return nil, errors.New("no Google token, run 'card2box google-init' first")
	}
	if !token.Valid() && token.RefreshToken == "" {
		return nil, errors.New("google token expired without refresh token, run 'card2box google-init' again")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	refresher := &savingTokenSource{
		src:    NewOAuthConfig().TokenSource(ctx, token),
		last:   token.AccessToken,
		save:   SaveToken,
		logger: logger,
	}
	ts := oauth2.ReuseTokenSource(token, refresher)

	service, err := people.NewService(ctx, option.WithTokenSource(ts), option.WithScopes(ContactsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create contacts service: %w", err)
	}
	return service, nil
}

// savingTokenSource stores every newly issued access token. Calls are
// serialized by the ReuseTokenSource wrapping it.
type savingTokenSource struct {
	src    oauth2.TokenSource
	last   string
	save   func(*oauth2.Token) error
	logger *zap.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh Google token: %w", err)
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.save(token); err != nil {
			s.logger.Warn("failed to store refreshed Google token", zap.Error(err))
		}
	}
	return token, nil
}
