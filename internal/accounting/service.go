// Package accounting connects an organization to its accounting tool over
// OAuth 2.0 and stores the resulting tokens sealed at rest.
package accounting

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type stateStore interface {
	Issue(ctx context.Context, orgID uuid.UUID) (string, error)
	Consume(ctx context.Context, state string) (uuid.UUID, error)
}

// ServiceParams wires the connect flow.
type ServiceParams struct {
	Config     config.AccountingConfig
	States     stateStore
	Repository Repository
	Sealer     *Sealer
	Logger     *logger.Logger
	Now        func() time.Time
}

type Service struct {
	provider string
	oauth    *oauth2.Config
	states   stateStore
	repo     Repository
	sealer   *Sealer
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.States == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "oauth state store required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounting repo required")
	}
	if params.Sealer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "token sealer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config
	return &Service{
		provider: cfg.Provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		states: params.States,
		repo:   params.Repository,
		sealer: params.Sealer,
		logg:   params.Logger,
		now:    now,
	}, nil
}

// Begin returns the provider authorization URL for orgID.
func (s *Service) Begin(ctx context.Context, orgID uuid.UUID) (string, error) {
	state, err := s.states.Issue(ctx, orgID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue oauth state")
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Complete consumes state, exchanges code and stores the sealed tokens.
func (s *Service) Complete(ctx context.Context, state, code, realmID string) (*models.AccountingConnection, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization code is required")
	}
	orgID, err := s.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid or expired state")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume oauth state")
	}
	ctx = s.logg.WithOrganizationID(ctx, orgID.String())

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "exchange authorization code").
			WithDetails(map[string]any{"step": "token_exchange", "provider": s.provider})
	}

	conn := &models.AccountingConnection{
		OrganizationID: orgID,
		Provider:       s.provider,
		RealmID:        realmID,
		ConnectedAt:    s.now().UTC(),
	}
	if err := s.store(ctx, conn, token); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "realm_id", realmID), "accounting tool connected")
	return conn, nil
}

// AccessToken returns a usable access token for orgID. An expired token is
// refreshed with the stored refresh token and the new pair is stored again.
func (s *Service) AccessToken(ctx context.Context, orgID uuid.UUID) (string, error) {
	conn, err := s.repo.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "accounting tool not connected")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accounting connection")
	}
	access, err := s.sealer.Open(conn.AccessTokenEnc)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open access token")
	}
	if conn.ExpiresAt == nil || s.now().Before(*conn.ExpiresAt) {
		return access, nil
	}

	refresh, err := s.sealer.Open(conn.RefreshTokenEnc)
	if err != nil || refresh == "" {
		return "", pkgerrors.New(pkgerrors.CodeConflict, "accounting connection expired; reconnect required")
	}
	ctx = s.logg.WithOrganizationID(ctx, orgID.String())
	fresh, err := s.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       *conn.ExpiresAt,
	}).Token()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeProvider, err, "refresh access token").
			WithDetails(map[string]any{"step": "token_refresh", "provider": s.provider})
	}
	if err := s.store(ctx, conn, fresh); err != nil {
		return "", err
	}
	s.logg.Info(ctx, "accounting token refreshed")
	return fresh.AccessToken, nil
}

func (s *Service) store(ctx context.Context, conn *models.AccountingConnection, token *oauth2.Token) error {
	access, err := s.sealer.Seal(token.AccessToken)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal access token")
	}
	refresh, err := s.sealer.Seal(token.RefreshToken)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal refresh token")
	}
	conn.AccessTokenEnc = access
	conn.RefreshTokenEnc = refresh
	conn.ExpiresAt = nil
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		conn.ExpiresAt = &expiry
	}
	if err := s.repo.Upsert(ctx, conn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store accounting connection")
	}
	return nil
}
