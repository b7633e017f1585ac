package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/caabsu/outlight-img2img/internal/infra"
	"github.com/caabsu/outlight-img2img/internal/sqlinline"
)

const (
	ProviderDashScope = "dashscope"
	ProviderArk       = "ark"
)

// KnownProvider reports whether the store recognizes the provider name.
func KnownProvider(provider string) bool {
	switch provider {
	case ProviderDashScope, ProviderArk:
		return true
	default:
		return false
	}
}

// Store persists provider API keys in the database so the server can run
// without keys in the environment.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored API key for the provider, or "" when none is set.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores the API key for a known provider.
func (s *Store) SetToken(ctx context.Context, provider, key string) error {
	if !KnownProvider(provider) {
		return fmt.Errorf("credentials: unknown provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("credentials: api key is required")
	}
	return s.upsert(ctx, provider, key, nil)
}

// DeleteToken removes the stored API key for the provider.
func (s *Store) DeleteToken(ctx context.Context, provider string) error {
	if !KnownProvider(provider) {
		return fmt.Errorf("credentials: unknown provider %q", provider)
	}
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	return err
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
