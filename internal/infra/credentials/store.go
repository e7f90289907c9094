package credentials

import (
	"context"
	"errors"
	"strings"

	"closet/internal/infra"
	"closet/internal/sqlinline"
)

// Provider names as stored in integration_tokens.provider.
const (
	ProviderFal         = "fal"
	ProviderKlingAccess = "kling_access"
	ProviderKlingSecret = "kling_secret"
	ProviderTagging     = "tagging"
)

// Providers lists every provider key the pipeline can read from the database.
func Providers() []string {
	return []string{ProviderFal, ProviderKlingAccess, ProviderKlingSecret, ProviderTagging}
}

// Store reads and writes provider credentials kept in Postgres. Environment
// variables always take precedence; the store only fills gaps.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored credential for provider, or "" when none exists.
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

// Set stores a credential for provider, replacing any previous value.
func (s *Store) Set(ctx context.Context, provider, token string) error {
	provider = strings.TrimSpace(provider)
	token = strings.TrimSpace(token)
	if !known(provider) {
		return errors.New("unknown provider " + provider)
	}
	if token == "" {
		return errors.New(provider + " token is required")
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token)
	return err
}

// Fill copies stored credentials into cfg for every provider whose
// environment variable was left empty. It returns the providers it filled.
func (s *Store) Fill(ctx context.Context, cfg *infra.Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	targets := map[string]*string{
		ProviderFal:         &cfg.Cutout.APIKey,
		ProviderKlingAccess: &cfg.TryOn.AccessKey,
		ProviderKlingSecret: &cfg.TryOn.SecretKey,
		ProviderTagging:     &cfg.Tagging.APIKey,
	}
	var missing []string
	for _, p := range Providers() {
		if *targets[p] == "" {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	rows, err := s.sql.Query(ctx, sqlinline.QSelectIntegrationTokens, missing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filled []string
	for rows.Next() {
		var provider, token string
		if err := rows.Scan(&provider, &token); err != nil {
			return nil, err
		}
		dst, ok := targets[provider]
		if !ok || *dst != "" {
			continue
		}
		*dst = strings.TrimSpace(token)
		filled = append(filled, provider)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filled, nil
}

func known(provider string) bool {
	for _, p := range Providers() {
		if p == provider {
			return true
		}
	}
	return false
}
