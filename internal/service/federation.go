package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenInfoFederation verifies identity tokens against a provider's token-info endpoint,
// e.g. https://oauth2.googleapis.com/tokeninfo.
type TokenInfoFederation struct {
	Endpoint string
	// Audience, when set, must match the token's aud claim.
	Audience string
	Client   *http.Client
}

// NewTokenInfoFederation returns a federation client with a short request timeout.
func NewTokenInfoFederation(endpoint, audience string) *TokenInfoFederation {
	return &TokenInfoFederation{
		Endpoint: endpoint,
		Audience: audience,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type tokenInfo struct {
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Aud           string `json:"aud"`
}

func (f *TokenInfoFederation) Verify(ctx context.Context, token string) (FederatedIdentity, error) {
	u, err := url.Parse(f.Endpoint)
	if err != nil {
		return FederatedIdentity{}, fmt.Errorf("token info endpoint: %w", err)
	}
	q := u.Query()
	q.Set("id_token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return FederatedIdentity{}, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return FederatedIdentity{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return FederatedIdentity{}, fmt.Errorf("token info: unexpected status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return FederatedIdentity{}, fmt.Errorf("decode token info: %w", err)
	}
	if !strings.EqualFold(info.EmailVerified, "true") {
		return FederatedIdentity{}, errors.New("token info: email not verified")
	}
	if f.Audience != "" && info.Aud != f.Audience {
		return FederatedIdentity{}, errors.New("token info: audience mismatch")
	}

	return FederatedIdentity{
		Email:      info.Email,
		Fullname:   info.Name,
		ProfileImg: info.Picture,
	}, nil
}
