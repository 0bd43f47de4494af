package googleauth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
)

// ServiceAccount builds a client option that signs requests as the service
// account identified by email and PEM private key.
func ServiceAccount(ctx context.Context, email, privateKey string, scopes ...string) (option.ClientOption, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("service account email is required")
	}
	if strings.TrimSpace(privateKey) == "" {
		return nil, errors.New("service account private key is required")
	}
	if !strings.Contains(privateKey, "PRIVATE KEY") {
		return nil, errors.New("service account private key is not PEM encoded")
	}
	cfg := &jwt.Config{
		Email:      email,
		PrivateKey: []byte(privateKey),
		Scopes:     scopes,
		TokenURL:   google.JWTTokenURL,
	}
	return option.WithHTTPClient(cfg.Client(ctx)), nil
}

// Endpoint returns options pointing a client at a custom endpoint, used for
// emulators and fakes. It returns nil when endpoint is empty.
func Endpoint(endpoint string) []option.ClientOption {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return []option.ClientOption{option.WithEndpoint(endpoint), option.WithoutAuthentication()}
}
