package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// OAuthClientFileEnv points at the Google client file directly, skipping the lookup by environment
const OAuthClientFileEnv = "LEDGER_GOOGLE_OAUTH_CLIENT_FILE"

// OAuthClientConfig is a Google OAuth client file as downloaded from the Cloud console.
// Exactly one of Installed (desktop client) or Web is set.
type OAuthClientConfig struct {
	Installed *OAuthClientSecrets `json:"installed,omitempty"`
	Web       *OAuthClientSecrets `json:"web,omitempty"`
}

type OAuthClientSecrets struct {
	ClientID     string   `json:"client_id" validate:"required"`
	ProjectID    string   `json:"project_id,omitempty"`
	AuthURI      string   `json:"auth_uri" validate:"required,url"`
	TokenURI     string   `json:"token_uri" validate:"required,url"`
	ClientSecret string   `json:"client_secret" validate:"required"`
	RedirectURIs []string `json:"redirect_uris" validate:"required,min=1,dive,uri"`
}

// Secrets returns whichever client section the file holds
func (c *OAuthClientConfig) Secrets() *OAuthClientSecrets {
	if c.Installed != nil {
		return c.Installed
	}
	return c.Web
}

// LoadOAuthClientWithEnv loads the file named by LEDGER_GOOGLE_OAUTH_CLIENT_FILE, or else
// oauthClient.<env>.json (oauthClient.json for an empty env) from the usual config locations.
// Only commands that talk to Google need it.
func LoadOAuthClientWithEnv(env string) (*OAuthClientConfig, error) {
	if path := os.Getenv(OAuthClientFileEnv); path != "" {
		return LoadOAuthClientFromPath(path)
	}

	name := "oauthClient.json"
	if env != "" {
		name = "oauthClient." + env + ".json"
	}
	path, err := findFile(name)
	if err != nil {
		return nil, fmt.Errorf("no Google OAuth client file (set %s or add %s): %w", OAuthClientFileEnv, name, err)
	}
	return LoadOAuthClientFromPath(path)
}

// LoadOAuthClientFromPath parses and validates a client file
func LoadOAuthClientFromPath(path string) (*OAuthClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth client file: %w", err)
	}

	var client OAuthClientConfig
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("failed to parse oauth client file %s: %w", path, err)
	}
	if (client.Installed == nil) == (client.Web == nil) {
		return nil, errors.New("oauth client file must have exactly one of an \"installed\" or a \"web\" section")
	}
	if err := validate.Struct(&client); err != nil {
		return nil, fmt.Errorf("oauth client validation failed: %w", err)
	}

	return &client, nil
}
