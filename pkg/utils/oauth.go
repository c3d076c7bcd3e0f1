package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jakechorley/volunteer-ledger/internal/config"
)

const (
	AuthPort       = 3000
	authTimeout    = 5 * time.Minute
	callbackPath   = "/oauth/callback"
	tokenDirName   = ".volunteer-ledger/tokens"
	tokenFilePerms = 0600
	tokenDirPerms  = 0700
)

// OAuth scopes for Google APIs
const (
	ScopeSheets    = "https://www.googleapis.com/auth/spreadsheets"
	ScopeGmailSend = "https://www.googleapis.com/auth/gmail.send"
)

// one token covers both the ledger export and review mail
var ledgerScopes = []string{ScopeSheets, ScopeGmailSend}

var tokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

var (
	tokensMu sync.Mutex
	tokens   = map[string]*oauth2.Token{}
)

// GetOAuthConfig turns a loaded client file into an oauth2 config redirecting to the local callback
func GetOAuthConfig(client *config.OAuthClientConfig) (*oauth2.Config, error) {
	raw, err := json.Marshal(client)
	if err != nil {
		return nil, fmt.Errorf("encoding oauth client: %w", err)
	}

	cfg, err := google.ConfigFromJSON(raw, ledgerScopes...)
	if err != nil {
		return nil, fmt.Errorf("reading oauth client: %w", err)
	}
	cfg.RedirectURL = "http://localhost:" + strconv.Itoa(AuthPort) + callbackPath
	return cfg, nil
}

// missingScopes lists the ledger scopes absent from a space separated scope string
func missingScopes(granted string) []string {
	have := make(map[string]bool)
	for _, s := range strings.Fields(granted) {
		have[s] = true
	}
	var missing []string
	for _, s := range ledgerScopes {
		if !have[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

// checkScopes asks Google which scopes the access token was granted
func checkScopes(ctx context.Context, token *oauth2.Token) error {
	query := url.Values{"access_token": {token.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenInfoURL+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building tokeninfo request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("reading tokeninfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tokeninfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info struct {
		Scope string `json:"scope"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return fmt.Errorf("decoding tokeninfo response: %w", err)
	}
	if missing := missingScopes(info.Scope); len(missing) > 0 {
		return fmt.Errorf("token lacks scopes %s", strings.Join(missing, ", "))
	}
	return nil
}

// GetTokenWithFlow returns a usable token for env. The in-process cache is tried first,
// then the token file, and only then the browser consent flow. Callers are serialized.
func GetTokenWithFlow(ctx context.Context, oauthConfig *oauth2.Config, env string, logger *zap.Logger) (*oauth2.Token, error) {
	tokensMu.Lock()
	defer tokensMu.Unlock()

	if cached := tokens[env]; cached != nil && cached.Valid() {
		return cached, nil
	}

	store, err := DefaultTokenStore()
	if err != nil {
		return nil, err
	}

	token, err := obtainToken(ctx, oauthConfig, store, env, logger)
	if err != nil {
		return nil, err
	}
	tokens[env] = token
	return token, nil
}

func obtainToken(ctx context.Context, oauthConfig *oauth2.Config, store *TokenStore, env string, logger *zap.Logger) (*oauth2.Token, error) {
	stored, err := store.Load(env)
	if err != nil {
		logger.Warn("Ignoring unreadable token file", zap.String("env", env), zap.Error(err))
	}
	if stored != nil {
		if token := reuseToken(ctx, oauthConfig, store, env, stored, logger); token != nil {
			return token, nil
		}
	}

	logger.Info("Google authorization required", zap.String("env", env))

	state := uuid.NewString()
	fmt.Printf("\nOpen this URL to let the ledger use Google Sheets and Gmail:\n%s\n\n",
		oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline))

	code, err := listenForAuthCallback(ctx, state, logger)
	if err != nil {
		return nil, fmt.Errorf("waiting for authorization: %w", err)
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if err := checkScopes(ctx, token); err != nil {
		return nil, fmt.Errorf("new token rejected: %w", err)
	}

	if err := store.Save(env, token); err != nil {
		logger.Warn("Token will not survive this process", zap.Error(err))
	}
	return token, nil
}

// reuseToken returns the stored token, or its refreshed replacement, when it still carries
// every scope. A token with missing scopes is deleted so the next flow starts clean.
func reuseToken(ctx context.Context, oauthConfig *oauth2.Config, store *TokenStore, env string, stored *oauth2.Token, logger *zap.Logger) *oauth2.Token {
	candidate := stored
	refreshed := false
	if !stored.Valid() {
		if stored.RefreshToken == "" {
			return nil
		}
		token, err := oauthConfig.TokenSource(ctx, stored).Token()
		if err != nil || token.AccessToken == stored.AccessToken {
			logger.Info("Stored token could not be refreshed", zap.Error(err))
			return nil
		}
		candidate = token
		refreshed = true
	}

	if err := checkScopes(ctx, candidate); err != nil {
		logger.Warn("Discarding stored token", zap.Error(err))
		if err := store.Delete(env); err != nil {
			logger.Warn("Failed to delete token file", zap.Error(err))
		}
		return nil
	}

	if refreshed {
		logger.Info("Token refreshed")
		if err := store.Save(env, candidate); err != nil {
			logger.Warn("Failed to save refreshed token", zap.Error(err))
		}
	}
	return candidate
}

// callbackHandler accepts the redirect from Google once, rejecting any request whose
// state does not match the one sent with the consent URL
func callbackHandler(state string, codes chan<- string, errs chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "Authorization state mismatch", http.StatusBadRequest)
			return
		}
		if reason := query.Get("error"); reason != "" {
			http.Error(w, "Authorization denied", http.StatusForbidden)
			sendOnce(errs, fmt.Errorf("authorization denied: %s", reason))
			return
		}
		code := query.Get("code")
		if code == "" {
			http.Error(w, "Authorization failed", http.StatusBadRequest)
			sendOnce(errs, errors.New("no authorization code received"))
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Volunteer Ledger</title></head>
<body><h1>Signed in</h1><p>Google access granted. Return to the ledger CLI.</p></body></html>`)
		sendOnce(codes, code)
	}
}

// sendOnce drops the value when the buffered channel is already full
func sendOnce[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// listenForAuthCallback serves the redirect URL on localhost until a code arrives
func listenForAuthCallback(ctx context.Context, state string, logger *zap.Logger) (string, error) {
	ln, err := net.Listen("tcp", "localhost:"+strconv.Itoa(AuthPort))
	if err != nil {
		return "", fmt.Errorf("opening callback port %d: %w", AuthPort, err)
	}

	codes := make(chan string, 1)
	errs := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle(callbackPath, callbackHandler(state, codes, errs))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sendOnce(errs, fmt.Errorf("callback server: %w", err))
		}
	}()
	defer func() {
		stopCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Warn("Failed to stop OAuth callback server", zap.Error(err))
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	select {
	case code := <-codes:
		return code, nil
	case err := <-errs:
		return "", err
	case <-waitCtx.Done():
		return "", fmt.Errorf("no authorization within %v: %w", authTimeout, waitCtx.Err())
	}
}

// TokenStore keeps one token file per environment in a directory only the owner can read
type TokenStore struct {
	dir string
}

func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

// DefaultTokenStore stores tokens under ~/.volunteer-ledger/tokens
func DefaultTokenStore() (*TokenStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locating home directory for tokens: %w", err)
	}
	return NewTokenStore(filepath.Join(home, tokenDirName)), nil
}

func (s *TokenStore) path(env string) string {
	if env == "" {
		env = "default"
	}
	return filepath.Join(s.dir, "token-"+env+".json")
}

// Load returns the token saved for env, or nil when there is none
func (s *TokenStore) Load(env string) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path(env))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token for %q: %w", env, err)
	}

	token := new(oauth2.Token)
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("corrupt token file for %q: %w", env, err)
	}
	return token, nil
}

// Save replaces the token for env. The file is renamed into place so a reader never sees half a token.
func (s *TokenStore) Save(env string, token *oauth2.Token) error {
	if err := os.MkdirAll(s.dir, tokenDirPerms); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), tokenFilePerms); err != nil {
		return fmt.Errorf("restricting token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(env)); err != nil {
		return fmt.Errorf("storing token for %q: %w", env, err)
	}
	return nil
}

// Delete removes the token for env; a missing file is not an error
func (s *TokenStore) Delete(env string) error {
	if err := os.Remove(s.path(env)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting token for %q: %w", env, err)
	}
	return nil
}
