package gmailclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/utils"
)

// Client wraps the Gmail API client
type Client struct {
	service      *gmail.Service
	userID       string
	sender       string
	interval     time.Duration
	lastSendTime time.Time
	sendMutex    sync.Mutex
}

// NewClient creates a new Gmail client using an existing OAuth token.
// The token must carry the gmail.send scope; sheetsclient tokens do.
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, token *oauth2.Token, google config.GoogleConfig) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	return NewClientWithOptions(ctx, google, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
}

// NewClientWithOptions creates a client from explicit API options, e.g. an endpoint and HTTP client
func NewClientWithOptions(ctx context.Context, google config.GoogleConfig, opts ...option.ClientOption) (*Client, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	userID := google.GmailUserID
	if userID == "" {
		userID = "me"
	}

	return &Client{
		service:  service,
		userID:   userID,
		sender:   google.GmailSender,
		interval: EMAIL_INTERVAL,
	}, nil
}
