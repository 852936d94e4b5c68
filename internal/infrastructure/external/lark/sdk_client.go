package lark

import (
	"context"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// ReceiveIDType is the id kind of ReceiveID and RoleReceivers values (chat_id, open_id, user_id, email)
	ReceiveIDType string
	// ReceiveID is the default destination, usually a group chat
	ReceiveID string
	// RoleReceivers routes messages addressed to a role to its own destination
	RoleReceivers map[string]string
}

// MessageCreator is the slice of the IM API the notifier calls
type MessageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client *lark.Client
	appID  string
	logger *zap.Logger
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &SDKClient{
		client: client,
		appID:  cfg.AppID,
		logger: logger,
	}
}

// Messages returns the IM message API
func (c *SDKClient) Messages() MessageCreator {
	return c.client.Im.Message
}

// GetAppID returns the app ID
func (c *SDKClient) GetAppID() string {
	return c.appID
}
