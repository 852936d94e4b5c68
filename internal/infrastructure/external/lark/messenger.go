package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/internflow/internal/application/port"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

const rolePrefix = "role:"

// Notifier implements port.Notifier by posting text messages through the IM API
type Notifier struct {
	messages      MessageCreator
	receiveIDType string
	receiveID     string
	roleReceivers map[string]string
	logger        *zap.Logger
}

// NewNotifier creates a Lark notifier
func NewNotifier(messages MessageCreator, cfg Config, logger *zap.Logger) (*Notifier, error) {
	if messages == nil {
		return nil, errors.New("lark message API is required")
	}
	if cfg.ReceiveID == "" {
		return nil, errors.New("lark receive_id cannot be empty")
	}
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = larkim.ReceiveIdTypeChatId
	}

	return &Notifier{
		messages:      messages,
		receiveIDType: idType,
		receiveID:     cfg.ReceiveID,
		roleReceivers: cfg.RoleReceivers,
		logger:        logger,
	}, nil
}

func (n *Notifier) Name() string {
	return "lark"
}

// Notify sends the notification to the role's destination or the default one
func (n *Notifier) Notify(ctx context.Context, msg port.Notification) error {
	body, err := n.buildMessage(msg)
	if err != nil {
		return err
	}
	receiveID := *body.ReceiveId

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(n.receiveIDType).
		Body(body).
		Build()

	resp, err := n.messages.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Int64("instance_id", msg.InstanceID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", receiveID),
		zap.String("event_type", msg.EventType))
	return nil
}

// buildMessage renders a notification as a text message addressed to its destination
func (n *Notifier) buildMessage(msg port.Notification) (*larkim.CreateMessageReqBody, error) {
	text := msg.Title + "\n" + msg.Body
	if msg.Recipient != "" && !strings.HasPrefix(msg.Recipient, rolePrefix) {
		text = fmt.Sprintf("%s\n(for %s)", text, msg.Recipient)
	}
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message content: %w", err)
	}

	return larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(n.destination(msg.Recipient)).
		MsgType(larkim.MsgTypeText).
		Content(string(content)).
		Build(), nil
}

func (n *Notifier) destination(recipient string) string {
	if role, ok := strings.CutPrefix(recipient, rolePrefix); ok {
		if id := n.roleReceivers[role]; id != "" {
			return id
		}
	}
	return n.receiveID
}
