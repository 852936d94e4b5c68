package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/garyjia/internflow/internal/application/port"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMessages struct {
	reqs []*larkim.CreateMessageReq
	resp *larkim.CreateMessageResp
	err  error
}

func (f *fakeMessages) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &larkim.CreateMessageResp{Data: &larkim.CreateMessageRespData{MessageId: larkcore.StringPtr("om_1")}}, nil
}

func newTestNotifier(t *testing.T, f *fakeMessages) *Notifier {
	t.Helper()
	n, err := NewNotifier(f, Config{
		ReceiveID:     "oc_default",
		RoleReceivers: map[string]string{"director": "oc_directors"},
	}, zap.NewNop())
	require.NoError(t, err)
	return n
}

func TestNewNotifier_RequiresDestination(t *testing.T) {
	_, err := NewNotifier(&fakeMessages{}, Config{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewNotifier(nil, Config{ReceiveID: "oc_1"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNotifier_BuildMessageRoutesByRole(t *testing.T) {
	n := newTestNotifier(t, &fakeMessages{})

	tests := []struct {
		name      string
		msg       port.Notification
		receiveID string
		text      string
	}{
		{
			name:      "configured role",
			msg:       port.Notification{Recipient: "role:director", Title: "Approval requested", Body: "internship R1"},
			receiveID: "oc_directors",
			text:      "Approval requested\ninternship R1",
		},
		{
			name:      "unconfigured role falls back",
			msg:       port.Notification{Recipient: "role:admin", Title: "Approval requested", Body: "internship R1"},
			receiveID: "oc_default",
			text:      "Approval requested\ninternship R1",
		},
		{
			name:      "user recipient is named in the text",
			msg:       port.Notification{Recipient: "student-1", Title: "Workflow approved", Body: "internship R1 \"done\""},
			receiveID: "oc_default",
			text:      "Workflow approved\ninternship R1 \"done\"\n(for student-1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := n.buildMessage(tt.msg)
			require.NoError(t, err)
			require.NotNil(t, body.ReceiveId)
			assert.Equal(t, tt.receiveID, *body.ReceiveId)
			require.NotNil(t, body.MsgType)
			assert.Equal(t, larkim.MsgTypeText, *body.MsgType)

			var content map[string]string
			require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
			assert.Equal(t, tt.text, content["text"])
		})
	}
}

func TestNotifier_NotifySendsOneRequest(t *testing.T) {
	f := &fakeMessages{}
	n := newTestNotifier(t, f)

	require.NoError(t, n.Notify(context.Background(), port.Notification{Recipient: "role:director", Title: "Approval requested"}))
	require.NoError(t, n.Notify(context.Background(), port.Notification{Recipient: "student-1", Title: "Workflow approved"}))
	assert.Len(t, f.reqs, 2)
}

func TestNotifier_Failures(t *testing.T) {
	boom := errors.New("network down")
	n := newTestNotifier(t, &fakeMessages{err: boom})
	err := n.Notify(context.Background(), port.Notification{Title: "x"})
	assert.ErrorIs(t, err, boom)

	n = newTestNotifier(t, &fakeMessages{resp: &larkim.CreateMessageResp{
		CodeError: larkcore.CodeError{Code: 230001, Msg: "invalid receive_id"},
	}})
	err = n.Notify(context.Background(), port.Notification{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230001")
}
