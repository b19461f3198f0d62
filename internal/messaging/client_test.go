package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	firebase "firebase.google.com/go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"fbadmin/internal/admin"
	"fbadmin/internal/testutil"
)

func newTestClient(t *testing.T, metrics admin.Metrics, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: "demo"},
		option.WithEndpoint(Endpoint(server.URL)),
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "fcm-token"})))
	require.NoError(t, err)
	sdk, err := app.Messaging(ctx)
	require.NoError(t, err)

	if metrics == nil {
		metrics = testutil.MockMetrics().AllowAll()
	}
	return NewClient(sdk, metrics)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://fcm.googleapis.com/v1", Endpoint(""))
	assert.Equal(t, "http://127.0.0.1:9000/v1", Endpoint("http://127.0.0.1:9000"))
}

func TestBuildCommonMessage(t *testing.T) {
	encoded, err := json.Marshal(BuildCommonMessage(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":{"topic":"news","notification":{"title":"FCM Notification","body":"Notification from FCM"}}}`, string(encoded))
}

func TestBuildOverrideMessage(t *testing.T) {
	encoded, err := json.Marshal(BuildOverrideMessage("sports"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":{
		"topic":"sports",
		"notification":{"title":"FCM Notification","body":"Notification from FCM"},
		"android":{"notification":{"click_action":"android.intent.action.MAIN"}},
		"apns":{"headers":{"apns-priority":"10"},"payload":{"aps":{"badge":1}}}
	}}`, string(encoded))
}

func TestClient_Send(t *testing.T) {
	tests := []struct {
		name         string
		validateOnly bool
		operation    string
	}{
		{name: "deliver", operation: "send"},
		{name: "dry run", validateOnly: true, operation: "send_dry_run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := testutil.MockMetrics()
			metrics.On("ObserveRemoteCall", admin.ServiceTypeMessaging, tt.operation, admin.OutcomeSuccess, mock.Anything).Once()

			var received map[string]any
			client := newTestClient(t, metrics, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/projects/demo/messages:send", r.URL.Path)
				assert.Equal(t, "Bearer fcm-token", r.Header.Get("Authorization"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
				_, _ = io.WriteString(w, `{"name":"projects/demo/messages/123"}`)
			})

			req := BuildOverrideMessage("weather")
			req.ValidateOnly = tt.validateOnly
			name, err := client.Send(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, "projects/demo/messages/123", name)

			if tt.validateOnly {
				assert.Equal(t, true, received["validate_only"])
			} else {
				assert.NotContains(t, received, "validate_only")
			}
			message := received["message"].(map[string]any)
			assert.Equal(t, "weather", message["topic"])
			assert.Contains(t, message, "apns")
			metrics.AssertExpectations(t)
		})
	}
}

func TestClient_Send_NilMessage(t *testing.T) {
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.Send(context.Background(), &Request{})
	assert.ErrorIs(t, err, admin.ErrInvalidArgument)
}

func TestClient_Send_RejectedLocally(t *testing.T) {
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.Send(context.Background(), BuildCommonMessage("not a topic!"))
	require.Error(t, err)
	assert.ErrorIs(t, err, admin.ErrInvalidArgument)
	assert.False(t, admin.IsRemoteError(err))
	assert.Equal(t, 2, admin.ExitCode(err))
}

func TestClient_Send_RemoteError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{
			name:   "invalid argument",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":400,"message":"Invalid topic","status":"INVALID_ARGUMENT"}}`,
			code:   admin.CodeInvalidArgument,
		},
		{
			name:   "permission denied",
			status: http.StatusForbidden,
			body:   `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`,
			code:   admin.CodePermissionDenied,
		},
		{
			name:   "unregistered",
			status: http.StatusNotFound,
			body: `{"error":{"code":404,"status":"NOT_FOUND","details":[` +
				`{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`,
			code: admin.CodeUnregistered,
		},
		{
			name:   "plain text body",
			status: http.StatusBadGateway,
			body:   "bad gateway",
			code:   admin.CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := testutil.MockMetrics()
			metrics.On("ObserveRemoteCall", admin.ServiceTypeMessaging, "send", admin.OutcomeFailure, mock.Anything).Once()
			client := newTestClient(t, metrics, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Send(context.Background(), BuildCommonMessage(""))
			require.Error(t, err)

			var sdkErr *admin.SdkError
			require.True(t, errors.As(err, &sdkErr))
			assert.Equal(t, admin.ServiceTypeMessaging, sdkErr.Service)
			assert.Equal(t, tt.code, admin.SdkCode(err))
			assert.Equal(t, tt.status, admin.HTTPStatus(err))
			assert.Equal(t, tt.body, admin.ErrorBody(err))
			assert.True(t, admin.IsRemoteError(err))
			assert.Equal(t, 0, admin.ExitCode(err))
			metrics.AssertExpectations(t)
		})
	}
}

func TestClient_SendAndReport(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"name":"projects/demo/messages/1"}`)
		})
		var out bytes.Buffer

		require.NoError(t, client.SendAndReport(context.Background(), &out, LabelOverride, BuildOverrideMessage("")))
		assert.Contains(t, out.String(), LabelOverride+"\n{\n  \"message\": {")
		assert.Contains(t, out.String(), "\"click_action\": \"android.intent.action.MAIN\"")
		assert.Contains(t, out.String(), "Message sent to Firebase for delivery, response:\nprojects/demo/messages/1\n")
	})

	t.Run("failure prints body", func(t *testing.T) {
		client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"status":"PERMISSION_DENIED"}}`)
		})
		var out bytes.Buffer

		err := client.SendAndReport(context.Background(), &out, LabelCommon, BuildCommonMessage(""))
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, admin.HTTPStatus(err))
		assert.Contains(t, out.String(), "Unable to send message to Firebase:\n{\"error\":{\"status\":\"PERMISSION_DENIED\"}}")
		assert.NotContains(t, out.String(), "Message sent")
	})

	t.Run("local rejection prints no failure body", func(t *testing.T) {
		client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		var out bytes.Buffer

		err := client.SendAndReport(context.Background(), &out, LabelCommon, BuildCommonMessage("not a topic!"))
		assert.ErrorIs(t, err, admin.ErrInvalidArgument)
		assert.NotContains(t, out.String(), "Unable to send message")
	})
}
