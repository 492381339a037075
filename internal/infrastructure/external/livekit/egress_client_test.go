package livekit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"wss://lk.example.com", "https://lk.example.com"},
		{"ws://localhost:7880/", "http://localhost:7880"},
		{"https://lk.example.com", "https://lk.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpURL(tt.in), tt.in)
	}
}

func TestStartAndStopEgress(t *testing.T) {
	var started RoomCompositeEgressRequest
	var stopped map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return []byte("secret"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "key", claims["iss"])
		assert.Equal(t, map[string]any{"roomRecord": true}, claims["video"])

		switch r.URL.Path {
		case startRoomCompositePath:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&started))
			_, _ = w.Write([]byte(`{"egress_id":"EG_1","room_name":"standup","status":"EGRESS_STARTING"}`))
		case stopEgressPath:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&stopped))
			_, _ = w.Write([]byte(`{"egress_id":"EG_1","status":"EGRESS_ENDING"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewEgressClient("key", "secret", wsURL, S3Config{Bucket: "meetbot", Endpoint: "http://minio:9000"}, zap.NewNop())

	id, err := c.StartRoomCompositeEgress(context.Background(), "standup", "recordings/evt_1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "EG_1", id)
	assert.Equal(t, "standup", started.RoomName)
	require.Len(t, started.FileOutputs, 1)
	assert.Equal(t, "recordings/evt_1.mp4", started.FileOutputs[0].Filepath)
	assert.Equal(t, "meetbot", started.FileOutputs[0].S3.Bucket)

	require.NoError(t, c.StopEgress(context.Background(), id))
	assert.Equal(t, "EG_1", stopped["egress_id"])
}

func TestEgressErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthenticated"}`))
	}))
	defer srv.Close()

	c := NewEgressClient("key", "secret", srv.URL, S3Config{}, nil)
	_, err := c.StartRoomCompositeEgress(context.Background(), "standup", "out.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: 401")
}

func TestEgressMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewEgressClient("key", "secret", srv.URL, S3Config{}, nil)
	_, err := c.StartRoomCompositeEgress(context.Background(), "standup", "out.mp4")
	assert.Error(t, err)
}
