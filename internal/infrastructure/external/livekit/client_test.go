package livekit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/domain/ports"
	"github.com/johnquangdev/meetbot/pkg/config"
)

func TestRoomName(t *testing.T) {
	tests := []struct {
		address string
		want    string
		wantErr bool
	}{
		{address: "https://meet.example.com/rooms/standup", want: "standup"},
		{address: "https://meet.example.com/rooms/standup/", want: "standup"},
		{address: "https://meet.example.com/join?room=retro", want: "retro"},
		{address: "https://meet.example.com/", wantErr: true},
		{address: "https://meet.example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := RoomName(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testParams(port int) ports.DriverParams {
	return ports.DriverParams{
		SessionID: "evt-1",
		Port:      port,
		Meeting: entities.Meeting{
			ID:        "evt-1",
			JoinURL:   "https://meet.example.com/rooms/standup",
			StartTime: time.Now(),
		},
	}
}

func TestDriverInitializeAndIdentity(t *testing.T) {
	cfg := config.LiveKitConfig{
		URL:         "ws://localhost:7880",
		APIKey:      "key",
		APISecret:   "secret-secret-secret-secret-secret",
		BotIdentity: "meetbot",
		BotName:     "Meeting Bot",
		TokenTTL:    time.Hour,
	}
	factory := NewDriverFactory(cfg, config.StorageConfig{Type: "local"}, zap.NewNop())

	drv, err := factory.NewDriver(testParams(9223))
	require.NoError(t, err)
	d, ok := drv.(*Driver)
	require.True(t, ok)

	assert.Equal(t, "meetbot-9223", d.Identity())
	require.NoError(t, d.Initialize(context.Background()))
	assert.Equal(t, "standup", d.roomName)
	assert.NotEmpty(t, d.token)
	assert.Nil(t, d.recorder, "local storage disables egress")

	err = d.Join(context.Background(), "https://meet.example.com/rooms/other")
	assert.ErrorIs(t, err, ErrRoomMismatch)

	active, err := d.IsActive(context.Background())
	require.NoError(t, err)
	assert.False(t, active, "never joined")

	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))
}

func TestJoinBeforeInitialize(t *testing.T) {
	factory := NewDriverFactory(config.LiveKitConfig{BotIdentity: "meetbot"}, config.StorageConfig{}, nil)
	drv, err := factory.NewDriver(testParams(9222))
	require.NoError(t, err)

	err = drv.Join(context.Background(), "https://meet.example.com/rooms/standup")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestMockDriverLifecycle(t *testing.T) {
	factory := NewDriverFactory(config.LiveKitConfig{UseMock: true, MockLength: time.Minute}, config.StorageConfig{}, zap.NewNop())
	drv, err := factory.NewDriver(testParams(9222))
	require.NoError(t, err)

	m, ok := drv.(*mockDriver)
	require.True(t, ok)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Join(ctx, "https://meet.example.com/rooms/standup"))

	active, err := m.IsActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)

	now = now.Add(2 * time.Minute)
	active, err = m.IsActive(ctx)
	require.NoError(t, err)
	assert.False(t, active, "mock meeting ends after its length")

	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(ctx))
}
