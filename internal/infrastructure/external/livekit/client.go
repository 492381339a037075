package livekit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/livekit/protocol/auth"
	livekit "github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/domain/ports"
	"github.com/johnquangdev/meetbot/pkg/config"
)

var (
	ErrRoomNameMissing  = errors.New("join address has no room name")
	ErrRoomMismatch     = errors.New("join address does not match the initialized room")
	ErrNotInitialized   = errors.New("driver not initialized")
	ErrAlreadyConnected = errors.New("driver already joined")
)

// RoomName extracts the LiveKit room from a join address. A "room" query
// parameter wins over the last path segment.
func RoomName(address string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("invalid join address: %w", err)
	}
	if room := u.Query().Get("room"); room != "" {
		return room, nil
	}
	name := path.Base(strings.TrimRight(u.Path, "/"))
	if name == "" || name == "." || name == "/" {
		return "", ErrRoomNameMissing
	}
	return name, nil
}

// DriverFactory builds one LiveKit participant per session
type DriverFactory struct {
	cfg      config.LiveKitConfig
	rooms    *lksdk.RoomServiceClient
	recorder *EgressClient
	logger   *zap.Logger
}

// NewDriverFactory creates the factory used by the scheduler. Recording is
// enabled only when cfg.Record is set and outputs land in the object store.
func NewDriverFactory(cfg config.LiveKitConfig, storage config.StorageConfig, logger *zap.Logger) ports.DriverFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UseMock {
		logger.Warn("⚠️ Using mock LiveKit driver", zap.Duration("session_length", cfg.MockLength))
		return &mockFactory{length: cfg.MockLength, logger: logger}
	}

	f := &DriverFactory{
		cfg:    cfg,
		rooms:  lksdk.NewRoomServiceClient(httpURL(cfg.URL), cfg.APIKey, cfg.APISecret),
		logger: logger,
	}
	if cfg.Record && storage.Type == "minio" {
		f.recorder = NewEgressClient(cfg.APIKey, cfg.APISecret, cfg.URL, S3Config{
			AccessKey:      storage.AccessKeyID,
			Secret:         storage.SecretAccessKey,
			Bucket:         storage.BucketName,
			Endpoint:       endpointURL(storage.Endpoint, storage.UseSSL),
			ForcePathStyle: true,
			Region:         storage.Region,
		}, logger)
	}
	return f
}

func endpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// NewDriver implements ports.DriverFactory
func (f *DriverFactory) NewDriver(params ports.DriverParams) (ports.Driver, error) {
	return &Driver{
		cfg:      f.cfg,
		params:   params,
		rooms:    f.rooms,
		recorder: f.recorder,
		logger: f.logger.With(
			zap.String("session_id", params.SessionID),
			zap.Int("port", params.Port),
		),
	}, nil
}

// Driver is a headless LiveKit participant. Its identity carries the
// session port so concurrent bots never collide in one room.
type Driver struct {
	cfg      config.LiveKitConfig
	params   ports.DriverParams
	rooms    *lksdk.RoomServiceClient
	recorder *EgressClient
	logger   *zap.Logger

	mu           sync.Mutex
	roomName     string
	token        string
	room         *lksdk.Room
	egressID     string
	disconnected bool
	sawPeers     bool
	closed       bool
}

// Identity returns the participant identity used in the room
func (d *Driver) Identity() string {
	return fmt.Sprintf("%s-%d", d.cfg.BotIdentity, d.params.Port)
}

// Initialize resolves the room and signs the join token
func (d *Driver) Initialize(ctx context.Context) error {
	roomName, err := RoomName(d.params.Meeting.JoinURL)
	if err != nil {
		return err
	}

	canPublish := false
	canSubscribe := true
	at := auth.NewAccessToken(d.cfg.APIKey, d.cfg.APISecret)
	at.AddGrant(&auth.VideoGrant{
		RoomJoin:     true,
		Room:         roomName,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
		Hidden:       true,
	}).
		SetIdentity(d.Identity()).
		SetName(d.cfg.BotName).
		SetValidFor(d.cfg.TokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	d.mu.Lock()
	d.roomName = roomName
	d.token = token
	d.mu.Unlock()

	d.logger.Debug("🔑 Driver initialized", zap.String("room", roomName))
	return nil
}

// Join connects to the room and starts recording when configured
func (d *Driver) Join(ctx context.Context, address string) error {
	roomName, err := RoomName(address)
	if err != nil {
		return err
	}

	d.mu.Lock()
	switch {
	case d.token == "":
		d.mu.Unlock()
		return ErrNotInitialized
	case d.room != nil:
		d.mu.Unlock()
		return ErrAlreadyConnected
	case roomName != d.roomName:
		d.mu.Unlock()
		return fmt.Errorf("%w: %s != %s", ErrRoomMismatch, roomName, d.roomName)
	}
	token := d.token
	d.mu.Unlock()

	cb := lksdk.NewRoomCallback()
	cb.OnDisconnected = func() {
		d.mu.Lock()
		d.disconnected = true
		d.mu.Unlock()
		d.logger.Info("🔌 Disconnected from room", zap.String("room", roomName))
	}

	room, err := lksdk.ConnectToRoomWithToken(d.cfg.URL, token, cb, lksdk.WithAutoSubscribe(false))
	if err != nil {
		return fmt.Errorf("failed to connect to room %s: %w", roomName, err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		room.Disconnect()
		return ErrNotInitialized
	}
	d.room = room
	d.mu.Unlock()

	d.logger.Info("✅ Joined room",
		zap.String("room", roomName),
		zap.String("identity", d.Identity()),
	)

	if d.recorder == nil || d.params.Output.IsZero() {
		return nil
	}
	egressID, err := d.recorder.StartRoomCompositeEgress(ctx, roomName, d.params.Output.Path)
	if err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}
	d.mu.Lock()
	closed := d.closed
	if !closed {
		d.egressID = egressID
	}
	d.mu.Unlock()
	if closed {
		if err := d.recorder.StopEgress(context.Background(), egressID); err != nil {
			d.logger.Warn("⚠️ Failed to stop recording started after close", zap.Error(err))
		}
		return ErrNotInitialized
	}
	return nil
}

// IsActive reports whether the meeting is still going. The room must still
// exist on the server, and once other participants were seen at least one
// must remain.
func (d *Driver) IsActive(ctx context.Context) (bool, error) {
	d.mu.Lock()
	room, roomName, disconnected := d.room, d.roomName, d.disconnected
	d.mu.Unlock()

	if room == nil || disconnected {
		return false, nil
	}
	if room.ConnectionState() == lksdk.ConnectionStateDisconnected {
		return false, nil
	}

	resp, err := d.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{roomName}})
	if err != nil {
		return false, fmt.Errorf("failed to list rooms: %w", err)
	}
	if len(resp.GetRooms()) == 0 {
		return false, nil
	}

	peers := len(room.GetRemoteParticipants())
	d.mu.Lock()
	defer d.mu.Unlock()
	if peers > 0 {
		d.sawPeers = true
		return true, nil
	}
	return !d.sawPeers, nil
}

// Close stops recording and leaves the room. Safe to call more than once.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	room, egressID := d.room, d.egressID
	d.room = nil
	d.mu.Unlock()

	var errs []error
	if egressID != "" && d.recorder != nil {
		if err := d.recorder.StopEgress(ctx, egressID); err != nil {
			errs = append(errs, err)
		}
	}
	if room != nil {
		room.Disconnect()
		d.logger.Info("👋 Left room", zap.String("room", d.roomName))
	}
	return errors.Join(errs...)
}

// mockFactory builds drivers that pretend to attend for a fixed length
type mockFactory struct {
	length time.Duration
	logger *zap.Logger
}

func (f *mockFactory) NewDriver(params ports.DriverParams) (ports.Driver, error) {
	return &mockDriver{
		length: f.length,
		logger: f.logger.With(zap.String("session_id", params.SessionID), zap.Int("port", params.Port)),
		now:    time.Now,
	}, nil
}

type mockDriver struct {
	length time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	ready    bool
	joinedAt time.Time
	closed   bool
}

func (m *mockDriver) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	return nil
}

func (m *mockDriver) Join(ctx context.Context, address string) error {
	if _, err := RoomName(address); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrNotInitialized
	}
	m.joinedAt = m.now()
	m.logger.Info("🤖 Mock driver joined", zap.String("address", address))
	return nil
}

func (m *mockDriver) IsActive(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.joinedAt.IsZero() {
		return false, nil
	}
	return m.now().Sub(m.joinedAt) < m.length, nil
}

func (m *mockDriver) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
