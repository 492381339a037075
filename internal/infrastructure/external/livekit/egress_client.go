package livekit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	startRoomCompositePath = "/twirp/livekit.Egress/StartRoomCompositeEgress"
	stopEgressPath         = "/twirp/livekit.Egress/StopEgress"
)

// EgressClient records rooms through the LiveKit egress API
type EgressClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	s3        S3Config
	client    *http.Client
	logger    *zap.Logger
}

// S3Config holds the S3/MinIO destination egress uploads to
type S3Config struct {
	AccessKey      string `json:"access_key"`
	Secret         string `json:"secret"`
	Bucket         string `json:"bucket"`
	Endpoint       string `json:"endpoint"`
	ForcePathStyle bool   `json:"force_path_style"`
	Region         string `json:"region"`
}

// FileOutput represents file output configuration
type FileOutput struct {
	Filepath string    `json:"filepath"`
	S3       *S3Config `json:"s3,omitempty"`
}

// RoomCompositeEgressRequest represents a room composite egress request
type RoomCompositeEgressRequest struct {
	RoomName    string        `json:"room_name"`
	Layout      string        `json:"layout"`
	AudioOnly   bool          `json:"audio_only,omitempty"`
	FileOutputs []*FileOutput `json:"file_outputs"`
}

// EgressInfo is the subset of the egress response we use
type EgressInfo struct {
	EgressID string `json:"egress_id"`
	RoomName string `json:"room_name"`
	Status   string `json:"status"`
}

// NewEgressClient creates an egress client for the LiveKit server at livekitURL
func NewEgressClient(apiKey, apiSecret, livekitURL string, s3 S3Config, logger *zap.Logger) *EgressClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EgressClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   httpURL(livekitURL),
		s3:        s3,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// httpURL turns a ws(s):// server URL into the matching http(s):// API base
func httpURL(u string) string {
	u = strings.TrimRight(u, "/")
	switch {
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	}
	return u
}

// generateAccessToken signs a short-lived token carrying the room record grant
func (c *EgressClient) generateAccessToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": c.apiKey,
		"sub": c.apiKey,
		"nbf": now.Unix(),
		"iat": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"video": map[string]any{
			"roomRecord": true,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.apiSecret))
}

// StartRoomCompositeEgress starts recording roomName into objectKey of the configured bucket
func (c *EgressClient) StartRoomCompositeEgress(ctx context.Context, roomName, objectKey string) (string, error) {
	s3 := c.s3
	request := &RoomCompositeEgressRequest{
		RoomName: roomName,
		Layout:   "grid",
		FileOutputs: []*FileOutput{{
			Filepath: objectKey,
			S3:       &s3,
		}},
	}

	var info EgressInfo
	if err := c.call(ctx, startRoomCompositePath, request, &info); err != nil {
		c.logger.Error("❌ Failed to start egress",
			zap.String("room", roomName),
			zap.Error(err),
		)
		return "", err
	}
	if info.EgressID == "" {
		return "", fmt.Errorf("egress API returned no egress id")
	}

	c.logger.Info("⏺️ Started recording",
		zap.String("room", roomName),
		zap.String("egress_id", info.EgressID),
		zap.String("bucket", s3.Bucket),
		zap.String("key", objectKey),
	)
	return info.EgressID, nil
}

// StopEgress stops an ongoing egress
func (c *EgressClient) StopEgress(ctx context.Context, egressID string) error {
	var info EgressInfo
	if err := c.call(ctx, stopEgressPath, map[string]string{"egress_id": egressID}, &info); err != nil {
		c.logger.Error("❌ Failed to stop egress",
			zap.String("egress_id", egressID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("⏹️ Stopped recording", zap.String("egress_id", egressID))
	return nil
}

// call posts a JSON request to a twirp endpoint and decodes the response into out
func (c *EgressClient) call(ctx context.Context, endpoint string, request, out any) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.generateAccessToken()
	if err != nil {
		return fmt.Errorf("failed to generate access token: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("egress API error (status: %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
