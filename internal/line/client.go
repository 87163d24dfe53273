package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"go.uber.org/zap"

	"memberbot/internal/domain"
	"memberbot/internal/messaging"
)

// maxMessagesPerRequest es el limite de mensajes por reply/push de LINE.
const maxMessagesPerRequest = 5

var ErrEmptyMessages = errors.New("line: no messages to send")

// Client implementa messaging.Gateway sobre el SDK oficial de LINE.
type Client struct {
	api     *messaging_api.MessagingApiAPI
	blob    *messaging_api.MessagingApiBlobAPI
	timeout time.Duration
	logger  *zap.Logger
}

var _ messaging.Gateway = (*Client)(nil)

// NewClient arma los clientes de la Messaging API y de contenido. Las URLs
// base vacias usan los endpoints publicos de LINE.
func NewClient(baseURL, dataBaseURL, token string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: timeout}

	apiOpts := []messaging_api.MessagingApiAPIOption{messaging_api.WithHTTPClient(httpClient)}
	if baseURL != "" {
		apiOpts = append(apiOpts, messaging_api.WithEndpoint(baseURL))
	}
	api, err := messaging_api.NewMessagingApiAPI(token, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("line messaging api: %w", err)
	}

	blobOpts := []messaging_api.MessagingApiBlobAPIOption{messaging_api.WithBlobHTTPClient(httpClient)}
	if dataBaseURL != "" {
		blobOpts = append(blobOpts, messaging_api.WithBlobEndpoint(dataBaseURL))
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(token, blobOpts...)
	if err != nil {
		return nil, fmt.Errorf("line blob api: %w", err)
	}

	return &Client{api: api, blob: blob, timeout: timeout, logger: logger}, nil
}

// WithContext del SDK muta el cliente, por eso cada llamada trabaja sobre una copia.
func (c *Client) apiFor(ctx context.Context) *messaging_api.MessagingApiAPI {
	api := *c.api
	return api.WithContext(ctx)
}

func (c *Client) blobFor(ctx context.Context) *messaging_api.MessagingApiBlobAPI {
	blob := *c.blob
	return blob.WithContext(ctx)
}

func (c *Client) Profile(ctx context.Context, userID string) (messaging.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	profile, err := c.apiFor(ctx).GetProfile(userID)
	if err != nil {
		c.logger.Warn("line profile failed", zap.String("user_id", userID), zap.Error(err))
		return messaging.Profile{}, fmt.Errorf("line profile: %w", err)
	}
	return messaging.Profile{DisplayName: profile.DisplayName}, nil
}

func (c *Client) Reply(ctx context.Context, replyToken string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return ErrEmptyMessages
	}
	// Un reply token se usa una sola vez: lo que exceda el limite se descarta.
	if len(msgs) > maxMessagesPerRequest {
		c.logger.Warn("line reply truncated", zap.Int("messages", len(msgs)))
		msgs = msgs[:maxMessagesPerRequest]
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.apiFor(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   toLINEMessages(msgs),
	})
	if err != nil {
		c.logger.Warn("line reply failed", zap.Error(err))
		return fmt.Errorf("line reply: %w", err)
	}
	return nil
}

// Push parte los mensajes en lotes; cada lote lleva su propia retry key.
func (c *Client) Push(ctx context.Context, userID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return ErrEmptyMessages
	}
	for start := 0; start < len(msgs); start += maxMessagesPerRequest {
		end := min(start+maxMessagesPerRequest, len(msgs))
		if err := c.push(ctx, userID, msgs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) push(ctx context.Context, userID string, msgs []domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.apiFor(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To:       userID,
		Messages: toLINEMessages(msgs),
	}, uuid.NewString())
	if err != nil {
		c.logger.Warn("line push failed", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("line push: %w", err)
	}
	return nil
}

// Media devuelve el contenido binario de un mensaje de imagen. El llamador
// cierra el stream; el deadline lo pone el llamador via ctx.
func (c *Client) Media(ctx context.Context, mediaID string) (io.ReadCloser, error) {
	resp, err := c.blobFor(ctx).GetMessageContent(mediaID)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		c.logger.Warn("line content failed", zap.String("media_id", mediaID), zap.Error(err))
		return nil, fmt.Errorf("line content: %w", err)
	}
	return resp.Body, nil
}
