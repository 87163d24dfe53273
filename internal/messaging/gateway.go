package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"

	"memberbot/internal/domain"
)

var ErrNoGateway = errors.New("no gateway for platform")

// Profile es el perfil publico que la plataforma expone de un usuario.
type Profile struct {
	DisplayName string
}

// Gateway define la interfaz hacia una plataforma de mensajeria.
type Gateway interface {
	Profile(ctx context.Context, userID string) (Profile, error)
	Reply(ctx context.Context, replyToken string, msgs []domain.Message) error
	Push(ctx context.Context, userID string, msgs []domain.Message) error
	Media(ctx context.Context, mediaID string) (io.ReadCloser, error)
}

// Registry resuelve el Gateway segun la plataforma del evento.
type Registry struct {
	gateways map[domain.Platform]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[domain.Platform]Gateway)}
}

func (r *Registry) Register(p domain.Platform, g Gateway) {
	r.gateways[p] = g
}

func (r *Registry) For(p domain.Platform) (Gateway, error) {
	if r == nil {
		return nil, ErrNoGateway
	}
	g, ok := r.gateways[p]
	if !ok || g == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoGateway, p)
	}
	return g, nil
}
