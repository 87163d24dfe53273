package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"memberbot/internal/artifact"
	"memberbot/internal/domain"
	"memberbot/internal/messaging"
	"memberbot/internal/metrics"
	"memberbot/internal/repository"
)

var (
	ErrExecutorNotConfigured = errors.New("effect executor not configured")
	ErrPhotoTooLarge         = errors.New("photo exceeds size limit")
	// ErrReplyFailed indica que el estado ya se guardo pero el envio fallo.
	ErrReplyFailed = errors.New("reply failed after commit")
)

const (
	qrFolder      = "qrcodes"
	photoFolder   = "photos"
	maxPhotoBytes = 10 << 20
)

// ExecutorConfig es la parte de la configuracion que el executor necesita.
type ExecutorConfig struct {
	PublicBaseURL string
	QRSize        int
	Timeout       time.Duration
}

// EffectExecutor aplica la lista de efectos de una Decision contra los
// colaboradores. Todo lo que no es mensaje corre primero; los mensajes solo
// salen despues de guardar.
type EffectExecutor struct {
	members  repository.MemberRepository
	gateways *messaging.Registry
	codes    artifact.CodeGenerator
	storage  artifact.Storage
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      ExecutorConfig
	now      func() time.Time
}

func NewEffectExecutor(
	members repository.MemberRepository,
	gateways *messaging.Registry,
	codes artifact.CodeGenerator,
	storage artifact.Storage,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg ExecutorConfig,
) *EffectExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &EffectExecutor{
		members:  members,
		gateways: gateways,
		codes:    codes,
		storage:  storage,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MemberResolutionURL es el payload que se codifica en el QR.
func MemberResolutionURL(publicBaseURL string, id int64) string {
	return fmt.Sprintf("%s/api/members/%d", strings.TrimRight(publicBaseURL, "/"), id)
}

// Execute devuelve el miembro tal como quedo persistido. Un error distinto de
// ErrReplyFailed significa que no se guardo nada.
func (x *EffectExecutor) Execute(ctx context.Context, ev domain.Event, d Decision) (domain.Member, error) {
	if x == nil || x.members == nil {
		return domain.Member{}, ErrExecutorNotConfigured
	}

	working := d.Member
	var replies []domain.Effect
	for _, effect := range d.Effects {
		if effect.Messaging() {
			replies = append(replies, effect)
			continue
		}
		var err error
		working, err = x.apply(ctx, ev, working, effect)
		if err != nil {
			x.metrics.EffectFailed(effect.Kind.String())
			return d.Member, fmt.Errorf("%s: %w", effect.Kind, err)
		}
	}

	if d.StateChanged() {
		from := d.From.String()
		if d.Created {
			from = "none"
		}
		x.metrics.Transition(from, working.Status.State.String())
	}

	var sendErr error
	for _, effect := range replies {
		msgs := effect.Render(working)
		if len(msgs) == 0 {
			continue
		}
		if err := x.send(ctx, ev, working, msgs); err != nil {
			x.metrics.EffectFailed(effect.Kind.String())
			x.logger.Warn("reply failed after commit",
				zap.String("user_id", working.ExternalUserID),
				zap.Int64("member_id", working.ID),
				zap.Error(err),
			)
			sendErr = errors.Join(sendErr, err)
		}
	}
	if sendErr != nil {
		return working, fmt.Errorf("%w: %w", ErrReplyFailed, sendErr)
	}
	return working, nil
}

func (x *EffectExecutor) apply(ctx context.Context, ev domain.Event, m domain.Member, effect domain.Effect) (domain.Member, error) {
	switch effect.Kind {
	case domain.EffectCreateMember:
		storeCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
		defer cancel()
		return x.members.Create(storeCtx, m)

	case domain.EffectStorePhoto:
		url, err := x.storePhoto(ctx, ev.Platform, m.ID, effect.MediaID)
		if err != nil {
			return m, err
		}
		m.PhotoURL = url
		return m, nil

	case domain.EffectEnsureQRCode:
		if m.QRCodeURL != "" {
			return m, nil
		}
		url, err := x.uploadQRCode(ctx, m.ID)
		if err != nil {
			return m, err
		}
		m.QRCodeURL = url
		return m, nil

	case domain.EffectSaveMember:
		storeCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
		defer cancel()
		return m, x.members.Update(storeCtx, m)
	}
	return m, fmt.Errorf("unsupported effect %s", effect.Kind)
}

func (x *EffectExecutor) storePhoto(ctx context.Context, platform domain.Platform, memberID int64, mediaID string) (string, error) {
	if x.storage == nil {
		return "", ErrExecutorNotConfigured
	}
	gw, err := x.gateways.For(platform)
	if err != nil {
		return "", err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	defer cancel()
	body, err := gw.Media(fetchCtx, mediaID)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, maxPhotoBytes+1))
	if err != nil {
		return "", fmt.Errorf("read media: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return "", ErrPhotoTooLarge
	}

	folder := fmt.Sprintf("%s/%d", photoFolder, memberID)
	key := fmt.Sprintf("%d_%d", memberID, x.now().UnixNano())
	upCtx, upCancel := context.WithTimeout(ctx, x.cfg.Timeout)
	defer upCancel()
	return x.storage.Upload(upCtx, data, folder, key)
}

func (x *EffectExecutor) uploadQRCode(ctx context.Context, memberID int64) (string, error) {
	if x.codes == nil || x.storage == nil {
		return "", ErrExecutorNotConfigured
	}
	png, err := x.codes.Generate(MemberResolutionURL(x.cfg.PublicBaseURL, memberID), x.cfg.QRSize)
	if err != nil {
		return "", fmt.Errorf("generate qr: %w", err)
	}
	upCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	defer cancel()
	return x.storage.Upload(upCtx, png, qrFolder, fmt.Sprintf("member_%d", memberID))
}

// send usa el reply token si existe y si no hace push al usuario.
func (x *EffectExecutor) send(ctx context.Context, ev domain.Event, m domain.Member, msgs []domain.Message) error {
	gw, err := x.gateways.For(ev.Platform)
	if err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	defer cancel()
	if ev.ReplyToken != "" {
		return gw.Reply(sendCtx, ev.ReplyToken, msgs)
	}
	return gw.Push(sendCtx, m.ExternalUserID, msgs)
}
