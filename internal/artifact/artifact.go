package artifact

import (
	"context"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

var ErrEmptyPayload = errors.New("artifact: empty payload")

// CodeGenerator genera la imagen escaneable para una URL de identidad.
type CodeGenerator interface {
	Generate(payloadURL string, size int) ([]byte, error)
}

// Storage sube imagenes y devuelve una URL publica estable. Subir dos veces
// la misma (folder, key) sobrescribe.
type Storage interface {
	Upload(ctx context.Context, data []byte, folder, key string) (string, error)
}

// QRGenerator produce PNGs con go-qrcode.
type QRGenerator struct {
	Level qrcode.RecoveryLevel
}

func NewQRGenerator() QRGenerator {
	return QRGenerator{Level: qrcode.Medium}
}

func (g QRGenerator) Generate(payloadURL string, size int) ([]byte, error) {
	if payloadURL == "" {
		return nil, ErrEmptyPayload
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payloadURL, g.Level, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
