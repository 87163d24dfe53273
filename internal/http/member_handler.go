package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"memberbot/internal/domain"
	"memberbot/internal/repository"
)

type memberGetter interface {
	GetByID(ctx context.Context, id int64) (domain.Member, error)
}

// MemberHandler expone la resolucion de identidad que consulta el escaner.
type MemberHandler struct {
	logger  *zap.Logger
	members memberGetter
}

func NewMemberHandler(logger *zap.Logger, members memberGetter) *MemberHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemberHandler{logger: logger, members: members}
}

// GetMember maneja GET /api/members/:id.
func (h *MemberHandler) GetMember(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	member, err := h.members.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
			return
		}
		h.logger.Error("get member failed", zap.Int64("member_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	// Sin QR vigente (registro reiniciado o incompleto) no hay identidad que mostrar.
	if member.QRCodeURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}

	fields := []zap.Field{zap.Int64("member_id", member.ID)}
	if claims, ok := GetScannerClaims(c); ok {
		fields = append(fields, zap.String("scanner_id", claims.ScannerID))
	}
	h.logger.Info("member resolved", fields...)

	c.JSON(http.StatusOK, member.PublicIdentity())
}
