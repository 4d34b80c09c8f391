package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/apperrors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// fail renders the stable error envelope. Internal causes are logged
// server-side and never echoed to the caller.
func (h *ShareHandler) fail(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr.Err != nil {
		h.logger.Error("request failed",
			zap.String("code", appErr.Code),
			zap.String("path", c.FullPath()),
			zap.Error(appErr.Err))
	}
	if appErr.Code == apperrors.ErrRateLimited.Code && h.counters.RateLimitDenials != nil {
		h.counters.RateLimitDenials.Inc()
	}
	c.JSON(appErr.Status, errorEnvelope{
		Success: false,
		Error:   errorBody{Code: appErr.Code, Message: appErr.Message},
	})
}
