// Package handlers exposes the access-control core over HTTP.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/access"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/apperrors"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
)

// Counters are the domain metrics the handlers feed. Nil fields are
// skipped, which keeps tests free of registry setup.
type Counters struct {
	SharesCreated    prometheus.Counter
	DownloadsGranted prometheus.Counter
	RateLimitDenials prometheus.Counter
}

// ShareHandler carries the handler dependencies.
type ShareHandler struct {
	svc      *access.Service
	logger   *zap.Logger
	counters Counters
}

// NewShareHandler builds the handler set over the access core.
func NewShareHandler(svc *access.Service, logger *zap.Logger, counters Counters) *ShareHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareHandler{svc: svc, logger: logger, counters: counters}
}

// Upload registers a share and hands back a presigned upload URL.
func (h *ShareHandler) Upload(c *gin.Context) {
	var req models.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.WithMessage(apperrors.ErrValidation, "invalid upload request"))
		return
	}

	resp, err := h.svc.CreateUpload(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.counters.SharesCreated != nil {
		h.counters.SharesCreated.Inc()
	}
	c.JSON(http.StatusCreated, resp)
}

// CompleteUpload confirms the object landed and triggers the scan.
func (h *ShareHandler) CompleteUpload(c *gin.Context) {
	if err := h.svc.CompleteUpload(c.Request.Context(), c.Param("shareId"), c.ClientIP()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// FileInfo returns the public metadata of a share.
func (h *ShareHandler) FileInfo(c *gin.Context) {
	resp, err := h.svc.FileInfo(c.Request.Context(), c.Param("shareId"), c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RequestDownload is download step 1: password gate, token out.
func (h *ShareHandler) RequestDownload(c *gin.Context) {
	req, err := bindOptionalPassword(c)
	if err != nil {
		h.fail(c, apperrors.WithMessage(apperrors.ErrValidation, "invalid download request"))
		return
	}

	resp, err := h.svc.RequestDownload(c.Request.Context(), c.Param("shareId"), req.Password, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RedeemToken is download step 2: token in, transfer URL out. The token
// rides a query parameter so step 2 stays a plain GET.
func (h *ShareHandler) RedeemToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		h.fail(c, apperrors.WithMessage(apperrors.ErrValidation, "missing download token"))
		return
	}

	resp, err := h.svc.RedeemToken(c.Request.Context(), token, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.counters.DownloadsGranted != nil {
		h.counters.DownloadsGranted.Inc()
	}
	c.JSON(http.StatusOK, resp)
}

// Delete removes a share behind the same password gate as downloads.
func (h *ShareHandler) Delete(c *gin.Context) {
	req, err := bindOptionalPassword(c)
	if err != nil {
		h.fail(c, apperrors.WithMessage(apperrors.ErrValidation, "invalid delete request"))
		return
	}

	resp, err := h.svc.Delete(c.Request.Context(), c.Param("shareId"), req.Password, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// bindOptionalPassword parses the optional password body. An absent or
// empty body is fine, and chunked requests carry no Content-Length, so
// the bind is always attempted rather than gated on body size.
func bindOptionalPassword(c *gin.Context) (models.DownloadRequest, error) {
	var req models.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return models.DownloadRequest{}, err
	}
	return req, nil
}

// HealthChecker reports one dependency's liveness.
type HealthChecker func(ctx context.Context) error

// Health reports dependency connectivity for orchestration probes.
func Health(checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = "down"
				status = http.StatusServiceUnavailable
			} else {
				deps[name] = "up"
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "dependencies": deps})
	}
}
