package rest

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soukmarket/settlement/internal/application"
)

// respondError maps a service error onto the wire. Internal causes are logged
// server-side and never serialized to the caller.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	if svcErr, ok := application.IsServiceError(err); ok {
		if svcErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error("request failed", "code", svcErr.Code, "path", c.Request.URL.Path, "error", err)
		}
		c.JSON(svcErr.HTTPStatus, gin.H{
			"error": gin.H{
				"code":    svcErr.Code,
				"message": svcErr.Message,
			},
		})
		return
	}

	logger.Error("unclassified request failure", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    application.ErrCodeInternal,
			"message": "Internal server error",
		},
	})
}
