package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/triage-service/internal/mapper"
)

type ImageHandler struct {
	bot BotClient
}

func NewImageHandler(bot BotClient) *ImageHandler {
	return &ImageHandler{bot: bot}
}

// Get проксирует фото из мессенджера через бота; при ошибке: редирект на заглушку.
func (h *ImageHandler) Get(c *gin.Context) {
	ref := c.Param("ref")
	img, err := h.bot.FetchImage(c.Request.Context(), ref)
	if err != nil {
		slog.Debug("image proxy fallback", "ref", ref, "error", err)
		c.Redirect(http.StatusFound, mapper.PlaceholderImageURL)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, img.ContentType, img.Data)
}
