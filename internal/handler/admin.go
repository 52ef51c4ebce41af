package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/triage-service/internal/botrelay"
	"github.com/psds-microservice/triage-service/internal/controller"
	"github.com/psds-microservice/triage-service/internal/errs"
)

const connectTimeout = 30 * time.Second

// BotClient: вызовы бота, нужные админке и прокси изображений.
type BotClient interface {
	Ping(ctx context.Context) error
	FetchImage(ctx context.Context, ref string) (*botrelay.Image, error)
}

type AdminHandler struct {
	ctl *controller.Controller
	bot BotClient
}

func NewAdminHandler(ctl *controller.Controller, bot BotClient) *AdminHandler {
	return &AdminHandler{ctl: ctl, bot: bot}
}

func (h *AdminHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctl.State())
}

func (h *AdminHandler) Connect(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), connectTimeout)
	defer cancel()
	if err := h.ctl.Connect(ctx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctl.State())
}

// Seed: ?mode=demo|generated
func (h *AdminHandler) Seed(c *gin.Context) {
	if err := h.ctl.Seed(c.Request.Context(), c.Query("mode")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctl.State())
}

func (h *AdminHandler) Clear(c *gin.Context) {
	if err := h.ctl.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctl.State())
}

func (h *AdminHandler) Simulate(c *gin.Context) {
	t, err := h.ctl.Simulate()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type botURLRequest struct {
	BotBaseURL *string `json:"bot_base_url" binding:"required"`
}

func (h *AdminHandler) GetBotURL(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bot_base_url": h.ctl.BotBaseURL()})
}

func (h *AdminHandler) PutBotURL(c *gin.Context) {
	var req botURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	if err := h.ctl.SetBotBaseURL(c.Request.Context(), *req.BotBaseURL); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bot_base_url": h.ctl.BotBaseURL()})
}

// PingBot проверяет доступность бота. Недоступный бот: не ошибка запроса.
func (h *AdminHandler) PingBot(c *gin.Context) {
	err := h.bot.Ping(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"alive": true})
	case errs.KindOf(err) == errs.KindNotConfigured:
		writeError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"alive": false, "error": err.Error()})
	}
}
