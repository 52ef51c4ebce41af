package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/triage-service/internal/botrelay"
	"github.com/psds-microservice/triage-service/internal/controller"
	"github.com/psds-microservice/triage-service/internal/model"
	"github.com/psds-microservice/triage-service/internal/view"
)

// Лимит размера вложения в ответе оператора.
const maxReplyFile = 10 << 20

type TicketHandler struct {
	ctl *controller.Controller
}

func NewTicketHandler(ctl *controller.Controller) *TicketHandler {
	return &TicketHandler{ctl: ctl}
}

// List отдаёт канбан-доску: ?grouping=status|priority|category&sort=date_desc|date_asc|priority&columns=a,b
func (h *TicketHandler) List(c *gin.Context) {
	q := view.BoardQuery{
		Grouping: view.Grouping(c.Query("grouping")),
		Sort:     view.SortOrder(c.Query("sort")),
	}
	for _, v := range c.QueryArray("columns") {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.Columns = append(q.Columns, id)
			}
		}
	}
	board, err := view.BuildBoard(h.ctl.Tickets(), h.ctl.Catalog(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *TicketHandler) Get(c *gin.Context) {
	t, err := h.ctl.Ticket(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) History(c *gin.Context) {
	msgs, err := h.ctl.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *TicketHandler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := h.ctl.SetStatus(c.Request.Context(), c.Param("id"), model.TicketStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type priorityRequest struct {
	Priority string `json:"priority" binding:"required"`
}

func (h *TicketHandler) SetPriority(c *gin.Context) {
	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := h.ctl.SetPriority(c.Request.Context(), c.Param("id"), model.Priority(req.Priority))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Delete(c *gin.Context) {
	if err := h.ctl.SoftDelete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveRequest struct {
	Grouping string `json:"grouping" binding:"required"`
	Target   string `json:"target" binding:"required"`
}

// Move: перенос карточки между колонками доски.
func (h *TicketHandler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	q, err := view.BoardQuery{Grouping: view.Grouping(req.Grouping)}.Normalize()
	if err != nil {
		writeError(c, err)
		return
	}
	t, err := h.ctl.Move(c.Request.Context(), c.Param("id"), q.Grouping, req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Reply принимает multipart-форму: text и необязательный file (только изображения).
func (h *TicketHandler) Reply(c *gin.Context) {
	text := c.PostForm("text")
	var file *botrelay.File
	if fh, err := c.FormFile("file"); err == nil {
		if fh.Size > maxReplyFile {
			badRequest(c, "file too large")
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "cannot read file")
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxReplyFile+1))
		f.Close()
		if err != nil || len(data) > maxReplyFile {
			badRequest(c, "cannot read file")
			return
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = http.DetectContentType(data)
		}
		file = &botrelay.File{Name: fh.Filename, ContentType: ct, Data: data}
	} else if err != http.ErrMissingFile {
		badRequest(c, "invalid multipart form")
		return
	}
	t, err := h.ctl.Reply(c.Request.Context(), c.Param("id"), text, file)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
