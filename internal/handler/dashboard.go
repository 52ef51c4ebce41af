package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/triage-service/internal/controller"
	"github.com/psds-microservice/triage-service/internal/view"
)

// DashboardHandler: карта, аналитика и справочник.
type DashboardHandler struct {
	ctl       *controller.Controller
	staticURL string
	loc       *time.Location
	now       func() time.Time
}

func NewDashboardHandler(ctl *controller.Controller, staticMapURL string, loc *time.Location) *DashboardHandler {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardHandler{ctl: ctl, staticURL: staticMapURL, loc: loc, now: time.Now}
}

func (h *DashboardHandler) Map(c *gin.Context) {
	m := view.BuildMap(h.ctl.Tickets(), view.MapQuery{
		Category: c.Query("category"),
		Status:   c.Query("status"),
	}, h.staticURL)
	c.JSON(http.StatusOK, m)
}

func (h *DashboardHandler) Analytics(c *gin.Context) {
	a, err := view.BuildAnalytics(h.ctl.Tickets(), h.ctl.Catalog(), view.AnalyticsQuery{
		Range:    view.TimeRange(c.Query("range")),
		Category: c.Query("category"),
		Status:   c.Query("status"),
	}, h.now(), h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *DashboardHandler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctl.Catalog())
}
