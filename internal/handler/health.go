package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/triage-service/internal/controller"
	"github.com/psds-microservice/triage-service/internal/logging"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": logging.ServiceName,
		"time":    time.Now().Unix(),
	})
}

// Ready: сервис готов и в офлайн-режиме, поэтому состояние БД только сообщается.
func Ready(ctl *controller.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "datastore": ctl.State().State})
	}
}
