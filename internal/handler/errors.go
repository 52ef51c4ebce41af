package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/triage-service/internal/errs"
)

// statusFor выбирает HTTP-статус по виду ошибки.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindNotConfigured:
		return http.StatusServiceUnavailable
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindSchemaMismatch:
		return http.StatusInternalServerError
	default:
		// relay, remote
		return http.StatusBadGateway
	}
}

// errorText: ответ бота отдаётся оператору как есть, без префикса операции.
func errorText(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Kind == errs.KindRelay && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}

func writeError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	body := gin.H{"error": errorText(err), "kind": kind}
	if kind == errs.KindSchemaMismatch {
		body["hint"] = errs.SchemaHint
	}
	_ = c.Error(err)
	c.JSON(statusFor(err), body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": errs.KindValidation})
}
