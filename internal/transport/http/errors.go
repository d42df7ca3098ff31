package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/wallet-ledger/internal/apperr"
	"go.uber.org/zap"
)

type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.Validation:        http.StatusBadRequest,
	apperr.NotFound:          http.StatusNotFound,
	apperr.InsufficientFunds: http.StatusBadRequest,
	apperr.SelfTransfer:      http.StatusBadRequest,
	apperr.DuplicateEvent:    http.StatusOK,
	apperr.SignatureMismatch: http.StatusBadRequest,
	apperr.Conflict:          http.StatusConflict,
	apperr.StoreUnavailable:  http.StatusServiceUnavailable,
	apperr.Unauthenticated:   http.StatusUnauthorized,
	apperr.Forbidden:         http.StatusForbidden,
	apperr.Upstream:          http.StatusBadGateway,
	apperr.Internal:          http.StatusInternalServerError,
}

func statusFor(kind apperr.Kind) int {
	if code, ok := statusByKind[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// writeError renders err with the status of its kind. Internal causes are
// logged and never sent.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	writeErrorStatus(c, log, statusFor(apperr.KindOf(err)), err)
}

func writeErrorStatus(c *gin.Context, log *zap.SugaredLogger, status int, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		log.Errorw("request failed", "path", c.Request.URL.Path, "err", err)
	}
	if apperr.Retryable(err) {
		c.Header("Retry-After", "1")
	}
	c.JSON(status, errorBody{Status: "error", Code: string(kind), Message: apperr.Message(err)})
}
