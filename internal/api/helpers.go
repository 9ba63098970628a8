package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/crawlplane/internal/logger"
)

// parseLimitOffset parses limit and offset query params with defaults.
func parseLimitOffset(c *gin.Context, defaultLimit, defaultOffset int) (limit, offset int) {
	limitStr := c.DefaultQuery("limit", strconv.Itoa(defaultLimit))
	offsetStr := c.DefaultQuery("offset", strconv.Itoa(defaultOffset))
	limit, _ = strconv.Atoi(limitStr)
	offset, _ = strconv.Atoi(offsetStr)
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = defaultOffset
	}
	return limit, offset
}

// respondError sends the failure envelope for a wire error code.
func respondError(c *gin.Context, code, message string) {
	c.JSON(statusForCode(code), errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// respondBindError reports a request body that failed JSON binding.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorEnvelope{Error: errorBody{
		Code:    CodeInvalidRequest,
		Message: "invalid request body",
		Details: err.Error(),
	}})
}

// respondDomainError maps a coordinator or store error to the failure
// envelope. Unrecognized errors are logged and masked as internal.
func respondDomainError(c *gin.Context, log logger.Interface, err error) {
	code := codeForError(err)
	if code == CodeInternalError {
		log.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
		respondError(c, code, "internal error")
		return
	}

	respondError(c, code, err.Error())
}
