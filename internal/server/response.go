package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
)

// response 统一响应结构
type response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, response{Code: 0, Message: "ok", Data: data})
}

// fail 把应用错误映射为HTTP状态码。
// validation→400 conflict→409 not_found→404 forbidden→403 state→422
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
		message = err.Error()
	case apperr.KindConflict:
		status = http.StatusConflict
		message = err.Error()
	case apperr.KindNotFound:
		status = http.StatusNotFound
		message = err.Error()
	case apperr.KindForbidden:
		status = http.StatusForbidden
		message = err.Error()
	case apperr.KindState:
		status = http.StatusUnprocessableEntity
		message = err.Error()
	}

	c.AbortWithStatusJSON(status, response{Code: status, Message: message})
}
