package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/payment"
)

func successResponse(c echo.Context, msg string, obj interface{}) error {
	return jsonResponse(c, http.StatusOK, true, msg, obj)
}

func errorResponse(c echo.Context, code int, msg string) error {
	return jsonResponse(c, code, false, msg, nil)
}

func jsonResponse(c echo.Context, code int, ok bool, msg string, obj interface{}) error {
	return c.JSON(code, models.APIResponse{
		Status: ok,
		Msg:    msg,
		Obj:    obj,
	})
}

// gatewayErrorResponse reports a gateway failure with its single message.
func gatewayErrorResponse(c echo.Context, err error) error {
	var gerr *payment.Error
	if !errors.As(err, &gerr) {
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}

	code := http.StatusBadGateway
	switch gerr.Kind {
	case payment.KindValidationError:
		code = http.StatusBadRequest
	case payment.KindMissingCredentials:
		code = http.StatusServiceUnavailable
	}
	return jsonResponse(c, code, false, gerr.Error(), map[string]string{"kind": string(gerr.Kind)})
}

func paginatedResponse(data interface{}, total int64, page, limit int) models.PaginatedResponse {
	return models.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 20
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

// pageParams reads ?page= and ?limit= with sane bounds.
func pageParams(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
