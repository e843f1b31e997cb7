// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON-ответов HTTP-обработчиков и отображения доменных
// ошибок в HTTP-статусы.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Response описывает стандартную структуру JSON-ответа сервера.
// Поле Status - статус запроса ("OK" или "Error").
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
	Code   string `json:"code,omitempty" example:"INSUFFICIENT_CREDITS"`
}

const (
	// StatusOK значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает ответ с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "gt", "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must not exceed %s", err.Field(), err.Param()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

type mapping struct {
	err    error
	status int
	code   string
}

var mappings = []mapping{
	{models.ErrInsufficientCredits, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS"},
	{models.ErrDuplicate, http.StatusConflict, "DUPLICATE"},
	{models.ErrAccountExists, http.StatusConflict, "ACCOUNT_EXISTS"},
	{models.ErrAlreadyLifetime, http.StatusConflict, "ALREADY_LIFETIME"},
	{models.ErrBonusClaimed, http.StatusConflict, "BONUS_ALREADY_CLAIMED"},
	{models.ErrPaymentNotSettled, http.StatusBadRequest, "PAYMENT_NOT_SETTLED"},
	{models.ErrUnknownProduct, http.StatusBadRequest, "UNKNOWN_PRODUCT"},
	{models.ErrAmountMismatch, http.StatusBadRequest, "AMOUNT_MISMATCH"},
	{models.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{models.ErrAccountMismatch, http.StatusForbidden, "ACCOUNT_MISMATCH"},
	{models.ErrSoldOutRefunded, http.StatusGone, "SOLD_OUT_REFUNDED"},
	{models.ErrSoldOut, http.StatusGone, "SOLD_OUT"},
	{models.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	{models.ErrPoolNotFound, http.StatusNotFound, "NOT_FOUND"},
	{models.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{models.ErrGatewayUnavailable, http.StatusBadGateway, "GATEWAY_UNAVAILABLE"},
}

// FromError отображает доменную ошибку в HTTP-статус и тело ответа.
// Ошибки хранилища и прочие непредвиденные ошибки дают 500 без подробностей.
func FromError(err error) (int, ErrorResponse) {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, ErrorResponse{Status: StatusError, Error: m.err.Error(), Code: m.code}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Status: StatusError, Error: "internal error", Code: "INTERNAL"}
}

// WriteError пишет ответ для доменной ошибки err.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := FromError(err)
	render.Status(r, status)
	render.JSON(w, r, body)
}
