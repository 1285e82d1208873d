package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/edtriage/triage/internal/platform/ml"
)

// RetryAfterSeconds is advertised on 503 responses caused by inference
// timeouts.
const RetryAfterSeconds = 5

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Coder is implemented by domain errors that name their own error code.
type Coder interface {
	ErrorCode() string
}

// ErrorHandler renders errors as ErrorResponse JSON. It understands echo
// HTTP errors, ozzo validation errors and the inference error taxonomy;
// anything else is a 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := Render(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Int("status", status).Msg("request failed")
		}
		if status == http.StatusServiceUnavailable {
			c.Response().Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

// Render maps err to an HTTP status and response body.
func Render(err error) (int, ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		body := ErrorResponse{Code: codeFor(he.Code), Message: messageOf(he)}
		if he.Internal != nil {
			var coder Coder
			if errors.As(he.Internal, &coder) {
				body.Code = coder.ErrorCode()
			} else if _, ok := inferenceStatus(he.Internal); ok {
				body.Code = inferenceCode(he.Internal)
			}
			var verrs validation.Errors
			if errors.As(he.Internal, &verrs) {
				body.Details = details(verrs)
			}
		}
		return he.Code, body
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, ErrorResponse{
			Code:    "validation_failed",
			Message: "request validation failed",
			Details: details(verrs),
		}
	}

	if status, ok := inferenceStatus(err); ok {
		return status, ErrorResponse{Code: inferenceCode(err), Message: inferenceMessage(status, err)}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Code:    codeFor(http.StatusInternalServerError),
		Message: "internal server error",
	}
}

func inferenceStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, ml.ErrInferenceTimeout):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, ml.ErrInference):
		return http.StatusBadGateway, true
	case errors.Is(err, ml.ErrSchemaMismatch):
		return http.StatusInternalServerError, true
	case errors.Is(err, ml.ErrInvalidInputShape), errors.Is(err, ml.ErrEmptyInput):
		return http.StatusBadRequest, true
	}
	return 0, false
}

func inferenceCode(err error) string {
	switch {
	case errors.Is(err, ml.ErrInferenceTimeout):
		return "inference_timeout"
	case errors.Is(err, ml.ErrInference):
		return "inference_failed"
	case errors.Is(err, ml.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ml.ErrEmptyInput):
		return "empty_input"
	default:
		return "invalid_input_shape"
	}
}

// InferenceHTTPError converts inference failures into an HTTP error that
// keeps the original error as Internal. Other errors are returned as is.
func InferenceHTTPError(err error) error {
	status, ok := inferenceStatus(err)
	if !ok {
		return err
	}
	return &echo.HTTPError{Code: status, Message: inferenceMessage(status, err), Internal: err}
}

// inferenceMessage hides server-side details such as artifact paths.
func inferenceMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func codeFor(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strcase.ToSnake(text)
}

func messageOf(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprint(m)
	}
}

func details(verrs validation.Errors) map[string]string {
	out := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		if ferr != nil {
			out[strcase.ToSnake(field)] = ferr.Error()
		}
	}
	return out
}
