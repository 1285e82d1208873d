package cases

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/edtriage/triage/internal/platform/auth"
	"github.com/edtriage/triage/internal/platform/middleware"
	"github.com/edtriage/triage/internal/platform/ml"
	"github.com/edtriage/triage/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleDoctor))
	clinical.GET("/patients/:id/case", h.GetState)
	clinical.POST("/triage/extract-symptoms", h.ExtractSymptoms)

	nurse := api.Group("", auth.RequireRole(auth.RoleNurse))
	nurse.POST("/triage-cases", h.SubmitTriage)
	nurse.POST("/emergency-cases", h.CreateEmergency)
	nurse.GET("/dashboard/nurse", h.NurseDashboard)

	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.DELETE("/triage-cases/:id", h.Resolve)
	doctor.POST("/emergency-cases/:id/convert", h.Convert)
	doctor.GET("/dashboard/doctor", h.DoctorDashboard)
}

func actor(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return p, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// httpError maps state machine and pipeline failures to HTTP errors.
// A conflict found by the pre-check is a 400; one caught by the storage
// guard is a 409.
func httpError(err error) error {
	var conflict *ConflictError
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return err
	case errors.As(err, &conflict):
		code := http.StatusBadRequest
		if conflict.Raced {
			code = http.StatusConflict
		}
		return &echo.HTTPError{Code: code, Message: conflict.Error(), Internal: conflict}
	case errors.Is(err, ErrNotFound):
		return &echo.HTTPError{Code: http.StatusNotFound, Message: err.Error(), Internal: err}
	case errors.Is(err, ErrUnauthorized):
		return &echo.HTTPError{Code: http.StatusForbidden, Message: err.Error(), Internal: err}
	}
	return middleware.InferenceHTTPError(err)
}

func (h *Handler) SubmitTriage(c echo.Context) error {
	p, err := actor(c)
	if err != nil {
		return err
	}
	var req IntakeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.SubmitTriage(c.Request().Context(), p, req)
	if err != nil {
		return httpError(err)
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

func (h *Handler) CreateEmergency(c echo.Context) error {
	p, err := actor(c)
	if err != nil {
		return err
	}
	var req EmergencyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	e, err := h.svc.CreateEmergency(c.Request().Context(), p, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) Convert(c echo.Context) error {
	p, err := actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ConvertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	view, err := h.svc.Convert(c.Request().Context(), p, id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) Resolve(c echo.Context) error {
	p, err := actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Resolve(c.Request().Context(), p, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetState(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.State(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) NurseDashboard(c echo.Context) error {
	p, err := actor(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.NurseDashboard(c.Request().Context(), p.StaffID, pagination.FromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) DoctorDashboard(c echo.Context) error {
	p, err := actor(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.DoctorDashboard(c.Request().Context(), p.StaffID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ExtractSymptoms reads symptom flags and a patient name out of clinical
// text, such as the text layer of a discharge summary.
func (h *Handler) ExtractSymptoms(c echo.Context) error {
	var req ExtractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return middleware.InferenceHTTPError(fmt.Errorf("%w: no text supplied", ml.ErrEmptyInput))
	}
	return c.JSON(http.StatusOK, ExtractSymptoms(req.Text))
}
