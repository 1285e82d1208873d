package staff

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"

	"github.com/edtriage/triage/internal/domain/assignment"
	"github.com/edtriage/triage/internal/platform/auth"
)

type Handler struct {
	svc      *Service
	balancer *assignment.Balancer
}

func NewHandler(svc *Service, balancer *assignment.Balancer) *Handler {
	return &Handler{svc: svc, balancer: balancer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.Me)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/staff", h.Register)

	clinical := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleDoctor))
	clinical.GET("/doctors", h.ListDoctors)
}

func (h *Handler) Register(c echo.Context) error {
	var st Staff
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Register(c.Request().Context(), &st); err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			return err
		case errors.Is(err, ErrDuplicateEmployee):
			return echo.NewHTTPError(http.StatusConflict, ErrDuplicateEmployee.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, st)
}

type meResponse struct {
	StaffID    string `json:"staff_id"`
	Role       string `json:"role"`
	Name       string `json:"name"`
	EmployeeID string `json:"employee_id,omitempty"`
	Department string `json:"department,omitempty"`
}

// Me reports the caller's role and name, with their staff profile when one
// exists.
func (h *Handler) Me(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	resp := meResponse{StaffID: p.StaffID.String(), Role: p.Role, Name: p.Name}
	st, err := h.svc.Get(c.Request().Context(), p.StaffID)
	switch {
	case err == nil:
		resp.Name = st.FullName
		resp.EmployeeID = st.EmployeeID
		resp.Department = st.Department
	case !errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

type doctorsResponse struct {
	Department string                  `json:"department"`
	Match      assignment.Match        `json:"match"`
	Doctors    []assignment.DoctorLoad `json:"doctors"`
}

// ListDoctors lists doctors for a department with their live load,
// least-loaded first.
func (h *Handler) ListDoctors(c echo.Context) error {
	dept := c.QueryParam("department")
	if dept == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "department is required")
	}
	docs, match, err := h.balancer.Candidates(c.Request().Context(), dept)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if docs == nil {
		docs = []assignment.DoctorLoad{}
	}
	return c.JSON(http.StatusOK, doctorsResponse{Department: dept, Match: match, Doctors: docs})
}
