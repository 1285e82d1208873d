package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/edtriage/triage/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleDoctor))
	read.GET("/patients", h.Search)
	read.GET("/patients/:id", h.Get)

	nurse := api.Group("", auth.RequireRole(auth.RoleNurse))
	nurse.POST("/patients", h.Create)

	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.PATCH("/patients/:id/history", h.UpdateHistory)
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		if isValidation(err) {
			return err
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return notFoundOr500(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Search(c echo.Context) error {
	items, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u HistoryUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdateHistory(c.Request().Context(), id, u)
	if err != nil {
		return notFoundOr500(err)
	}
	return c.JSON(http.StatusOK, p)
}

func notFoundOr500(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
