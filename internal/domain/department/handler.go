package department

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"

	"github.com/edtriage/triage/internal/platform/auth"
	"github.com/edtriage/triage/internal/platform/middleware"
)

type Handler struct {
	clf *Classifier
}

func NewHandler(clf *Classifier) *Handler {
	return &Handler{clf: clf}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleDoctor))
	g.POST("/triage/classify", h.Classify)
}

type ClassifyRequest struct {
	Symptoms string `json:"symptoms"`
}

func (r ClassifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Symptoms, validation.Length(0, 5000)),
	)
}

type ClassifyResponse struct {
	InputText string `json:"input_text"`
	*Result
}

// Classify recommends a department for a free-text symptom description.
func (h *Handler) Classify(c echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}
	res, err := h.clf.ClassifyText(c.Request().Context(), req.Symptoms)
	if err != nil {
		return middleware.InferenceHTTPError(err)
	}
	return c.JSON(http.StatusOK, ClassifyResponse{InputText: req.Symptoms, Result: res})
}
