package task

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/noemisales1009/Round-Juju/internal/platform/apperr"
	"github.com/noemisales1009/Round-Juju/internal/platform/auth"
	"github.com/noemisales1009/Round-Juju/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleViewer, auth.RoleClinician))
	read.GET("/tasks", h.ListTasks)
	read.GET("/tasks/summary", h.Summary)
	read.GET("/tasks/:id", h.GetTask)

	write := api.Group("", auth.RequireRole(auth.RoleClinician))
	write.POST("/tasks", h.CreateTask)
	write.POST("/tasks/:id/complete", h.CompleteTask)
	write.PUT("/tasks/:id/justification", h.JustifyTask)
}

type justifyRequest struct {
	Justification string `json:"justification"`
}

func (h *Handler) CreateTask(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CompleteTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) JustifyTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req justifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.Justify(c.Request().Context(), id, req.Justification)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// ListTasks filters by ?status= (live status) and ?patient_id=. ?at= (RFC
// 3339) evaluates live statuses at another instant than now.
func (h *Handler) ListTasks(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	now, err := h.at(c)
	if err != nil {
		return err
	}

	var patientID uuid.UUID
	if raw := c.QueryParam("patient_id"); raw != "" {
		if patientID, err = uuid.Parse(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}

	var tasks []*LiveTask
	switch raw := c.QueryParam("status"); {
	case raw != "":
		status, ok := ParseStatus(raw)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		tasks, err = h.svc.ListByLiveStatus(ctx, status, now)
		if err == nil && patientID != uuid.Nil {
			tasks = filterPatient(tasks, patientID)
		}
	case patientID != uuid.Nil:
		tasks, err = h.svc.ListByPatient(ctx, patientID, now)
	default:
		tasks, err = h.svc.List(ctx, now)
	}
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(tasks, pg))
}

func (h *Handler) Summary(c echo.Context) error {
	now, err := h.at(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(c.Request().Context(), now)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) at(c echo.Context) (time.Time, error) {
	raw := c.QueryParam("at")
	if raw == "" {
		return h.svc.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid at, expected RFC 3339")
	}
	return at, nil
}

func filterPatient(tasks []*LiveTask, patientID uuid.UUID) []*LiveTask {
	out := tasks[:0]
	for _, t := range tasks {
		if t.PatientID == patientID {
			out = append(out, t)
		}
	}
	return out
}
