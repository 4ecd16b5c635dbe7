package checklist

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/noemisales1009/Round-Juju/internal/platform/apperr"
	"github.com/noemisales1009/Round-Juju/internal/platform/auth"
	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleViewer, auth.RoleClinician))
	read.GET("/catalog/categories", h.ListCategories)
	read.GET("/catalog/categories/:id/questions", h.ListQuestions)
	read.GET("/patients/:patient_id/checklist", h.GetAnswers)
	read.GET("/patients/:patient_id/checklist/completion", h.PatientCompletion)
	read.GET("/checklist/completion", h.WardCompletion)

	write := api.Group("", auth.RequireRole(auth.RoleClinician))
	write.PUT("/patients/:patient_id/checklist/:category_id/answers/:question_id", h.SaveAnswer)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type categoryAnswersResponse struct {
	PatientID  uuid.UUID      `json:"patient_id"`
	CategoryID int            `json:"category_id"`
	Day        clock.Date     `json:"day"`
	Answers    map[int]Answer `json:"answers"`
}

type answersResponse struct {
	PatientID uuid.UUID         `json:"patient_id"`
	Day       clock.Date        `json:"day"`
	Answers   []ChecklistAnswer `json:"answers"`
}

func (h *Handler) ListCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Catalog().Categories())
}

func (h *Handler) ListQuestions(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid category id")
	}
	cat := h.svc.Catalog()
	if !cat.HasCategory(id) {
		return apperr.ToHTTPError(apperr.NotFound("category", id))
	}
	return c.JSON(http.StatusOK, cat.Questions(id))
}

func (h *Handler) SaveAnswer(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	categoryID, err := strconv.Atoi(c.Param("category_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid category_id")
	}
	questionID, err := strconv.Atoi(c.Param("question_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid question_id")
	}
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	a, err := h.svc.SaveAnswer(c.Request().Context(), patientID, categoryID, questionID, req.Answer)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// GetAnswers lists a patient's answers for ?day=, or the question -> answer
// map of one screen when ?category_id= is given.
func (h *Handler) GetAnswers(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	day, err := h.day(c)
	if err != nil {
		return err
	}

	if raw := c.QueryParam("category_id"); raw != "" {
		categoryID, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid category_id")
		}
		answers, err := h.svc.CategoryAnswers(ctx, patientID, categoryID, day)
		if err != nil {
			return apperr.ToHTTPError(err)
		}
		return c.JSON(http.StatusOK, categoryAnswersResponse{
			PatientID: patientID, CategoryID: categoryID, Day: day, Answers: answers,
		})
	}

	answers, err := h.svc.AnswersFor(ctx, patientID, day)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	if answers == nil {
		answers = []ChecklistAnswer{}
	}
	return c.JSON(http.StatusOK, answersResponse{PatientID: patientID, Day: day, Answers: answers})
}

func (h *Handler) PatientCompletion(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	day, err := h.day(c)
	if err != nil {
		return err
	}
	comp, err := h.svc.Completion(c.Request().Context(), patientID, day)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, comp)
}

func (h *Handler) WardCompletion(c echo.Context) error {
	day, err := h.day(c)
	if err != nil {
		return err
	}
	comps, err := h.svc.WardCompletion(c.Request().Context(), day)
	if err != nil {
		return apperr.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, comps)
}

func (h *Handler) day(c echo.Context) (clock.Date, error) {
	raw := c.QueryParam("day")
	if raw == "" {
		return h.svc.Today(), nil
	}
	d, err := clock.ParseDate(raw)
	if err != nil {
		return clock.Date{}, echo.NewHTTPError(http.StatusBadRequest, "invalid day, expected YYYY-MM-DD")
	}
	return d, nil
}
