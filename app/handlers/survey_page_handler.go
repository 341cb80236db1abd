package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/callback-survey/app/logger"
	"github.com/amirphl/callback-survey/app/middleware"
	"github.com/amirphl/callback-survey/app/surveyform"
	"github.com/amirphl/callback-survey/app/views"
	"github.com/gofiber/fiber/v3"
)

const (
	pageTitle      = "Survey"
	inFlightNotice = "Your earlier submission is still being sent."
)

// SurveyPageHandlerInterface defines the contract for the server-rendered survey page
type SurveyPageHandlerInterface interface {
	Show(c fiber.Ctx) error
	Post(c fiber.Ctx) error
}

// SurveyPageHandler renders survey forms and drives their submissions
type SurveyPageHandler struct {
	registry      *surveyform.Registry
	submitTimeout time.Duration
}

func NewSurveyPageHandler(registry *surveyform.Registry, submitTimeout time.Duration) SurveyPageHandlerInterface {
	if submitTimeout <= 0 {
		submitTimeout = requestTimeout
	}
	return &SurveyPageHandler{
		registry:      registry,
		submitTimeout: submitTimeout,
	}
}

// Show renders an empty form with a fresh form id
func (h *SurveyPageHandler) Show(c fiber.Ctx) error {
	return renderHTML(c, fiber.StatusOK, views.Page(pageTitle, views.Survey(views.PageData{
		FormID: surveyform.NewID(),
	})))
}

// Post applies the posted field values to the form and submits it
func (h *SurveyPageHandler) Post(c fiber.Ctx) error {
	session := h.registry.Open(c.FormValue("form_id"))
	form := session.Form

	if !form.State().Submitted() {
		for _, f := range surveyform.Fields {
			if err := form.UpdateField(f, c.FormValue(string(f))); err != nil {
				return err
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.submitTimeout)
	defer cancel()

	var notice string
	result, err := form.Submit(ctx)
	switch {
	case errors.Is(err, surveyform.ErrSubmitInFlight):
		middleware.RecordFormSubmit("in_flight")
		notice = inFlightNotice
	case errors.Is(err, surveyform.ErrAlreadySubmitted):
		middleware.RecordFormSubmit("already_submitted")
	case err != nil:
		logger.Log.WithError(err).WithField("form_id", form.ID()).Error("Survey form submit failed")
		return err
	default:
		middleware.RecordFormSubmit(result.Outcome.String())
	}

	return renderHTML(c, fiber.StatusOK, views.Page(pageTitle, views.Survey(views.PageData{
		FormID: form.ID(),
		State:  form.State(),
		Alerts: session.Alerts.Drain(),
		Notice: notice,
	})))
}
