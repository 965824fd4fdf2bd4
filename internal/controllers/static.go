package controllers

import (
	"net/http"

	"github.com/aksharma/outfit-fitcheck/context"
	"github.com/aksharma/outfit-fitcheck/internal/views"
)

// StaticController handles static pages like home.
type StaticController struct {
	templates StaticTemplates
}

// StaticTemplates holds templates for static pages.
type StaticTemplates struct {
	Home *views.Template
}

// NewStaticController creates a new StaticController.
func NewStaticController(templates StaticTemplates) *StaticController {
	return &StaticController{
		templates: templates,
	}
}

// HomeData holds data for the home page template.
type HomeData struct {
	Features []Feature
}

// Feature represents a feature displayed on the home page.
type Feature struct {
	Title       string
	Description string
}

// GetHome renders the home page.
func (c *StaticController) GetHome(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetUser(r.Context())

	var success string
	if r.URL.Query().Get("msg") == "logged_out" {
		success = "You have been logged out successfully."
	}

	features := []Feature{
		{
			Title:       "Two-Stage Analysis",
			Description: "A vision model reads your photo and describes only what it sees, then a second pass turns that into structured feedback.",
		},
		{
			Title:       "Structured Feedback",
			Description: "Every fitcheck returns an overall vibe, what works, what needs work, suggestions, and a score out of ten.",
		},
		{
			Title:       "Occasion Aware",
			Description: "Tell us where you're headed - a job interview, a wedding, a first date - and the feedback is judged against it.",
		},
		{
			Title:       "No Guessing",
			Description: "Items the model can't see are flagged as not detected and never scored. Feedback covers visible clothing only.",
		},
		{
			Title:       "Your Photos Stay Yours",
			Description: "Uploaded photos are analyzed in memory and discarded. Only the written feedback is kept in your history.",
		},
		{
			Title:       "Fitcheck History",
			Description: "Every result is saved to your dashboard so you can compare outfits over time.",
		},
	}

	data := &views.TemplateData{
		Title:       "Outfit Fitcheck - AI Fashion Feedback",
		CurrentUser: user,
		Success:     success,
		Data: HomeData{
			Features: features,
		},
	}

	c.templates.Home.ExecuteHTTP(w, r, data)
}

// HealthCheck returns a simple health status for monitoring.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
