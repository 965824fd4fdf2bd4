package controllers

import (
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/aksharma/outfit-fitcheck/internal/middleware"
	"github.com/aksharma/outfit-fitcheck/internal/models"
	"github.com/aksharma/outfit-fitcheck/internal/views"
)

// DashboardController handles the user dashboard.
type DashboardController struct {
	fitcheckService *models.FitCheckService
	template        *views.Template
	pageSize        int
}

// NewDashboardController creates a new DashboardController.
func NewDashboardController(
	fitcheckService *models.FitCheckService,
	template *views.Template,
	pageSize int,
) *DashboardController {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &DashboardController{
		fitcheckService: fitcheckService,
		template:        template,
		pageSize:        pageSize,
	}
}

// DashboardData holds data for the dashboard template.
type DashboardData struct {
	FitChecks      []*models.FitCheck
	StatusCounts   map[models.FitCheckStatus]int
	TotalFitChecks int
	CompletedCount int
	QuotaUsed      int
	QuotaLimit     int
	QuotaPercent   int
}

// GetDashboard renders the user dashboard.
func (c *DashboardController) GetDashboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustCurrentUser(r)

	fitchecks, err := c.fitcheckService.ByUserID(r.Context(), user.ID, c.pageSize)
	if err != nil {
		http.Error(w, "Failed to load fitchecks", http.StatusInternalServerError)
		return
	}

	statusCounts, err := c.fitcheckService.CountByStatus(r.Context(), user.ID)
	if err != nil {
		statusCounts = make(map[models.FitCheckStatus]int)
	}

	total := 0
	for _, count := range statusCounts {
		total += count
	}

	data := &views.TemplateData{
		Title:       "Dashboard",
		CSRFToken:   csrf.Token(r),
		CurrentUser: user,
		Data: DashboardData{
			FitChecks:      fitchecks,
			StatusCounts:   statusCounts,
			TotalFitChecks: total,
			CompletedCount: statusCounts[models.StatusCompleted],
			QuotaUsed:      user.FitchecksUsed,
			QuotaLimit:     user.FitchecksLimit,
			QuotaPercent:   user.QuotaPercentUsed(),
		},
	}

	// Check for success/error messages from query params
	if msg := r.URL.Query().Get("success"); msg != "" {
		data.Success = msg
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		data.Error = msg
	}

	c.template.ExecuteHTTP(w, r, data)
}
