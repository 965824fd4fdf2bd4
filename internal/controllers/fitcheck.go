package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	"github.com/aksharma/outfit-fitcheck/internal/middleware"
	"github.com/aksharma/outfit-fitcheck/internal/models"
	"github.com/aksharma/outfit-fitcheck/internal/services"
	"github.com/aksharma/outfit-fitcheck/internal/views"
)

// Analyzer runs the two-stage feedback pipeline for one uploaded image.
type Analyzer interface {
	Analyze(ctx context.Context, in services.AnalyzeInput) (*services.AnalyzeOutput, error)
}

// FitCheckController handles outfit uploads and results.
type FitCheckController struct {
	fitcheckService *models.FitCheckService
	userService     *models.UserService
	analyzer        Analyzer
	templates       FitCheckTemplates
	maxUploadBytes  int64
}

// FitCheckTemplates holds the templates for fitcheck pages.
type FitCheckTemplates struct {
	Form   *views.Template
	Result *views.Template
}

// NewFitCheckController creates a new FitCheckController.
func NewFitCheckController(
	fitcheckService *models.FitCheckService,
	userService *models.UserService,
	analyzer Analyzer,
	templates FitCheckTemplates,
	maxUploadBytes int64,
) *FitCheckController {
	if maxUploadBytes <= 0 {
		maxUploadBytes = services.MaxImageBytes
	}
	return &FitCheckController{
		fitcheckService: fitcheckService,
		userService:     userService,
		analyzer:        analyzer,
		templates:       templates,
		maxUploadBytes:  maxUploadBytes,
	}
}

// FitCheckFormData holds data for the upload form template.
type FitCheckFormData struct {
	Occasion       string
	RemainingQuota int
}

// GetFitCheck renders the upload form.
func (c *FitCheckController) GetFitCheck(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustCurrentUser(r)

	data := &views.TemplateData{
		Title:       "New Fitcheck",
		CSRFToken:   csrf.Token(r),
		CurrentUser: user,
		Data: FitCheckFormData{
			RemainingQuota: user.RemainingQuota(),
		},
	}

	if user.RemainingQuota() <= 0 {
		data.Warning = "You have used all of your fitchecks."
	}

	c.templates.Form.ExecuteHTTP(w, r, data)
}

// PostFitCheck handles the upload form submission and runs the pipeline.
func (c *FitCheckController) PostFitCheck(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustCurrentUser(r)

	if user.RemainingQuota() <= 0 {
		c.renderFormError(w, r, user, "", "You have used all of your fitchecks.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(c.maxUploadBytes); err != nil {
		c.renderFormError(w, r, user, "", "Upload too large or invalid form data")
		return
	}

	occasion := r.FormValue("occasion")

	file, header, err := r.FormFile("photo")
	if err != nil {
		c.renderFormError(w, r, user, occasion, "An outfit photo is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, c.maxUploadBytes+1))
	if err != nil {
		c.renderFormError(w, r, user, occasion, "Failed to read the uploaded photo")
		return
	}

	// Reject bad uploads before creating a record or touching the network
	contentType, err := services.ValidateImage(data)
	if err != nil {
		var uploadErr models.UploadError
		if errors.As(err, &uploadErr) {
			c.renderFormError(w, r, user, occasion, "Invalid photo: "+uploadErr.Issue)
			return
		}
		c.renderFormError(w, r, user, occasion, "Invalid photo")
		return
	}

	fitcheckID, err := c.performFitCheck(r, user, data, contentType, header.Filename, occasion)
	if err != nil {
		var parseErr *services.ParseError
		if errors.As(err, &parseErr) && fitcheckID != 0 {
			// The record holds the raw model text as a fallback
			http.Redirect(w, r, fmt.Sprintf("/fitcheck/%d", fitcheckID), http.StatusSeeOther)
			return
		}

		log.Printf("Fitcheck failed for user %d: %v", user.ID, err)
		c.renderFormError(w, r, user, occasion, userFacingMessage(err))
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/fitcheck/%d", fitcheckID), http.StatusSeeOther)
}

// performFitCheck executes the full analysis pipeline against one upload.
// The returned ID is non-zero once a record exists, even on failure.
func (c *FitCheckController) performFitCheck(r *http.Request, user *models.User, image []byte, contentType, filename, occasion string) (int64, error) {
	ctx := r.Context()

	// Step 1: Create the fitcheck record
	fc := &models.FitCheck{
		UserID:    user.ID,
		ImageName: filename,
		ImageType: contentType,
		ImageSize: len(image),
	}
	if occasion != "" {
		fc.Occasion = &occasion
	}

	saved, err := c.fitcheckService.Create(ctx, fc)
	if err != nil {
		return 0, fmt.Errorf("failed to save fitcheck: %w", err)
	}

	// Step 2: Mark as processing
	if err := c.fitcheckService.MarkProcessing(ctx, saved.ID); err != nil {
		log.Printf("Failed to mark fitcheck as processing: %v", err)
	}

	// Step 3: Run the two-stage pipeline
	log.Printf("Running fitcheck %d (%s, %d bytes)", saved.ID, contentType, len(image))
	out, err := c.analyzer.Analyze(ctx, services.AnalyzeInput{
		Image:    image,
		Occasion: occasion,
	})
	if err != nil {
		if out != nil && out.Description != "" {
			_ = c.fitcheckService.SaveVisionDescription(ctx, saved.ID, out.Description)
		}

		var parseErr *services.ParseError
		if errors.As(err, &parseErr) {
			_ = c.fitcheckService.Fail(ctx, saved.ID, "could not produce structured feedback", parseErr.Raw)
			return saved.ID, err
		}

		_ = c.fitcheckService.Fail(ctx, saved.ID, fmt.Sprintf("analysis failed: %v", err), "")
		return saved.ID, err
	}

	// Step 4: Store the intermediate description and the result
	if err := c.fitcheckService.SaveVisionDescription(ctx, saved.ID, out.Description); err != nil {
		log.Printf("Failed to save vision description: %v", err)
	}

	if err := c.fitcheckService.Complete(ctx, saved.ID, out.Result, out.RawOutput, out.TokensUsed); err != nil {
		return saved.ID, fmt.Errorf("failed to store result: %w", err)
	}
	log.Printf("Fitcheck %d completed, score %d, used %d tokens", saved.ID, out.Result.Score, out.TokensUsed)

	// Step 5: Update user quota
	if err := c.userService.IncrementQuota(ctx, user.ID); err != nil {
		log.Printf("Failed to update user quota: %v", err)
	}

	return saved.ID, nil
}

// FitCheckResultData holds data for the result template.
type FitCheckResultData struct {
	FitCheck *models.FitCheck
}

// GetResult renders the fitcheck result page.
func (c *FitCheckController) GetResult(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustCurrentUser(r)

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid fitcheck ID", http.StatusBadRequest)
		return
	}

	fc, err := c.fitcheckService.ByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrFitCheckNotFound) {
			http.Error(w, "Fitcheck not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load fitcheck", http.StatusInternalServerError)
		return
	}

	// Verify ownership
	if fc.UserID != user.ID {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	data := &views.TemplateData{
		Title:       fmt.Sprintf("Fitcheck: %s", fc.ImageName),
		CSRFToken:   csrf.Token(r),
		CurrentUser: user,
		Data: FitCheckResultData{
			FitCheck: fc,
		},
	}

	c.templates.Result.ExecuteHTTP(w, r, data)
}

// DeleteFitCheck removes a fitcheck from the user's history.
func (c *FitCheckController) DeleteFitCheck(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustCurrentUser(r)

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid fitcheck ID", http.StatusBadRequest)
		return
	}

	fc, err := c.fitcheckService.ByID(r.Context(), id)
	if err != nil {
		http.Redirect(w, r, "/dashboard?error=Fitcheck+not+found", http.StatusSeeOther)
		return
	}

	if fc.UserID != user.ID {
		http.Redirect(w, r, "/dashboard?error=Access+denied", http.StatusSeeOther)
		return
	}

	if err := c.fitcheckService.Delete(r.Context(), id); err != nil {
		http.Redirect(w, r, "/dashboard?error=Failed+to+delete", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/dashboard?success=Fitcheck+deleted", http.StatusSeeOther)
}

// renderFormError renders the upload form with an error message.
func (c *FitCheckController) renderFormError(w http.ResponseWriter, r *http.Request, user *models.User, occasion, errMsg string) {
	data := &views.TemplateData{
		Title:       "New Fitcheck",
		CSRFToken:   csrf.Token(r),
		CurrentUser: user,
		Error:       errMsg,
		Data: FitCheckFormData{
			Occasion:       occasion,
			RemainingQuota: user.RemainingQuota(),
		},
	}
	c.templates.Form.ExecuteHTTPWithStatus(w, r, http.StatusUnprocessableEntity, data)
}

// userFacingMessage maps pipeline errors to messages safe to show the user.
func userFacingMessage(err error) string {
	var upstreamErr *services.UpstreamError
	switch {
	case errors.Is(err, services.ErrAPIKeyMissing):
		return "The feedback service is not configured. Please contact support."
	case errors.As(err, &upstreamErr):
		return "The feedback service is unavailable right now. Please try again."
	default:
		return "Analysis failed. Please try again."
	}
}
