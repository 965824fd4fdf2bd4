package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"

	"github.com/aksharma/outfit-fitcheck/internal/models"
	"github.com/aksharma/outfit-fitcheck/internal/views"
)

// AuthController handles signup/signin flows
type AuthController struct {
	userService    *models.UserService
	sessionService *models.SessionService
	templates      AuthTemplates
	secureCookies  bool
}

// AuthTemplates holds the templates for auth pages.
type AuthTemplates struct {
	SignUp *views.Template
	SignIn *views.Template
}

func NewAuthController(
	userService *models.UserService,
	sessionService *models.SessionService,
	templates AuthTemplates,
	secureCookies bool,
) *AuthController {
	return &AuthController{
		userService:    userService,
		sessionService: sessionService,
		templates:      templates,
		secureCookies:  secureCookies,
	}
}

// AuthFormData holds data for the signup/signin form templates.
type AuthFormData struct {
	Email string
}

// GetSignUp renders the signup form.
func (c *AuthController) GetSignUp(w http.ResponseWriter, r *http.Request) {
	data := &views.TemplateData{
		Title:     "Sign Up",
		CSRFToken: csrf.Token(r),
	}
	c.templates.SignUp.ExecuteHTTP(w, r, data)
}

// PostSignUp creates a new user account.
func (c *AuthController) PostSignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		c.renderSignUpError(w, r, "", "Invalid form data")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	confirmPassword := r.FormValue("confirm_password")

	if email == "" {
		c.renderSignUpError(w, r, email, "Email is required")
		return
	}
	if password == "" {
		c.renderSignUpError(w, r, email, "Password is required")
		return
	}
	if password != confirmPassword {
		c.renderSignUpError(w, r, email, "Passwords do not match")
		return
	}

	user, err := c.userService.Create(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmailAlreadyExists):
			c.renderSignUpError(w, r, email, "That email is already registered")
		case errors.Is(err, models.ErrPasswordTooShort):
			c.renderSignUpError(w, r, email, "Password must be at least 8 characters")
		default:
			c.renderSignUpError(w, r, email, "Failed to create account")
		}
		return
	}

	c.startSession(w, r, user.ID)
}

// GetSignIn renders the signin form.
func (c *AuthController) GetSignIn(w http.ResponseWriter, r *http.Request) {
	data := &views.TemplateData{
		Title:     "Sign In",
		CSRFToken: csrf.Token(r),
	}
	c.templates.SignIn.ExecuteHTTP(w, r, data)
}

// PostSignIn authenticates an existing user.
func (c *AuthController) PostSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		c.renderSignInError(w, r, "", "Invalid form data")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" || password == "" {
		c.renderSignInError(w, r, email, "Email and password are required")
		return
	}

	user, err := c.userService.Authenticate(r.Context(), email, password)
	if err != nil {
		c.renderSignInError(w, r, email, "Invalid email or password")
		return
	}

	// Non-fatal; the login itself succeeded
	_ = c.userService.UpdateLastLogin(r.Context(), user.ID)

	c.startSession(w, r, user.ID)
}

// PostLogout deletes the session and clears the cookie.
func (c *AuthController) PostLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(CookieSession)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	_ = c.sessionService.Delete(r.Context(), cookie.Value)
	deleteCookie(w, CookieSession, c.secureCookies)
	http.Redirect(w, r, "/?msg=logged_out", http.StatusSeeOther)
}

func (c *AuthController) startSession(w http.ResponseWriter, r *http.Request, userID int) {
	session, err := c.sessionService.Create(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	setCookie(w, CookieSession, session.Token, c.secureCookies)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (c *AuthController) renderSignUpError(w http.ResponseWriter, r *http.Request, email, errMsg string) {
	data := &views.TemplateData{
		Title:     "Sign Up",
		CSRFToken: csrf.Token(r),
		Error:     errMsg,
		Data:      AuthFormData{Email: email},
	}
	c.templates.SignUp.ExecuteHTTPWithStatus(w, r, http.StatusUnprocessableEntity, data)
}

func (c *AuthController) renderSignInError(w http.ResponseWriter, r *http.Request, email, errMsg string) {
	data := &views.TemplateData{
		Title:     "Sign In",
		CSRFToken: csrf.Token(r),
		Error:     errMsg,
		Data:      AuthFormData{Email: email},
	}
	c.templates.SignIn.ExecuteHTTPWithStatus(w, r, http.StatusUnprocessableEntity, data)
}
