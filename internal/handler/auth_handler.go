package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"beerich/internal/auth"
	"beerich/internal/service"
)

// AuthHandler serves the login, signup, and logout flows.
type AuthHandler struct {
	authService service.AuthService
	cookieName  string
	secure      bool
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, cookieName string, secure bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookieName:  cookieName,
		secure:      secure,
	}
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type signupForm struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

type authPage struct {
	Error string
	Email string
	Name  string
}

// Home renders the landing page.
func (h *AuthHandler) Home(c echo.Context) error {
	return c.Render(http.StatusOK, "home", nil)
}

// LoginForm renders the login page.
func (h *AuthHandler) LoginForm(c echo.Context) error {
	return c.Render(http.StatusOK, "login", authPage{})
}

// Login authenticates the submitted credentials and opens a session.
func (h *AuthHandler) Login(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return c.Render(http.StatusBadRequest, "login", authPage{Error: "Invalid form submission."})
	}
	form := loginForm{
		Email:    strings.TrimSpace(c.FormValue("email")),
		Password: c.FormValue("password"),
	}
	if err := c.Validate(&form); err != nil {
		return c.Render(http.StatusUnprocessableEntity, "login", authPage{
			Error: "Email and password are required.",
			Email: form.Email,
		})
	}

	token, _, err := h.authService.Login(c.Request().Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.Render(http.StatusUnauthorized, "login", authPage{
				Error: "Invalid email or password.",
				Email: form.Email,
			})
		}
		return err
	}

	h.setSessionCookie(c, token)
	return c.Redirect(http.StatusSeeOther, expensesBasePath)
}

// SignupForm renders the signup page.
func (h *AuthHandler) SignupForm(c echo.Context) error {
	return c.Render(http.StatusOK, "signup", authPage{})
}

// Signup registers a new user and opens a session.
func (h *AuthHandler) Signup(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return c.Render(http.StatusBadRequest, "signup", authPage{Error: "Invalid form submission."})
	}
	form := signupForm{
		Name:     strings.TrimSpace(c.FormValue("name")),
		Email:    strings.TrimSpace(c.FormValue("email")),
		Password: c.FormValue("password"),
	}
	if err := c.Validate(&form); err != nil {
		return c.Render(http.StatusUnprocessableEntity, "signup", authPage{
			Error: "Name, a valid email, and a password of at least 6 characters are required.",
			Email: form.Email,
			Name:  form.Name,
		})
	}

	token, _, err := h.authService.Register(c.Request().Context(), form.Email, form.Password, form.Name)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			return c.Render(http.StatusConflict, "signup", authPage{
				Error: "A user with this email already exists.",
				Email: form.Email,
				Name:  form.Name,
			})
		}
		return err
	}

	h.setSessionCookie(c, token)
	return c.Redirect(http.StatusSeeOther, expensesBasePath)
}

// Logout revokes the session server-side and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(h.cookieName); err == nil && cookie.Value != "" {
		// Best effort; an already-dead session still gets its cookie cleared.
		_ = h.authService.Logout(c.Request().Context(), cookie.Value)
	}
	h.clearSessionCookie(c)
	return c.Redirect(http.StatusSeeOther, auth.LoginPath)
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionExpiry.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
