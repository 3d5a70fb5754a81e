package router

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"beerich/internal/auth"
	"beerich/internal/config"
	apperrors "beerich/internal/errors"
	"beerich/internal/handler"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	sessionStore auth.SessionStoreInterface,
	authHandler *handler.AuthHandler,
	expenseHandler *handler.ExpenseHandler,
	invoiceHandler *handler.InvoiceHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.MaxUploadBytes, 10)))

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Root-level error boundary
	e.HTTPErrorHandler = NewHTTPErrorHandler(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// Public routes
	e.GET("/", authHandler.Home)
	e.GET("/login", authHandler.LoginForm)
	e.POST("/login", authHandler.Login)
	e.GET("/signup", authHandler.SignupForm)
	e.POST("/signup", authHandler.Signup)
	e.POST("/logout", authHandler.Logout)

	// Dashboard routes (require a live session)
	dashboard := e.Group("/dashboard",
		auth.SessionMiddleware(cfg.SessionSecret, cfg.SessionCookie),
		auth.RequireUser(sessionStore),
	)
	dashboard.GET("", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/dashboard/expenses")
	})

	dashboard.GET("/expenses", expenseHandler.List)
	dashboard.POST("/expenses", expenseHandler.Create)
	dashboard.GET("/expenses/:id", expenseHandler.Detail)
	dashboard.POST("/expenses/:id", expenseHandler.Action)
	dashboard.GET("/expenses/:id/attachments/:filename", expenseHandler.Attachment)

	dashboard.GET("/income", invoiceHandler.List)
	dashboard.POST("/income", invoiceHandler.Create)
	dashboard.GET("/income/:id", invoiceHandler.Detail)
	dashboard.POST("/income/:id", invoiceHandler.Action)
	dashboard.GET("/income/:id/attachments/:filename", invoiceHandler.Attachment)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// NewHTTPErrorHandler renders errors that escape route-local boundaries: a
// generic apology page for browsers, a structured body for JSON clients.
func NewHTTPErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		detail := ""
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			detail = fmt.Sprintf("%v", echoErr.Message)
		} else {
			httpErr := apperrors.MapErrorToHTTP(err)
			code = httpErr.StatusCode
			if httpErr.Code != "INTERNAL_ERROR" {
				detail = httpErr.Message
			}
		}

		if handler.WantsJSON(c) {
			_ = c.JSON(code, apperrors.ErrorResponse{Error: http.StatusText(code), Code: strconv.Itoa(code)})
			return
		}

		heading := "Unexpected Error"
		message := "We are very sorry. An error has occurred."
		switch code {
		case http.StatusUnauthorized:
			heading = "401 Unauthorized"
			message = "Looks like you are trying to visit a page you do not have access to."
		case http.StatusNotFound:
			heading = "404 Not Found"
			message = "Oops! Looks like you tried to visit a page that does not exist."
		}

		renderErr := c.Render(code, "error", map[string]string{
			"Heading": heading,
			"Message": message,
			"Detail":  detail,
		})
		if renderErr != nil {
			e.DefaultHTTPErrorHandler(err, c)
		}
	}
}
