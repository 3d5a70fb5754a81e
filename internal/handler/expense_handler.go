package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"beerich/internal/auth"
	apperrors "beerich/internal/errors"
	"beerich/internal/service"
	"beerich/internal/upload"
)

const expensesBasePath = "/dashboard/expenses"

// ExpenseHandler serves the expense dashboard routes.
type ExpenseHandler struct {
	svc         service.ExpenseService
	attachments *upload.Storage
}

// NewExpenseHandler creates a new expense handler.
func NewExpenseHandler(svc service.ExpenseService, attachments *upload.Storage) *ExpenseHandler {
	return &ExpenseHandler{svc: svc, attachments: attachments}
}

// List renders the user's expenses, newest first, optionally filtered by the
// q query parameter.
func (h *ExpenseHandler) List(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}
	query := c.QueryParam("q")

	expenses, err := h.svc.List(c.Request().Context(), userID, query)
	if err != nil {
		return h.respondError(c, "", err)
	}
	if WantsJSON(c) {
		return c.JSON(http.StatusOK, expenses)
	}
	return c.Render(http.StatusOK, "records", h.page(expenses, query, nil))
}

// Detail renders a single expense alongside the list.
func (h *ExpenseHandler) Detail(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}
	id, err := h.recordID(c)
	if err != nil {
		return h.respondError(c, c.Param("id"), err)
	}

	expense, err := h.svc.Get(c.Request().Context(), id, userID)
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	if WantsJSON(c) {
		return c.JSON(http.StatusOK, expense)
	}

	expenses, err := h.svc.List(c.Request().Context(), userID, "")
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	return c.Render(http.StatusOK, "records", h.page(expenses, "", expense))
}

// Create adds a new expense and redirects to its detail page.
func (h *ExpenseHandler) Create(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}

	values, stored, err := formValues(c, h.attachments, userID.String())
	if err != nil {
		return err
	}
	input, err := decodeRecordForm(c, values, stored)
	if err != nil {
		return h.respondInvalidInput(c, userID, nil, err)
	}

	expense, err := h.svc.Create(c.Request().Context(), userID, input)
	if err != nil {
		if _, ok := apperrors.AsInvalidInput(err); ok {
			return h.respondInvalidInput(c, userID, nil, err)
		}
		return h.respondError(c, "", err)
	}
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("%s/%s", expensesBasePath, expense.ID))
}

// Action dispatches a POST on a single expense by its intent field: update or
// delete. Anything else is a bad request.
func (h *ExpenseHandler) Action(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}
	id, err := h.recordID(c)
	if err != nil {
		return h.respondError(c, c.Param("id"), err)
	}

	values, stored, err := formValues(c, h.attachments, userID.String())
	if err != nil {
		return err
	}

	intent, err := ParseIntent(values.Get("intent"))
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	switch intent {
	case IntentUpdate:
		return h.update(c, id, userID, values, stored)
	case IntentDelete:
		return h.delete(c, id, userID)
	}
	return h.respondError(c, id.String(), apperrors.ErrInvalidIntent)
}

func (h *ExpenseHandler) update(c echo.Context, id, userID uuid.UUID, values url.Values, stored string) error {
	input, err := decodeRecordForm(c, values, stored)
	if err != nil {
		return h.respondUpdateInvalid(c, id, userID, err)
	}

	if err := h.svc.Update(c.Request().Context(), id, userID, input); err != nil {
		if _, ok := apperrors.AsInvalidInput(err); ok {
			return h.respondUpdateInvalid(c, id, userID, err)
		}
		return h.respondError(c, id.String(), err)
	}

	if WantsJSON(c) {
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	}

	expense, err := h.svc.Get(c.Request().Context(), id, userID)
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	expenses, err := h.svc.List(c.Request().Context(), userID, "")
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	page := h.page(expenses, "", expense)
	page.Saved = true
	return c.Render(http.StatusOK, "records", page)
}

func (h *ExpenseHandler) delete(c echo.Context, id, userID uuid.UUID) error {
	if err := h.svc.Delete(c.Request().Context(), id, userID); err != nil {
		return h.respondError(c, id.String(), err)
	}
	return c.Redirect(http.StatusSeeOther, redirectAfterDelete(c, id.String(), expensesBasePath))
}

// Attachment streams a stored attachment back to its owner.
func (h *ExpenseHandler) Attachment(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}
	id, err := h.recordID(c)
	if err != nil {
		return h.respondError(c, c.Param("id"), err)
	}

	expense, err := h.svc.Get(c.Request().Context(), id, userID)
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	filename := c.Param("filename")
	if expense.Attachment == nil || *expense.Attachment != filename {
		return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
	}

	path, err := h.attachments.Path(userID.String(), filename)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
	}
	return c.Attachment(path, filename)
}

// recordID extracts the :id route parameter. An empty parameter is a routing
// misconfiguration, not user error; a malformed id behaves like a key miss.
func (h *ExpenseHandler) recordID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("id route parameter must be defined")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ErrExpenseNotFound
	}
	return id, nil
}

func (h *ExpenseHandler) page(records interface{}, query string, selected interface{}) recordsPage {
	return recordsPage{
		Kind:     "expense",
		Heading:  "Your expenses",
		BasePath: expensesBasePath,
		Records:  records,
		Query:    query,
		Selected: selected,
	}
}

// respondInvalidInput re-renders the list page with field errors, or answers
// 422 JSON.
func (h *ExpenseHandler) respondInvalidInput(c echo.Context, userID uuid.UUID, selected interface{}, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if WantsJSON(c) {
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	expenses, listErr := h.svc.List(c.Request().Context(), userID, "")
	if listErr != nil {
		return h.respondError(c, "", listErr)
	}
	page := h.page(expenses, "", selected)
	page.FieldErrors = httpErr.Fields
	return c.Render(httpErr.StatusCode, "records", page)
}

func (h *ExpenseHandler) respondUpdateInvalid(c echo.Context, id, userID uuid.UUID, err error) error {
	if WantsJSON(c) {
		httpErr := apperrors.MapErrorToHTTP(err)
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	expense, getErr := h.svc.Get(c.Request().Context(), id, userID)
	if getErr != nil {
		return h.respondError(c, id.String(), getErr)
	}
	return h.respondInvalidInput(c, userID, expense, err)
}

// respondError is the route-local error boundary: a 404 interpolates the
// requested id, everything else renders the generic apology.
func (h *ExpenseHandler) respondError(c echo.Context, id string, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if WantsJSON(c) {
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	if httpErr.StatusCode == http.StatusNotFound {
		return c.Render(http.StatusNotFound, "record_not_found", notFoundPage{
			Kind:     "expense",
			ID:       id,
			BasePath: expensesBasePath,
		})
	}
	page := errorPage{
		Heading: "Something went wrong",
		Message: "Apologies, something went wrong on our end, please try again.",
	}
	if httpErr.Code != "INTERNAL_ERROR" {
		page.Detail = httpErr.Message
	}
	return c.Render(httpErr.StatusCode, "error", page)
}
