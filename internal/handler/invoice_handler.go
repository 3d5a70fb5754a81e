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

const incomeBasePath = "/dashboard/income"

// InvoiceHandler serves the income dashboard routes. It mirrors
// ExpenseHandler over invoices.
type InvoiceHandler struct {
	svc         service.InvoiceService
	attachments *upload.Storage
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(svc service.InvoiceService, attachments *upload.Storage) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, attachments: attachments}
}

// List renders the user's invoices, newest first, optionally filtered by the
// q query parameter.
func (h *InvoiceHandler) List(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}
	query := c.QueryParam("q")

	invoices, err := h.svc.List(c.Request().Context(), userID, query)
	if err != nil {
		return h.respondError(c, "", err)
	}
	if WantsJSON(c) {
		return c.JSON(http.StatusOK, invoices)
	}
	return c.Render(http.StatusOK, "records", h.page(invoices, query, nil))
}

// Detail renders a single invoice alongside the list.
func (h *InvoiceHandler) Detail(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}
	id, err := h.recordID(c)
	if err != nil {
		return h.respondError(c, c.Param("id"), err)
	}

	invoice, err := h.svc.Get(c.Request().Context(), id, userID)
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	if WantsJSON(c) {
		return c.JSON(http.StatusOK, invoice)
	}

	invoices, err := h.svc.List(c.Request().Context(), userID, "")
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	return c.Render(http.StatusOK, "records", h.page(invoices, "", invoice))
}

// Create adds a new invoice and redirects to its detail page.
func (h *InvoiceHandler) Create(c echo.Context) error {
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

	invoice, err := h.svc.Create(c.Request().Context(), userID, input)
	if err != nil {
		if _, ok := apperrors.AsInvalidInput(err); ok {
			return h.respondInvalidInput(c, userID, nil, err)
		}
		return h.respondError(c, "", err)
	}
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("%s/%s", incomeBasePath, invoice.ID))
}

// Action dispatches a POST on a single invoice by its intent field.
func (h *InvoiceHandler) Action(c echo.Context) error {
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

func (h *InvoiceHandler) update(c echo.Context, id, userID uuid.UUID, values url.Values, stored string) error {
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

	invoice, err := h.svc.Get(c.Request().Context(), id, userID)
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	invoices, err := h.svc.List(c.Request().Context(), userID, "")
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	page := h.page(invoices, "", invoice)
	page.Saved = true
	return c.Render(http.StatusOK, "records", page)
}

func (h *InvoiceHandler) delete(c echo.Context, id, userID uuid.UUID) error {
	if err := h.svc.Delete(c.Request().Context(), id, userID); err != nil {
		return h.respondError(c, id.String(), err)
	}
	return c.Redirect(http.StatusSeeOther, redirectAfterDelete(c, id.String(), incomeBasePath))
}

// Attachment streams a stored attachment back to its owner.
func (h *InvoiceHandler) Attachment(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return apperrors.ErrUnauthorized
	}
	id, err := h.recordID(c)
	if err != nil {
		return h.respondError(c, c.Param("id"), err)
	}

	invoice, err := h.svc.Get(c.Request().Context(), id, userID)
	if err != nil {
		return h.respondError(c, id.String(), err)
	}
	filename := c.Param("filename")
	if invoice.Attachment == nil || *invoice.Attachment != filename {
		return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
	}

	path, err := h.attachments.Path(userID.String(), filename)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
	}
	return c.Attachment(path, filename)
}

func (h *InvoiceHandler) recordID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("id route parameter must be defined")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ErrInvoiceNotFound
	}
	return id, nil
}

func (h *InvoiceHandler) page(records interface{}, query string, selected interface{}) recordsPage {
	return recordsPage{
		Kind:     "invoice",
		Heading:  "Your income",
		BasePath: incomeBasePath,
		Records:  records,
		Query:    query,
		Selected: selected,
	}
}

func (h *InvoiceHandler) respondInvalidInput(c echo.Context, userID uuid.UUID, selected interface{}, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if WantsJSON(c) {
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	invoices, listErr := h.svc.List(c.Request().Context(), userID, "")
	if listErr != nil {
		return h.respondError(c, "", listErr)
	}
	page := h.page(invoices, "", selected)
	page.FieldErrors = httpErr.Fields
	return c.Render(httpErr.StatusCode, "records", page)
}

func (h *InvoiceHandler) respondUpdateInvalid(c echo.Context, id, userID uuid.UUID, err error) error {
	if WantsJSON(c) {
		httpErr := apperrors.MapErrorToHTTP(err)
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	invoice, getErr := h.svc.Get(c.Request().Context(), id, userID)
	if getErr != nil {
		return h.respondError(c, id.String(), getErr)
	}
	return h.respondInvalidInput(c, userID, invoice, err)
}

func (h *InvoiceHandler) respondError(c echo.Context, id string, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if WantsJSON(c) {
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	if httpErr.StatusCode == http.StatusNotFound {
		return c.Render(http.StatusNotFound, "record_not_found", notFoundPage{
			Kind:     "invoice",
			ID:       id,
			BasePath: incomeBasePath,
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
