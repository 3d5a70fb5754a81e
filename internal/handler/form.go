package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apperrors "beerich/internal/errors"
	"beerich/internal/service"
	"beerich/internal/upload"
)

// Intent selects which mutation a record action performs.
type Intent string

const (
	IntentUpdate Intent = "update"
	IntentDelete Intent = "delete"
)

// ParseIntent parses the hidden intent field exactly once; anything but the
// two known values is a bad request.
func ParseIntent(raw string) (Intent, error) {
	switch Intent(raw) {
	case IntentUpdate:
		return IntentUpdate, nil
	case IntentDelete:
		return IntentDelete, nil
	default:
		return "", apperrors.ErrInvalidIntent
	}
}

// recordForm is the schema for create/update submissions. Amount stays a
// string here; the service parses it into a decimal.
type recordForm struct {
	Title        string `validate:"required"`
	Description  string
	Amount       string `validate:"required"`
	CurrencyCode string `validate:"omitempty,len=3"`
}

// formValues parses the request body. Multipart bodies run through the upload
// handler chain; everything else uses the plain form parser. The second
// return is the filename the storage handler actually wrote, empty when no
// file was uploaded. Attachment names are never taken from form text, only
// from the storage handler, so a submission cannot point a record at a file
// it did not upload.
func formValues(c echo.Context, attachments *upload.Storage, owner string) (url.Values, string, error) {
	contentType := strings.ToLower(c.Request().Header.Get(echo.HeaderContentType))
	if strings.Contains(contentType, "multipart/form") {
		var stored string
		storeHandler := attachments.Handler(owner)
		capture := func(p *upload.Part) (string, bool, error) {
			value, handled, err := storeHandler(p)
			if handled && err == nil && stored == "" {
				stored = value
			}
			return value, handled, err
		}
		values, err := upload.ParseForm(c.Request(), capture, upload.MemoryHandler())
		if err != nil {
			return nil, "", err
		}
		return values, stored, nil
	}
	if err := c.Request().ParseForm(); err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "malformed form body")
	}
	return c.Request().PostForm, "", nil
}

// decodeRecordForm validates the submitted fields into a typed input. The
// attachment argument is the storage handler's output from formValues.
// Violations come back as a typed InvalidInputError, never a bare error.
func decodeRecordForm(c echo.Context, values url.Values, attachment string) (service.RecordInput, error) {
	form := recordForm{
		Title:        strings.TrimSpace(values.Get("title")),
		Description:  values.Get("description"),
		Amount:       values.Get("amount"),
		CurrencyCode: values.Get("currencyCode"),
	}
	if err := c.Validate(&form); err != nil {
		return service.RecordInput{}, invalidInputFromValidation(err)
	}
	return service.RecordInput{
		Title:        form.Title,
		Description:  form.Description,
		Amount:       form.Amount,
		CurrencyCode: form.CurrencyCode,
		Attachment:   attachment,
	}, nil
}

func invalidInputFromValidation(err error) error {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				fields[strings.ToLower(fe.Field())] = "is required"
			case "len":
				fields[strings.ToLower(fe.Field())] = "has the wrong length"
			default:
				fields[strings.ToLower(fe.Field())] = "is invalid"
			}
		}
	}
	return apperrors.NewInvalidInput(fields)
}

// WantsJSON reports whether the client asked for JSON rather than a page.
func WantsJSON(c echo.Context) bool {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) &&
		!strings.Contains(accept, echo.MIMETextHTML)
}

// redirectAfterDelete decides where a successful delete lands. Viewing the
// now-gone detail page falls back to the collection root; any other referrer
// path is preserved, query string included.
func redirectAfterDelete(c echo.Context, id, basePath string) string {
	referer := c.Request().Referer()
	if referer == "" {
		return basePath
	}
	u, err := url.Parse(referer)
	if err != nil {
		return basePath
	}
	if strings.Contains(u.Path, id) {
		return basePath
	}
	target := u.Path
	if target == "" {
		return basePath
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}

// recordsPage is the view model for the combined list/detail dashboard pages.
type recordsPage struct {
	Kind        string
	Heading     string
	BasePath    string
	Records     interface{}
	Query       string
	Selected    interface{}
	Saved       bool
	FieldErrors map[string]string
}

type notFoundPage struct {
	Kind     string
	ID       string
	BasePath string
}

type errorPage struct {
	Heading string
	Message string
	Detail  string
}
