package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"beerich/internal/auth"
	apperrors "beerich/internal/errors"
	"beerich/internal/model"
	"beerich/internal/service"
	"beerich/internal/upload"
	"beerich/internal/view"
)

// MockExpenseService is a mock implementation of service.ExpenseService.
type MockExpenseService struct {
	mock.Mock
}

func (m *MockExpenseService) List(ctx context.Context, userID uuid.UUID, query string) ([]model.Expense, error) {
	args := m.Called(ctx, userID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Expense), args.Error(1)
}

func (m *MockExpenseService) Get(ctx context.Context, id, userID uuid.UUID) (*model.Expense, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Expense), args.Error(1)
}

func (m *MockExpenseService) Create(ctx context.Context, userID uuid.UUID, input service.RecordInput) (*model.Expense, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Expense), args.Error(1)
}

func (m *MockExpenseService) Update(ctx context.Context, id, userID uuid.UUID, input service.RecordInput) error {
	args := m.Called(ctx, id, userID, input)
	return args.Error(0)
}

func (m *MockExpenseService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

type testValidator struct {
	v *validator.Validate
}

func (tv *testValidator) Validate(i interface{}) error {
	return tv.v.Struct(i)
}

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}
	renderer, err := view.New()
	require.NoError(t, err)
	e.Renderer = renderer
	return e
}

// newActionContext builds a POST context for the expense action route.
func newActionContext(e *echo.Echo, id, userID uuid.UUID, form url.Values, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/dashboard/expenses/"+id.String(), strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/dashboard/expenses/:id")
	c.SetParamNames("id")
	c.SetParamValues(id.String())
	auth.SetUserID(c, userID)
	return c, rec
}

func TestExpenseHandler_Action_IntentDispatch(t *testing.T) {
	tests := []struct {
		name   string
		intent string
		set    bool
	}{
		{name: "unknown intent", intent: "archive", set: true},
		{name: "missing intent", set: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho(t)
			svc := new(MockExpenseService)
			h := NewExpenseHandler(svc, nil)

			form := url.Values{}
			if tt.set {
				form.Set("intent", tt.intent)
			}
			c, rec := newActionContext(e, uuid.New(), uuid.New(), form, map[string]string{
				echo.HeaderAccept: echo.MIMEApplicationJSON,
			})

			require.NoError(t, h.Action(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "INVALID_INTENT")
			svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			svc.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestExpenseHandler_Delete_RedirectPolicy(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name         string
		referer      string
		wantLocation string
	}{
		{
			name:         "no referer falls back to collection root",
			referer:      "",
			wantLocation: "/dashboard/expenses",
		},
		{
			name:         "referer showing the deleted record goes to collection root",
			referer:      "http://localhost:3000/dashboard/expenses/" + id.String(),
			wantLocation: "/dashboard/expenses",
		},
		{
			name:         "other referer path is preserved",
			referer:      "http://localhost:3000/dashboard/expenses?q=dinner",
			wantLocation: "/dashboard/expenses?q=dinner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho(t)
			svc := new(MockExpenseService)
			userID := uuid.New()
			svc.On("Delete", mock.Anything, id, userID).Return(nil)
			h := NewExpenseHandler(svc, nil)

			headers := map[string]string{}
			if tt.referer != "" {
				headers["Referer"] = tt.referer
			}
			form := url.Values{"intent": {"delete"}}
			c, rec := newActionContext(e, id, userID, form, headers)

			require.NoError(t, h.Action(c))
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get(echo.HeaderLocation))
			svc.AssertExpectations(t)
		})
	}
}

func TestExpenseHandler_Delete_NotFound(t *testing.T) {
	e := newTestEcho(t)
	svc := new(MockExpenseService)
	id := uuid.New()
	userID := uuid.New()
	svc.On("Delete", mock.Anything, id, userID).Return(apperrors.ErrExpenseNotFound)
	h := NewExpenseHandler(svc, nil)

	form := url.Values{"intent": {"delete"}}
	c, rec := newActionContext(e, id, userID, form, map[string]string{
		echo.HeaderAccept: echo.MIMEApplicationJSON,
	})

	require.NoError(t, h.Action(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpenseHandler_Update(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()

	t.Run("success returns acknowledgment", func(t *testing.T) {
		e := newTestEcho(t)
		svc := new(MockExpenseService)
		svc.On("Update", mock.Anything, id, userID, service.RecordInput{
			Title:  "Dinner",
			Amount: "42.50",
		}).Return(nil)
		h := NewExpenseHandler(svc, nil)

		form := url.Values{"intent": {"update"}, "title": {"Dinner"}, "amount": {"42.50"}}
		c, rec := newActionContext(e, id, userID, form, map[string]string{
			echo.HeaderAccept: echo.MIMEApplicationJSON,
		})

		require.NoError(t, h.Action(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("missing title is typed invalid input", func(t *testing.T) {
		e := newTestEcho(t)
		svc := new(MockExpenseService)
		h := NewExpenseHandler(svc, nil)

		form := url.Values{"intent": {"update"}, "amount": {"42.50"}}
		c, rec := newActionContext(e, id, userID, form, map[string]string{
			echo.HeaderAccept: echo.MIMEApplicationJSON,
		})

		require.NoError(t, h.Action(c))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
		assert.Contains(t, rec.Body.String(), "title")
		svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("form text never becomes an attachment pointer", func(t *testing.T) {
		e := newTestEcho(t)
		svc := new(MockExpenseService)
		svc.On("Update", mock.Anything, id, userID, service.RecordInput{
			Title:      "Dinner",
			Amount:     "42.50",
			Attachment: "",
		}).Return(nil)
		h := NewExpenseHandler(svc, nil)

		// A urlencoded submission carries no upload, so a client-chosen
		// attachment value must be dropped, not persisted.
		form := url.Values{
			"intent":     {"update"},
			"title":      {"Dinner"},
			"amount":     {"42.50"},
			"attachment": {"victim.pdf"},
		}
		c, rec := newActionContext(e, id, userID, form, map[string]string{
			echo.HeaderAccept: echo.MIMEApplicationJSON,
		})

		require.NoError(t, h.Action(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("non-numeric amount is typed invalid input", func(t *testing.T) {
		e := newTestEcho(t)
		svc := new(MockExpenseService)
		svc.On("Update", mock.Anything, id, userID, mock.Anything).
			Return(apperrors.NewInvalidInput(map[string]string{"amount": "must be a valid number"}))
		h := NewExpenseHandler(svc, nil)

		form := url.Values{"intent": {"update"}, "title": {"Dinner"}, "amount": {"soup"}}
		c, rec := newActionContext(e, id, userID, form, map[string]string{
			echo.HeaderAccept: echo.MIMEApplicationJSON,
		})

		require.NoError(t, h.Action(c))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "amount")
	})
}

func TestExpenseHandler_Detail(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()

	t.Run("not found renders the id", func(t *testing.T) {
		e := newTestEcho(t)
		svc := new(MockExpenseService)
		svc.On("Get", mock.Anything, id, userID).Return(nil, apperrors.ErrExpenseNotFound)
		h := NewExpenseHandler(svc, nil)

		req := httptest.NewRequest(http.MethodGet, "/dashboard/expenses/"+id.String(), nil)
		req.Header.Set(echo.HeaderAccept, echo.MIMETextHTML)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/dashboard/expenses/:id")
		c.SetParamNames("id")
		c.SetParamValues(id.String())
		auth.SetUserID(c, userID)

		require.NoError(t, h.Detail(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), id.String())
		assert.Contains(t, rec.Body.String(), "cannot be found")
	})

	t.Run("found returns the record as JSON", func(t *testing.T) {
		e := newTestEcho(t)
		svc := new(MockExpenseService)
		svc.On("Get", mock.Anything, id, userID).Return(&model.Expense{ID: id, UserID: userID, Title: "Dinner"}, nil)
		h := NewExpenseHandler(svc, nil)

		req := httptest.NewRequest(http.MethodGet, "/dashboard/expenses/"+id.String(), nil)
		req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/dashboard/expenses/:id")
		c.SetParamNames("id")
		c.SetParamValues(id.String())
		auth.SetUserID(c, userID)

		require.NoError(t, h.Detail(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Dinner")
	})
}

// newAttachmentContext builds a GET context for the attachment serving route.
func newAttachmentContext(e *echo.Echo, id, userID uuid.UUID, filename string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/dashboard/expenses/"+id.String()+"/attachments/"+filename, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/dashboard/expenses/:id/attachments/:filename")
	c.SetParamNames("id", "filename")
	c.SetParamValues(id.String(), filename)
	auth.SetUserID(c, userID)
	return c, rec
}

func TestExpenseHandler_Attachment(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()

	t.Run("serves the owner's stored file", func(t *testing.T) {
		e := newTestEcho(t)
		storage, err := upload.NewStorage(t.TempDir())
		require.NoError(t, err)
		filename, err := storage.Save(userID.String(), "receipt.pdf", strings.NewReader("pdf bytes"))
		require.NoError(t, err)

		svc := new(MockExpenseService)
		svc.On("Get", mock.Anything, id, userID).
			Return(&model.Expense{ID: id, UserID: userID, Attachment: &filename}, nil)
		h := NewExpenseHandler(svc, storage)

		c, rec := newAttachmentContext(e, id, userID, filename)
		require.NoError(t, h.Attachment(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pdf bytes", rec.Body.String())
	})

	t.Run("filename not matching the record is 404", func(t *testing.T) {
		e := newTestEcho(t)
		storage, err := upload.NewStorage(t.TempDir())
		require.NoError(t, err)
		filename := "receipt.pdf"

		svc := new(MockExpenseService)
		svc.On("Get", mock.Anything, id, userID).
			Return(&model.Expense{ID: id, UserID: userID, Attachment: &filename}, nil)
		h := NewExpenseHandler(svc, storage)

		c, _ := newAttachmentContext(e, id, userID, "other.pdf")
		err = h.Attachment(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})

	t.Run("record pointing at another user's filename serves nothing", func(t *testing.T) {
		e := newTestEcho(t)
		storage, err := upload.NewStorage(t.TempDir())
		require.NoError(t, err)

		victim := uuid.New()
		filename, err := storage.Save(victim.String(), "victim.pdf", strings.NewReader("victim's bytes"))
		require.NoError(t, err)

		svc := new(MockExpenseService)
		svc.On("Get", mock.Anything, id, userID).
			Return(&model.Expense{ID: id, UserID: userID, Attachment: &filename}, nil)
		h := NewExpenseHandler(svc, storage)

		c, _ := newAttachmentContext(e, id, userID, filename)
		err = h.Attachment(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		raw     string
		want    Intent
		wantErr bool
	}{
		{raw: "update", want: IntentUpdate},
		{raw: "delete", want: IntentDelete},
		{raw: "", wantErr: true},
		{raw: "UPDATE", wantErr: true},
		{raw: "archive", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("intent "+tt.raw, func(t *testing.T) {
			got, err := ParseIntent(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidIntent)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
