package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
	"github.com/keyxmakerx/catalogpanel/internal/imageenc"
	"github.com/keyxmakerx/catalogpanel/internal/middleware"
	"github.com/keyxmakerx/catalogpanel/internal/templates/layouts"
	"github.com/keyxmakerx/catalogpanel/internal/widgets/notify"
)

// Handler handles HTTP requests for one entity type. Handlers are thin:
// bind request, call the controllers, render fragments. Failures the user
// can act on become one error toast and leave the page untouched.
type Handler[T any, P RecordPtr[T]] struct {
	entity *Entity
	list   *ListController[T, P]
	form   *FormController[T, P]
}

// NewHandler creates a handler over the given controllers.
func NewHandler[T any, P RecordPtr[T]](list *ListController[T, P], form *FormController[T, P]) *Handler[T, P] {
	return &Handler[T, P]{entity: list.entity, list: list, form: form}
}

// session builds the controller session from the request.
func session(c echo.Context) Session {
	return Session{ID: middleware.SessionID(c), ClientIP: c.RealIP()}
}

// fail shows err as a single error toast and keeps the current page.
// Server-side failures are logged with their cause.
func fail(c echo.Context, err error) error {
	if apperror.SafeCode(err) >= http.StatusInternalServerError {
		slog.Error("catalog request failed",
			slog.String("path", c.Request().URL.Path),
			slog.Any("error", err),
		)
	}
	notify.Notify(c, apperror.SafeMessage(err), notify.Error)
	return middleware.NoSwap(c)
}

// records converts loaded records to the view's Record interface.
func records[T any, P RecordPtr[T]](in []T) []Record {
	out := make([]Record, len(in))
	for i := range in {
		out[i] = P(&in[i])
	}
	return out
}

// listView renders a listing. A nil listing renders as an empty region.
func (h *Handler[T, P]) listView(l *Listing[T], oob bool) templ.Component {
	if l == nil {
		return ListView(h.entity, nil, "", oob)
	}
	return ListView(h.entity, records[T, P](l.Records), l.Message, oob)
}

// Page renders the full management page (GET /players, GET /enemies).
func (h *Handler[T, P]) Page(c echo.Context) error {
	ctx := c.Request().Context()
	sess := session(c)

	state, err := h.form.State(ctx, sess)
	if err != nil {
		return err
	}

	listing, err := h.list.Load(ctx, sess)
	if err != nil && !errors.Is(err, ErrStaleLoad) {
		return err
	}
	history := h.list.LoadHistory(ctx)

	page := EntityPage(h.entity, state, h.listView(listing, false), HistoryView(h.entity, history, false))
	return middleware.Render(c, http.StatusOK, layouts.Page(h.entity.Msg.Title, page))
}

// List renders the list fragment (GET /:type/list). A stale load answers
// 204 so HTMX keeps the newer content.
func (h *Handler[T, P]) List(c echo.Context) error {
	listing, err := h.list.Load(c.Request().Context(), session(c))
	if errors.Is(err, ErrStaleLoad) {
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return err
	}
	return middleware.Render(c, http.StatusOK, h.listView(listing, false))
}

// History renders the history fragment (GET /:type/history).
func (h *Handler[T, P]) History(c echo.Context) error {
	history := h.list.LoadHistory(c.Request().Context())
	return middleware.Render(c, http.StatusOK, HistoryView(h.entity, history, false))
}

// DeleteAll removes the collection (POST /:type/delete-all). The request
// must carry confirm=true; without it nothing is sent to the API.
func (h *Handler[T, P]) DeleteAll(c echo.Context) error {
	ctx := c.Request().Context()
	sess := session(c)
	confirmed := c.FormValue("confirm") == "true"

	deleted, err := h.list.DeleteAll(ctx, sess, confirmed)
	if err != nil {
		return fail(c, err)
	}
	if !deleted {
		return middleware.NoSwap(c)
	}

	notify.Notify(c, h.entity.Msg.Deleted, notify.Success)
	listing, err := h.list.Load(ctx, sess)
	if err != nil && !errors.Is(err, ErrStaleLoad) {
		return err
	}
	history := h.list.LoadHistory(ctx)

	var parts []templ.Component
	if listing != nil {
		parts = append(parts, h.listView(listing, true))
	}
	parts = append(parts, HistoryView(h.entity, history, true))
	return middleware.NoSwap(c, parts...)
}

// Toggle shows or hides the form (POST /:type/form/toggle).
func (h *Handler[T, P]) Toggle(c echo.Context) error {
	state, err := h.form.Toggle(c.Request().Context(), session(c))
	if err != nil {
		return fail(c, err)
	}
	return middleware.Render(c, http.StatusOK, FormView(h.entity, state))
}

// Cancel hides the form and leaves update mode (POST /:type/form/cancel).
func (h *Handler[T, P]) Cancel(c echo.Context) error {
	state, err := h.form.Cancel(c.Request().Context(), session(c))
	if err != nil {
		return fail(c, err)
	}
	return middleware.Render(c, http.StatusOK, FormView(h.entity, state))
}

// StartEdit fills the form from the record at :index (POST /:type/:index/edit).
func (h *Handler[T, P]) StartEdit(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return fail(c, apperror.NewNotFound(msgRecordNotFound))
	}

	state, err := h.form.StartEdit(c.Request().Context(), session(c), index)
	if err != nil {
		return fail(c, err)
	}
	return middleware.Render(c, http.StatusOK, FormView(h.entity, state))
}

// Preview updates the image preview from the selected file
// (POST /:type/form/preview).
func (h *Handler[T, P]) Preview(c echo.Context) error {
	upload, err := formUpload(c)
	if err != nil {
		return fail(c, err)
	}

	uri, err := h.form.Preview(c.Request().Context(), session(c), upload)
	if err != nil {
		notify.Notify(c, apperror.SafeMessage(err), notify.Error)
	}
	return middleware.Render(c, http.StatusOK, PreviewView(h.entity, uri))
}

// Submit creates or updates a record (POST /:type/form). On success the
// form is replaced by its hidden state and the list is swapped out of band.
// On failure the form is left as the user filled it.
func (h *Handler[T, P]) Submit(c echo.Context) error {
	upload, err := formUpload(c)
	if err != nil {
		return fail(c, err)
	}
	values, err := c.FormParams()
	if err != nil {
		return fail(c, apperror.NewBadRequest("Formulario inválido"))
	}

	res, err := h.form.Submit(c.Request().Context(), session(c), values, upload)
	if err != nil {
		return fail(c, err)
	}

	notify.Notify(c, res.Message, notify.Success)
	parts := []templ.Component{FormView(h.entity, res.State)}
	if res.Listing != nil {
		parts = append(parts, h.listView(res.Listing, true))
	}
	return middleware.Render(c, http.StatusOK, parts...)
}

// formUpload returns the "image" file of a multipart request, or nil when
// none was sent.
func formUpload(c echo.Context) (*imageenc.Upload, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.NewBadRequest("No se pudo leer la imagen")
	}
	return imageenc.FromFileHeader(fh), nil
}
