package catalog

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
	"github.com/keyxmakerx/catalogpanel/internal/catalogapi"
	"github.com/keyxmakerx/catalogpanel/internal/imageenc"
	"github.com/keyxmakerx/catalogpanel/internal/plugins/audit"
)

// ErrStaleLoad is returned by Load when a newer load for the same session
// and entity type was issued while this one was in flight. Its result must
// be discarded.
var ErrStaleLoad = errors.New("catalog: stale list load")

// CatalogAPI is the subset of the catalog API client used by the panel.
type CatalogAPI interface {
	List(ctx context.Context, kind catalogapi.Kind, out any) error
	History(ctx context.Context, kind catalogapi.Kind, out any) error
	Create(ctx context.Context, kind catalogapi.Kind, payload any) error
	Update(ctx context.Context, kind catalogapi.Kind, index int, payload any) error
	DeleteAll(ctx context.Context, kind catalogapi.Kind) error
}

// ImageEncoder turns uploads into data URIs.
type ImageEncoder interface {
	Encode(ctx context.Context, u *imageenc.Upload) (string, error)
	Preview(ctx context.Context, u *imageenc.Upload) (string, error)
}

// Listing is the outcome of a list load. When Message is set it replaces
// the list (empty collection or load failure) and Records is empty.
type Listing[T any] struct {
	Records []T
	Message string
	Failed  bool
}

// History is the outcome of a history load: one summary line per deleted
// record, or a single placeholder/error message.
type History struct {
	Lines   []string
	Message string
	Failed  bool
}

// ListController loads and clears one entity type's collection.
type ListController[T any, P RecordPtr[T]] struct {
	entity *Entity
	api    CatalogAPI
	store  StateStore
	audit  audit.AuditService
}

// NewListController creates a list controller for entity.
func NewListController[T any, P RecordPtr[T]](entity *Entity, api CatalogAPI, store StateStore, auditSvc audit.AuditService) *ListController[T, P] {
	return &ListController[T, P]{entity: entity, api: api, store: store, audit: auditSvc}
}

// Entity returns the entity type this controller serves.
func (l *ListController[T, P]) Entity() *Entity { return l.entity }

// Load fetches the collection for display. Fetch failures become the fixed
// load-failed message, never an error. If another Load for the same session
// was issued meanwhile, ErrStaleLoad is returned and the result dropped.
func (l *ListController[T, P]) Load(ctx context.Context, sess Session) (*Listing[T], error) {
	seq, fenced := l.beginLoad(ctx, sess)

	records, err := l.fetch(ctx)

	if fenced {
		latest, ferr := l.store.LatestLoad(ctx, sess.ID, l.entity.Kind)
		if ferr == nil && latest != seq {
			slog.Debug("discarding stale list load",
				slog.String("kind", string(l.entity.Kind)),
				slog.Int64("seq", seq),
				slog.Int64("latest", latest),
			)
			return nil, ErrStaleLoad
		}
	}

	if err != nil {
		slog.Warn("loading catalog collection failed",
			slog.String("kind", string(l.entity.Kind)),
			slog.Any("error", err),
		)
		return &Listing[T]{Message: l.entity.Msg.LoadFailed, Failed: true}, nil
	}
	if len(records) == 0 {
		return &Listing[T]{Message: l.entity.Msg.Empty}, nil
	}
	return &Listing[T]{Records: records}, nil
}

// beginLoad takes a fence sequence number. If Redis is unavailable the load
// proceeds unfenced.
func (l *ListController[T, P]) beginLoad(ctx context.Context, sess Session) (int64, bool) {
	seq, err := l.store.NextLoad(ctx, sess.ID, l.entity.Kind)
	if err != nil {
		slog.Warn("load fence unavailable", slog.Any("error", err))
		return 0, false
	}
	return seq, true
}

// fetch returns a fresh copy of the collection in server order.
func (l *ListController[T, P]) fetch(ctx context.Context) ([]T, error) {
	var records []T
	if err := l.api.List(ctx, l.entity.Kind, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadHistory fetches the deletion history. Failures become a local error
// message in the history region.
func (l *ListController[T, P]) LoadHistory(ctx context.Context) *History {
	var records []T
	if err := l.api.History(ctx, l.entity.Kind, &records); err != nil {
		slog.Warn("loading catalog history failed",
			slog.String("kind", string(l.entity.Kind)),
			slog.Any("error", err),
		)
		return &History{Message: msgHistoryFailed, Failed: true}
	}
	if len(records) == 0 {
		return &History{Message: msgHistoryEmpty}
	}

	lines := make([]string, len(records))
	for i := range records {
		lines[i] = P(&records[i]).Summary()
	}
	return &History{Lines: lines}
}

// DeleteAll removes the whole collection. Without confirmation it returns
// (false, nil) and touches nothing. On success it returns true; the caller
// refreshes the list and history.
func (l *ListController[T, P]) DeleteAll(ctx context.Context, sess Session, confirmed bool) (bool, error) {
	if !confirmed {
		return false, nil
	}

	if err := l.api.DeleteAll(ctx, l.entity.Kind); err != nil {
		return false, apperror.NewUpstream(l.entity.Msg.DeleteFailed, fmt.Errorf("deleting %s: %w", l.entity.Kind, err))
	}

	slog.Info("catalog collection deleted", slog.String("kind", string(l.entity.Kind)))
	_ = l.audit.Log(ctx, &audit.AuditEntry{
		Action:     audit.ActionCollectionDeleted,
		EntityType: string(l.entity.Kind),
		SessionID:  sess.ID,
		ClientIP:   sess.ClientIP,
	})
	return true, nil
}

// SubmitResult is the outcome of a successful submit.
type SubmitResult[T any] struct {
	Updated bool
	Message string
	State   *FormState
	Listing *Listing[T]
}

// FormController owns one entity type's form: edit mode, submit, preview.
type FormController[T any, P RecordPtr[T]] struct {
	entity     *Entity
	api        CatalogAPI
	store      StateStore
	images     ImageEncoder
	list       *ListController[T, P]
	visibility *Visibility
	audit      audit.AuditService
}

// NewFormController creates a form controller that refreshes list after
// each successful submit.
func NewFormController[T any, P RecordPtr[T]](list *ListController[T, P], images ImageEncoder, visibility *Visibility) *FormController[T, P] {
	return &FormController[T, P]{
		entity:     list.entity,
		api:        list.api,
		store:      list.store,
		images:     images,
		list:       list,
		visibility: visibility,
		audit:      list.audit,
	}
}

// State returns the session's current form state.
func (f *FormController[T, P]) State(ctx context.Context, sess Session) (*FormState, error) {
	state, err := f.store.Get(ctx, sess.ID, f.entity.Kind)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return state, nil
}

// Submit creates or updates a record from the submitted form. On failure
// the form stays visible with the submitted values and the error's message
// is the one to show. On success the form is reset and the list reloaded
// once.
func (f *FormController[T, P]) Submit(ctx context.Context, sess Session, values url.Values, upload *imageenc.Upload) (*SubmitResult[T], error) {
	state, err := f.State(ctx, sess)
	if err != nil {
		return nil, err
	}

	record, err := f.buildRecord(ctx, state, values, upload)
	if err == nil {
		err = f.dispatch(ctx, state.Edit, record)
	}
	if err != nil {
		state.Visible = true
		state.Values = formValues(values, f.entity.Fields)
		if serr := f.store.Save(ctx, sess.ID, f.entity.Kind, state); serr != nil {
			slog.Warn("saving form state failed", slog.Any("error", serr))
		}
		return nil, err
	}

	updated := state.Edit != nil
	f.logMutation(ctx, sess, state.Edit, record)

	state.Reset()
	if err := f.store.Save(ctx, sess.ID, f.entity.Kind, state); err != nil {
		return nil, apperror.NewInternal(err)
	}

	res := &SubmitResult[T]{Updated: updated, State: state, Message: f.entity.Msg.Created}
	if updated {
		res.Message = f.entity.Msg.Updated
	}

	listing, err := f.list.Load(ctx, sess)
	if err != nil && !errors.Is(err, ErrStaleLoad) {
		return nil, err
	}
	res.Listing = listing
	return res, nil
}

// buildRecord resolves the image, then binds and validates the form.
func (f *FormController[T, P]) buildRecord(ctx context.Context, state *FormState, values url.Values, upload *imageenc.Upload) (P, error) {
	var none P
	image, err := f.resolveImage(ctx, state.Edit, upload)
	if err != nil {
		return none, err
	}

	record := P(new(T))
	r := NewFormReader(values, f.entity.Fields)
	record.Bind(r)
	if err := r.Err(); err != nil {
		return none, err
	}
	if err := record.Validate(); err != nil {
		return none, err
	}
	record.SetImage(image)
	return record, nil
}

// resolveImage picks the image to send. Update mode always refetches the
// collection and checks it against the edit session first; a new file then
// replaces the target's image, otherwise the target's image is reused.
// Create mode requires a file and fails without any request.
func (f *FormController[T, P]) resolveImage(ctx context.Context, edit *EditSession, upload *imageenc.Upload) (string, error) {
	if edit == nil {
		if upload.Empty() {
			return "", apperror.NewValidation(msgImageRequired)
		}
		return f.images.Encode(ctx, upload)
	}

	records, err := f.list.fetch(ctx)
	if err != nil {
		return "", apperror.NewUpstream(f.entity.Msg.UpdateFailed, fmt.Errorf("refetching %s: %w", f.entity.Kind, err))
	}
	target, err := f.checkEdit(records, edit)
	if err != nil {
		return "", err
	}
	if !upload.Empty() {
		return f.images.Encode(ctx, upload)
	}
	return P(target).ImageData(), nil
}

// checkEdit fails closed when the collection no longer matches the one the
// edit started from.
func (f *FormController[T, P]) checkEdit(records []T, edit *EditSession) (*T, error) {
	if edit.Index < 0 || edit.Index >= len(records) || len(records) != edit.Length {
		slog.Warn("collection changed during edit",
			slog.String("kind", string(f.entity.Kind)),
			slog.Int("index", edit.Index),
			slog.Int("length", len(records)),
			slog.Int("expected_length", edit.Length),
		)
		return nil, apperror.NewConflict(msgCollectionChanged)
	}

	sum, err := fingerprint(len(records), &records[edit.Index])
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if sum != edit.Fingerprint {
		slog.Warn("edited record changed on server",
			slog.String("kind", string(f.entity.Kind)),
			slog.Int("index", edit.Index),
		)
		return nil, apperror.NewConflict(msgCollectionChanged)
	}
	return &records[edit.Index], nil
}

// dispatch sends PUT for update mode and POST for create mode.
func (f *FormController[T, P]) dispatch(ctx context.Context, edit *EditSession, record P) error {
	if edit != nil {
		if err := f.api.Update(ctx, f.entity.Kind, edit.Index, record); err != nil {
			return apperror.NewUpstream(catalogapi.DetailOr(err, f.entity.Msg.UpdateFailed), err)
		}
		slog.Info("catalog record updated",
			slog.String("kind", string(f.entity.Kind)),
			slog.Int("index", edit.Index),
			slog.String("name", record.Title()),
		)
		return nil
	}

	if err := f.api.Create(ctx, f.entity.Kind, record); err != nil {
		return apperror.NewUpstream(catalogapi.DetailOr(err, f.entity.Msg.CreateFailed), err)
	}
	slog.Info("catalog record created",
		slog.String("kind", string(f.entity.Kind)),
		slog.String("name", record.Title()),
	)
	return nil
}

func (f *FormController[T, P]) logMutation(ctx context.Context, sess Session, edit *EditSession, record P) {
	entry := &audit.AuditEntry{
		Action:     audit.ActionEntityCreated,
		EntityType: string(f.entity.Kind),
		EntityName: record.Title(),
		SessionID:  sess.ID,
		ClientIP:   sess.ClientIP,
	}
	if edit != nil {
		entry.Action = audit.ActionEntityUpdated
		entry.EntityIndex = strconv.Itoa(edit.Index)
		entry.Details = map[string]any{
			"collection_length": edit.Length,
			"fingerprint":       edit.Fingerprint,
		}
	}
	_ = f.audit.Log(ctx, entry)
}

// StartEdit switches the form to update mode for the record at index,
// filling every field and the preview from a fresh fetch. An index outside
// the collection is an explicit error and leaves the form untouched.
func (f *FormController[T, P]) StartEdit(ctx context.Context, sess Session, index int) (*FormState, error) {
	records, err := f.list.fetch(ctx)
	if err != nil {
		return nil, apperror.NewUpstream(f.entity.Msg.LoadFailed, fmt.Errorf("fetching %s for edit: %w", f.entity.Kind, err))
	}
	if index < 0 || index >= len(records) {
		slog.Warn("edit requested for missing record",
			slog.String("kind", string(f.entity.Kind)),
			slog.Int("index", index),
			slog.Int("length", len(records)),
		)
		return nil, apperror.NewNotFound(msgRecordNotFound)
	}

	record := P(&records[index])
	sum, err := fingerprint(len(records), &records[index])
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	state := &FormState{
		Visible: true,
		Values:  record.Values(),
		Preview: record.ImageData(),
		Edit:    &EditSession{Index: index, Length: len(records), Fingerprint: sum},
	}
	if err := f.store.Save(ctx, sess.ID, f.entity.Kind, state); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return state, nil
}

// Cancel hides the form, discarding input, and leaves update mode.
func (f *FormController[T, P]) Cancel(ctx context.Context, sess Session) (*FormState, error) {
	state := &FormState{}
	state.Reset()
	if err := f.store.Save(ctx, sess.ID, f.entity.Kind, state); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return state, nil
}

// Toggle flips the form's visibility and always leaves update mode, like
// the "new" button does.
func (f *FormController[T, P]) Toggle(ctx context.Context, sess Session) (*FormState, error) {
	state, err := f.visibility.Toggle(ctx, sess.ID, f.entity.FormID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if state == nil {
		state = &FormState{}
	}
	if state.Edit != nil {
		state.Edit = nil
		if err := f.store.Save(ctx, sess.ID, f.entity.Kind, state); err != nil {
			return nil, apperror.NewInternal(err)
		}
	}
	return state, nil
}

// Preview encodes a newly selected file for display and remembers it. No
// file clears the preview. A bad file clears it and returns the error.
func (f *FormController[T, P]) Preview(ctx context.Context, sess Session, upload *imageenc.Upload) (string, error) {
	uri, encErr := f.images.Preview(ctx, upload)

	state, err := f.State(ctx, sess)
	if err != nil {
		return "", err
	}
	state.Preview = uri
	if err := f.store.Save(ctx, sess.ID, f.entity.Kind, state); err != nil {
		return "", apperror.NewInternal(err)
	}
	return uri, encErr
}

// fingerprint hashes the collection length and the JSON form of one record
// with BLAKE2b-256.
func fingerprint[T any](length int, record *T) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encoding record for fingerprint: %w", err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(length))
	h.Write(n[:])
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
