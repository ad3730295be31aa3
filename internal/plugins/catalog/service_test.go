package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
	"github.com/keyxmakerx/catalogpanel/internal/catalogapi"
	"github.com/keyxmakerx/catalogpanel/internal/imageenc"
	"github.com/keyxmakerx/catalogpanel/internal/plugins/audit"
)

// --- Mock Catalog API ---

// mockCatalogAPI implements CatalogAPI for testing. Unset functions succeed
// with an empty collection. Every call is counted.
type mockCatalogAPI struct {
	listFn      func(kind catalogapi.Kind) (any, error)
	historyFn   func(kind catalogapi.Kind) (any, error)
	createFn    func(kind catalogapi.Kind, payload any) error
	updateFn    func(kind catalogapi.Kind, index int, payload any) error
	deleteAllFn func(kind catalogapi.Kind) error

	calls map[string]int
}

func (m *mockCatalogAPI) count(op string) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// total returns the number of API calls of any kind.
func (m *mockCatalogAPI) total() int {
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// decodeInto copies src into out through JSON, like the real client does.
func decodeInto(src, out any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (m *mockCatalogAPI) List(_ context.Context, kind catalogapi.Kind, out any) error {
	m.count("list")
	if m.listFn == nil {
		return nil
	}
	src, err := m.listFn(kind)
	if err != nil {
		return err
	}
	return decodeInto(src, out)
}

func (m *mockCatalogAPI) History(_ context.Context, kind catalogapi.Kind, out any) error {
	m.count("history")
	if m.historyFn == nil {
		return nil
	}
	src, err := m.historyFn(kind)
	if err != nil {
		return err
	}
	return decodeInto(src, out)
}

func (m *mockCatalogAPI) Create(_ context.Context, kind catalogapi.Kind, payload any) error {
	m.count("create")
	if m.createFn != nil {
		return m.createFn(kind, payload)
	}
	return nil
}

func (m *mockCatalogAPI) Update(_ context.Context, kind catalogapi.Kind, index int, payload any) error {
	m.count("update")
	if m.updateFn != nil {
		return m.updateFn(kind, index, payload)
	}
	return nil
}

func (m *mockCatalogAPI) DeleteAll(_ context.Context, kind catalogapi.Kind) error {
	m.count("delete_all")
	if m.deleteAllFn != nil {
		return m.deleteAllFn(kind)
	}
	return nil
}

// --- Mock Audit Service ---

type mockAuditService struct {
	entries []audit.AuditEntry
}

func (m *mockAuditService) Log(_ context.Context, entry *audit.AuditEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditService) GetActivity(context.Context, string, int) ([]audit.AuditEntry, int, error) {
	return nil, 0, nil
}

func (m *mockAuditService) GetSummary(context.Context) (*audit.ActivitySummary, error) {
	return &audit.ActivitySummary{}, nil
}

func (m *mockAuditService) Enabled() bool { return true }

// --- Helpers ---

var testSession = Session{ID: "3b241101-e2bb-4255-8caf-4136c566a962", ClientIP: "10.0.0.7"}

// newTestStore returns a state store on a fresh miniredis and the server.
func newTestStore(t *testing.T) (StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStateStore(rdb, time.Hour), mr
}

type enemyControllers struct {
	list  *ListController[Enemy, *Enemy]
	form  *FormController[Enemy, *Enemy]
	store StateStore
	audit *mockAuditService
}

func newEnemyControllers(t *testing.T, api *mockCatalogAPI) *enemyControllers {
	t.Helper()
	store, _ := newTestStore(t)
	auditSvc := &mockAuditService{}
	list := NewListController[Enemy, *Enemy](EnemyEntity, api, store, auditSvc)
	form := NewFormController(list, imageenc.New(1<<20, 0), NewVisibility(store, PlayerEntity, EnemyEntity))
	return &enemyControllers{list: list, form: form, store: store, audit: auditSvc}
}

func newPlayerControllers(t *testing.T, api *mockCatalogAPI) (*ListController[Player, *Player], *FormController[Player, *Player]) {
	t.Helper()
	store, _ := newTestStore(t)
	list := NewListController[Player, *Player](PlayerEntity, api, store, audit.NewNoopService())
	form := NewFormController(list, imageenc.New(1<<20, 0), NewVisibility(store, PlayerEntity, EnemyEntity))
	return list, form
}

const (
	goblinImage = "data:image/png;base64,R29ibGlu"
	orcImage    = "data:image/png;base64,T3Jj"
)

func goblinAndOrc() []Enemy {
	return []Enemy{
		{Name: "Goblin", Speed: 1.5, Jump: 1, HitSpeed: 2, Health: 10, Type: "orc", Spawn: 3, ProbabilitySpawn: 0.5, Image: goblinImage},
		{Name: "Orc", Speed: 1, Jump: 0.5, HitSpeed: 1, Health: 30, Type: "orc", Spawn: 5, ProbabilitySpawn: 0.2, Image: orcImage},
	}
}

func enemyForm(name string) url.Values {
	return url.Values{
		"name":              {name},
		"type":              {"orc"},
		"health":            {"30"},
		"speed":             {"1"},
		"jump":              {"0.5"},
		"hit_speed":         {"1"},
		"spawn":             {"5"},
		"probability_spawn": {"0.2"},
	}
}

func playerForm(name string) url.Values {
	return url.Values{
		"name":              {name},
		"health":            {"100"},
		"regenerate_health": {"2"},
		"speed":             {"1.5"},
		"jump":              {"2"},
		"armor":             {"5"},
		"hit_speed":         {"3"},
	}
}

func pngUpload(t *testing.T) *imageenc.Upload {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	data := buf.Bytes()
	return &imageenc.Upload{
		Filename: "hero.png",
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func assertAppError(t *testing.T, err error, code int, message string) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != code {
		t.Errorf("expected code %d, got %d", code, appErr.Code)
	}
	if appErr.Message != message {
		t.Errorf("expected message %q, got %q", message, appErr.Message)
	}
}

// --- Load Tests ---

func TestLoad_ReturnsRecordsInServerOrder(t *testing.T) {
	api := &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) { return goblinAndOrc(), nil }}
	c := newEnemyControllers(t, api)

	listing, err := c.list.Load(context.Background(), testSession)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listing.Records) != 2 || listing.Records[0].Name != "Goblin" || listing.Records[1].Name != "Orc" {
		t.Errorf("unexpected records: %+v", listing.Records)
	}
	if listing.Message != "" {
		t.Errorf("expected no message, got %q", listing.Message)
	}
}

func TestLoad_EmptyCollection(t *testing.T) {
	list, _ := newPlayerControllers(t, &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) {
		return []Player{}, nil
	}})

	listing, err := list.Load(context.Background(), testSession)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listing.Message != "No hay jugadores registrados." || len(listing.Records) != 0 {
		t.Errorf("unexpected listing: %+v", listing)
	}
	if listing.Failed {
		t.Error("empty collection is not a failure")
	}
}

func TestLoad_FailureBecomesMessage(t *testing.T) {
	c := newEnemyControllers(t, &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) {
		return nil, errors.New("connection refused")
	}})

	listing, err := c.list.Load(context.Background(), testSession)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !listing.Failed || listing.Message != "Error al cargar enemigos." {
		t.Errorf("unexpected listing: %+v", listing)
	}
}

func TestLoad_StaleResultDiscarded(t *testing.T) {
	store, _ := newTestStore(t)
	api := &mockCatalogAPI{}
	api.listFn = func(catalogapi.Kind) (any, error) {
		// A newer load starts while this one is in flight.
		if api.calls["list"] == 1 {
			if _, err := store.NextLoad(context.Background(), testSession.ID, catalogapi.Enemies); err != nil {
				t.Fatalf("NextLoad: %v", err)
			}
		}
		return goblinAndOrc(), nil
	}
	list := NewListController[Enemy, *Enemy](EnemyEntity, api, store, audit.NewNoopService())

	if _, err := list.Load(context.Background(), testSession); !errors.Is(err, ErrStaleLoad) {
		t.Fatalf("expected ErrStaleLoad, got %v", err)
	}

	// The next load is the latest one and is kept.
	listing, err := list.Load(context.Background(), testSession)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listing.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(listing.Records))
	}
}

func TestLoad_FenceIsPerSession(t *testing.T) {
	store, _ := newTestStore(t)
	other := Session{ID: "0d6b5c2e-7c1e-4a39-9d7b-2f1f0a2c9e11"}
	api := &mockCatalogAPI{}
	api.listFn = func(catalogapi.Kind) (any, error) {
		// Another browser loading does not make this load stale.
		if _, err := store.NextLoad(context.Background(), other.ID, catalogapi.Enemies); err != nil {
			t.Fatalf("NextLoad: %v", err)
		}
		return goblinAndOrc(), nil
	}
	list := NewListController[Enemy, *Enemy](EnemyEntity, api, store, audit.NewNoopService())

	if _, err := list.Load(context.Background(), testSession); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_RedisDownLoadsUnfenced(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()
	api := &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) { return goblinAndOrc(), nil }}
	list := NewListController[Enemy, *Enemy](EnemyEntity, api, store, audit.NewNoopService())

	listing, err := list.Load(context.Background(), testSession)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listing.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(listing.Records))
	}
}

// --- History Tests ---

func TestLoadHistory_Summaries(t *testing.T) {
	api := &mockCatalogAPI{historyFn: func(kind catalogapi.Kind) (any, error) {
		if kind != catalogapi.Players {
			t.Errorf("unexpected kind %q", kind)
		}
		return []Player{{Name: "Ana", Health: 100, Speed: 1.5}, {Name: "Bo", Health: 80, Speed: 2}}, nil
	}}
	list, _ := newPlayerControllers(t, api)

	h := list.LoadHistory(context.Background())
	want := []string{"Ana (Salud: 100, Vel: 1.5)", "Bo (Salud: 80, Vel: 2)"}
	if len(h.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %v", len(want), h.Lines)
	}
	for i := range want {
		if h.Lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], h.Lines[i])
		}
	}
}

func TestLoadHistory_EnemySummary(t *testing.T) {
	c := newEnemyControllers(t, &mockCatalogAPI{historyFn: func(catalogapi.Kind) (any, error) {
		return goblinAndOrc()[:1], nil
	}})

	h := c.list.LoadHistory(context.Background())
	if len(h.Lines) != 1 || h.Lines[0] != "Goblin (Tipo: orc, Salud: 10)" {
		t.Errorf("unexpected lines: %v", h.Lines)
	}
}

func TestLoadHistory_EmptyAndFailure(t *testing.T) {
	empty := newEnemyControllers(t, &mockCatalogAPI{})
	h := empty.list.LoadHistory(context.Background())
	if h.Message != "No hay histórico." || h.Failed {
		t.Errorf("unexpected empty history: %+v", h)
	}

	failing := newEnemyControllers(t, &mockCatalogAPI{historyFn: func(catalogapi.Kind) (any, error) {
		return nil, &catalogapi.APIError{Status: http.StatusInternalServerError}
	}})
	h = failing.list.LoadHistory(context.Background())
	if h.Message != "Error al cargar histórico." || !h.Failed {
		t.Errorf("unexpected failed history: %+v", h)
	}
}

// --- DeleteAll Tests ---

func TestDeleteAll_DeclinedSendsNothing(t *testing.T) {
	api := &mockCatalogAPI{}
	c := newEnemyControllers(t, api)

	deleted, err := c.list.DeleteAll(context.Background(), testSession, false)
	if err != nil || deleted {
		t.Fatalf("expected (false, nil), got (%v, %v)", deleted, err)
	}
	if api.total() != 0 {
		t.Errorf("expected no API calls, got %v", api.calls)
	}
	if len(c.audit.entries) != 0 {
		t.Error("expected no audit entry")
	}
}

func TestDeleteAll_Confirmed(t *testing.T) {
	api := &mockCatalogAPI{}
	c := newEnemyControllers(t, api)

	deleted, err := c.list.DeleteAll(context.Background(), testSession, true)
	if err != nil || !deleted {
		t.Fatalf("expected (true, nil), got (%v, %v)", deleted, err)
	}
	if api.calls["delete_all"] != 1 {
		t.Errorf("expected one delete call, got %d", api.calls["delete_all"])
	}
	if len(c.audit.entries) != 1 || c.audit.entries[0].Action != audit.ActionCollectionDeleted {
		t.Errorf("unexpected audit entries: %+v", c.audit.entries)
	}
	if c.audit.entries[0].ClientIP != testSession.ClientIP {
		t.Errorf("expected client IP %q, got %q", testSession.ClientIP, c.audit.entries[0].ClientIP)
	}
}

func TestDeleteAll_Failure(t *testing.T) {
	c := newEnemyControllers(t, &mockCatalogAPI{deleteAllFn: func(catalogapi.Kind) error {
		return errors.New("timeout")
	}})

	_, err := c.list.DeleteAll(context.Background(), testSession, true)
	assertAppError(t, err, http.StatusBadGateway, "Error al eliminar enemigos")
}

// --- Edit Mode Tests ---

func TestStartEdit_FillsFormFromRecord(t *testing.T) {
	c := newEnemyControllers(t, &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) { return goblinAndOrc(), nil }})

	state, err := c.form.StartEdit(context.Background(), testSession, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Visible {
		t.Error("expected the form to be visible")
	}
	if state.Edit == nil || state.Edit.Index != 1 || state.Edit.Length != 2 {
		t.Fatalf("unexpected edit session: %+v", state.Edit)
	}
	want := map[string]string{
		"name": "Orc", "type": "orc", "health": "30", "speed": "1", "jump": "0.5",
		"hit_speed": "1", "spawn": "5", "probability_spawn": "0.2",
	}
	for k, v := range want {
		if state.Value(k) != v {
			t.Errorf("field %s: expected %q, got %q", k, v, state.Value(k))
		}
	}
	if state.Preview != orcImage {
		t.Errorf("expected Orc's image as preview, got %q", state.Preview)
	}

	// The state is stored for the session.
	stored, err := c.store.Get(context.Background(), testSession.ID, catalogapi.Enemies)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Edit == nil || stored.Edit.Index != 1 {
		t.Errorf("expected stored edit session, got %+v", stored.Edit)
	}
}

func TestStartEdit_OutOfRange(t *testing.T) {
	c := newEnemyControllers(t, &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) { return goblinAndOrc(), nil }})

	for _, index := range []int{-1, 2, 10} {
		_, err := c.form.StartEdit(context.Background(), testSession, index)
		assertAppError(t, err, http.StatusNotFound, "Registro no encontrado")
	}

	state, _ := c.store.Get(context.Background(), testSession.ID, catalogapi.Enemies)
	if state.Edit != nil || state.Visible {
		t.Errorf("expected state untouched, got %+v", state)
	}
}

func TestSubmit_UpdateReusesImage(t *testing.T) {
	var gotIndex int
	var gotPayload *Enemy
	api := &mockCatalogAPI{
		listFn: func(catalogapi.Kind) (any, error) { return goblinAndOrc(), nil },
		updateFn: func(kind catalogapi.Kind, index int, payload any) error {
			if kind != catalogapi.Enemies {
				t.Errorf("unexpected kind %q", kind)
			}
			gotIndex = index
			gotPayload = payload.(*Enemy)
			return nil
		},
	}
	c := newEnemyControllers(t, api)
	ctx := context.Background()

	if _, err := c.form.StartEdit(ctx, testSession, 1); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}

	values := enemyForm("Orc")
	values.Set("health", "40")
	res, err := c.form.Submit(ctx, testSession, values, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if api.calls["update"] != 1 || api.calls["create"] != 0 {
		t.Fatalf("expected one update and no create, got %v", api.calls)
	}
	if gotIndex != 1 {
		t.Errorf("expected PUT to index 1, got %d", gotIndex)
	}
	if gotPayload.Image != orcImage {
		t.Errorf("expected Orc's image to be reused, got %q", gotPayload.Image)
	}
	if gotPayload.Health != 40 {
		t.Errorf("expected health 40, got %d", gotPayload.Health)
	}
	if !res.Updated || res.Message != "Enemigo actualizado exitosamente" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.State.Edit != nil || res.State.Visible {
		t.Errorf("expected create mode and hidden form, got %+v", res.State)
	}
	if len(c.audit.entries) != 1 || c.audit.entries[0].Action != audit.ActionEntityUpdated || c.audit.entries[0].EntityIndex != "1" {
		t.Errorf("unexpected audit entries: %+v", c.audit.entries)
	}
	orc := goblinAndOrc()[1]
	want, _ := fingerprint(2, &orc)
	details := c.audit.entries[0].Details
	if details["collection_length"] != 2 || details["fingerprint"] != want {
		t.Errorf("expected the edit target in details, got %+v", details)
	}
}

func TestSubmit_UpdateCollectionChanged(t *testing.T) {
	records := goblinAndOrc()
	api := &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) { return records, nil }}
	c := newEnemyControllers(t, api)
	ctx := context.Background()

	if _, err := c.form.StartEdit(ctx, testSession, 1); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}

	tests := []struct {
		name   string
		mutate func() []Enemy
	}{
		{"record replaced", func() []Enemy {
			r := goblinAndOrc()
			r[1].Name = "Troll"
			return r
		}},
		{"record removed", func() []Enemy { return goblinAndOrc()[:1] }},
		{"record inserted", func() []Enemy {
			return append([]Enemy{{Name: "Imp", Speed: 1, Jump: 1, Spawn: 1, Type: "imp"}}, goblinAndOrc()...)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records = tt.mutate()
			_, err := c.form.Submit(ctx, testSession, enemyForm("Orc"), nil)
			assertAppError(t, err, http.StatusConflict, "La colección cambió, recarga la lista")
			if api.calls["update"] != 0 {
				t.Errorf("expected no PUT, got %d", api.calls["update"])
			}
		})
	}
}

func TestSubmit_UpdateWithNewImage(t *testing.T) {
	var gotPayload *Enemy
	api := &mockCatalogAPI{
		listFn: func(catalogapi.Kind) (any, error) { return goblinAndOrc(), nil },
		updateFn: func(_ catalogapi.Kind, _ int, payload any) error {
			gotPayload = payload.(*Enemy)
			return nil
		},
	}
	c := newEnemyControllers(t, api)
	ctx := context.Background()

	if _, err := c.form.StartEdit(ctx, testSession, 0); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	listCalls := api.calls["list"]

	if _, err := c.form.Submit(ctx, testSession, enemyForm("Goblin"), pngUpload(t)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotPayload.Image == goblinImage || gotPayload.Image[:22] != "data:image/png;base64," {
		t.Errorf("expected the new image, got %q", gotPayload.Image)
	}
	// The pre-submit check and the post-submit reload both list.
	if api.calls["list"]-listCalls != 2 {
		t.Errorf("expected two list calls around submit, got %d", api.calls["list"]-listCalls)
	}
}

func TestSubmit_UpdateWithNewImageCollectionChanged(t *testing.T) {
	records := goblinAndOrc()
	api := &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) { return records, nil }}
	c := newEnemyControllers(t, api)
	ctx := context.Background()

	if _, err := c.form.StartEdit(ctx, testSession, 1); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	records = []Enemy{goblinAndOrc()[1], {Name: "Troll", Speed: 1, Jump: 1, Spawn: 0.1, Type: "troll", Image: goblinImage}}

	_, err := c.form.Submit(ctx, testSession, enemyForm("Orc"), pngUpload(t))
	assertAppError(t, err, http.StatusConflict, "La colección cambió, recarga la lista")
	if api.calls["update"] != 0 {
		t.Errorf("expected no PUT, got %d", api.calls["update"])
	}
	if len(c.audit.entries) != 0 {
		t.Errorf("expected no audit entry, got %+v", c.audit.entries)
	}
}

// --- Create Tests ---

func TestSubmit_CreateWithoutImage(t *testing.T) {
	api := &mockCatalogAPI{}
	_, form := newPlayerControllers(t, api)

	_, err := form.Submit(context.Background(), testSession, playerForm("Ana"), nil)
	assertAppError(t, err, http.StatusUnprocessableEntity, "La imagen es requerida")
	if api.total() != 0 {
		t.Errorf("expected no API requests, got %v", api.calls)
	}
}

func TestSubmit_CreateSuccess(t *testing.T) {
	var gotPayload *Player
	api := &mockCatalogAPI{createFn: func(kind catalogapi.Kind, payload any) error {
		if kind != catalogapi.Players {
			t.Errorf("unexpected kind %q", kind)
		}
		gotPayload = payload.(*Player)
		return nil
	}}
	_, form := newPlayerControllers(t, api)
	ctx := context.Background()

	if _, err := form.Toggle(ctx, testSession); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	res, err := form.Submit(ctx, testSession, playerForm("Ana"), pngUpload(t))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if api.calls["create"] != 1 || api.calls["list"] != 1 {
		t.Errorf("expected one create and exactly one list, got %v", api.calls)
	}
	if gotPayload.Name != "Ana" || gotPayload.Health != 100 || gotPayload.Speed != 1.5 || gotPayload.IsDead {
		t.Errorf("unexpected payload: %+v", gotPayload)
	}
	if res.Updated || res.Message != "Jugador creado exitosamente" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.State.Visible || res.State.Edit != nil || len(res.State.Values) != 0 {
		t.Errorf("expected a reset form, got %+v", res.State)
	}
	if res.Listing == nil {
		t.Error("expected the list to be reloaded")
	}
}

func TestSubmit_ServerDetailShown(t *testing.T) {
	api := &mockCatalogAPI{createFn: func(catalogapi.Kind, any) error {
		return &catalogapi.APIError{Status: http.StatusBadRequest, Detail: "Nombre duplicado"}
	}}
	_, form := newPlayerControllers(t, api)
	ctx := context.Background()

	_, err := form.Submit(ctx, testSession, playerForm("Ana"), pngUpload(t))
	assertAppError(t, err, http.StatusBadGateway, "Nombre duplicado")

	// The form stays visible with the submitted values.
	state, err := form.State(ctx, testSession)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !state.Visible || state.Value("name") != "Ana" || state.Value("speed") != "1.5" {
		t.Errorf("expected the form to keep its input, got %+v", state)
	}
	if api.calls["list"] != 0 {
		t.Errorf("expected no reload after failure, got %d", api.calls["list"])
	}
}

func TestSubmit_FallbackMessage(t *testing.T) {
	api := &mockCatalogAPI{createFn: func(catalogapi.Kind, any) error {
		return &catalogapi.APIError{Status: http.StatusInternalServerError}
	}}
	_, form := newPlayerControllers(t, api)

	_, err := form.Submit(context.Background(), testSession, playerForm("Ana"), pngUpload(t))
	assertAppError(t, err, http.StatusBadGateway, "Error al crear jugador")
}

func TestSubmit_InvalidInputSendsNothing(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		message string
	}{
		{"empty name", "name", "  ", "El nombre es requerido"},
		{"markup only name", "name", "<b></b>", "El nombre es requerido"},
		{"fractional int", "health", "3.5", "Salud debe ser un número entero"},
		{"missing int", "armor", "", "Armadura es requerido"},
		{"not a number", "speed", "fast", "Velocidad debe ser un número"},
		{"negative health", "health", "-1", "Salud no puede ser negativo"},
		{"zero speed", "speed", "0", "Velocidad debe ser mayor que 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockCatalogAPI{}
			_, form := newPlayerControllers(t, api)

			values := playerForm("Ana")
			values.Set(tt.field, tt.value)
			_, err := form.Submit(context.Background(), testSession, values, pngUpload(t))
			assertAppError(t, err, http.StatusUnprocessableEntity, tt.message)
			if api.total() != 0 {
				t.Errorf("expected no API requests, got %v", api.calls)
			}
		})
	}
}

func TestSubmit_SanitizesText(t *testing.T) {
	var gotPayload *Enemy
	api := &mockCatalogAPI{createFn: func(_ catalogapi.Kind, payload any) error {
		gotPayload = payload.(*Enemy)
		return nil
	}}
	c := newEnemyControllers(t, api)

	values := enemyForm(`<script>alert(1)</script>Orc`)
	if _, err := c.form.Submit(context.Background(), testSession, values, pngUpload(t)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotPayload.Name != "Orc" {
		t.Errorf("expected markup stripped, got %q", gotPayload.Name)
	}
}

// --- Visibility Tests ---

func TestCancel_LeavesEditMode(t *testing.T) {
	c := newEnemyControllers(t, &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) { return goblinAndOrc(), nil }})
	ctx := context.Background()

	if _, err := c.form.StartEdit(ctx, testSession, 0); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	state, err := c.form.Cancel(ctx, testSession)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if state.Edit != nil || state.Visible || len(state.Values) != 0 || state.Preview != "" {
		t.Errorf("expected hidden empty create-mode form, got %+v", state)
	}

	stored, _ := c.store.Get(ctx, testSession.ID, catalogapi.Enemies)
	if stored.Edit != nil || stored.Visible {
		t.Errorf("expected stored state reset, got %+v", stored)
	}
}

func TestToggle_ClearsEditMode(t *testing.T) {
	c := newEnemyControllers(t, &mockCatalogAPI{listFn: func(catalogapi.Kind) (any, error) { return goblinAndOrc(), nil }})
	ctx := context.Background()

	if _, err := c.form.StartEdit(ctx, testSession, 1); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	state, err := c.form.Toggle(ctx, testSession)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if state.Visible || state.Edit != nil || len(state.Values) != 0 {
		t.Errorf("expected hidden create-mode form, got %+v", state)
	}

	state, err = c.form.Toggle(ctx, testSession)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !state.Visible || state.Edit != nil || state.Value("name") != "" {
		t.Errorf("expected visible empty create-mode form, got %+v", state)
	}
}

func TestVisibility_UnknownFormIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	v := NewVisibility(store, PlayerEntity, EnemyEntity)
	ctx := context.Background()

	state, err := v.Toggle(ctx, testSession.ID, "bossForm")
	if err != nil || state != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", state, err)
	}

	for _, e := range []*Entity{PlayerEntity, EnemyEntity} {
		got, _ := store.Get(ctx, testSession.ID, e.Kind)
		if got.Visible {
			t.Errorf("%s: expected form to stay hidden", e.Kind)
		}
	}
}

func TestVisibility_FormsAreIndependent(t *testing.T) {
	store, _ := newTestStore(t)
	v := NewVisibility(store, PlayerEntity, EnemyEntity)
	ctx := context.Background()

	if _, err := v.Toggle(ctx, testSession.ID, "playerForm"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	player, _ := store.Get(ctx, testSession.ID, catalogapi.Players)
	enemy, _ := store.Get(ctx, testSession.ID, catalogapi.Enemies)
	if !player.Visible || enemy.Visible {
		t.Errorf("expected only the player form visible, got player=%v enemy=%v", player.Visible, enemy.Visible)
	}
}

// --- Preview Tests ---

func TestPreview_SetsAndClears(t *testing.T) {
	_, form := newPlayerControllers(t, &mockCatalogAPI{})
	ctx := context.Background()

	uri, err := form.Preview(ctx, testSession, pngUpload(t))
	if err != nil || uri == "" {
		t.Fatalf("expected a data URI, got (%q, %v)", uri, err)
	}
	state, _ := form.State(ctx, testSession)
	if state.Preview != uri {
		t.Error("expected the preview to be stored")
	}

	uri, err = form.Preview(ctx, testSession, nil)
	if err != nil || uri != "" {
		t.Fatalf("expected the preview cleared, got (%q, %v)", uri, err)
	}
	state, _ = form.State(ctx, testSession)
	if state.Preview != "" {
		t.Error("expected the stored preview cleared")
	}
}

// --- FormReader Tests ---

func TestFormReader_StrictNumbers(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		failed bool
	}{
		{"42", 42, false},
		{" 7 ", 7, false},
		{"-3", -3, false},
		{"3.5", 0, true},
		{"3abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		r := NewFormReader(url.Values{"health": {tt.raw}}, PlayerFields)
		got := r.Int("health")
		if got != tt.want || (r.Err() != nil) != tt.failed {
			t.Errorf("Int(%q) = (%d, %v), want (%d, failed=%v)", tt.raw, got, r.Err(), tt.want, tt.failed)
		}
	}

	r := NewFormReader(url.Values{"speed": {"NaN"}}, PlayerFields)
	r.Float("speed")
	if r.Err() == nil {
		t.Error("expected NaN to be rejected")
	}
}

func TestFormReader_UndeclaredField(t *testing.T) {
	r := NewFormReader(url.Values{"type": {"orc"}}, PlayerFields)
	if got := r.String("type"); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
	if apperror.SafeCode(r.Err()) != http.StatusInternalServerError {
		t.Errorf("expected internal error, got %v", r.Err())
	}
}

func TestFingerprint_ChangesWithLength(t *testing.T) {
	orc := goblinAndOrc()[1]
	a, err := fingerprint(2, &orc)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	b, _ := fingerprint(3, &orc)
	if a == b {
		t.Error("expected different fingerprints for different lengths")
	}
	again, _ := fingerprint(2, &orc)
	if a != again {
		t.Error("expected stable fingerprint")
	}
}
