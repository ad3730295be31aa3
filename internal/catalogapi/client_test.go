package catalogapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type testRecord struct {
	Name   string `json:"name"`
	Health int    `json:"health"`
	Image  string `json:"image"`
}

// newTestClient starts an httptest server with the given handler and returns
// a client pointed at it.
func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second)
}

func TestList_DecodesInOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/enemies/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"name":"Goblin","health":10,"image":"data:a"},{"name":"Orc","health":30,"image":"data:b"}]`)
	})

	var got []testRecord
	if err := c.List(context.Background(), Enemies, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Goblin" || got[1].Name != "Orc" {
		t.Errorf("unexpected records: %+v", got)
	}
}

func TestHistory_Path(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/players/history/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `[]`)
	})

	var got []testRecord
	if err := c.History(context.Background(), Players, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty history, got %d", len(got))
	}
}

func TestUpdate_SendsJSONToIndexPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/enemies/1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		var body testRecord
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.Name != "Orc" || body.Image != "data:b" {
			t.Errorf("unexpected body %+v", body)
		}
		io.WriteString(w, `{"id":2}`)
	})

	err := c.Update(context.Background(), Enemies, 1, testRecord{Name: "Orc", Health: 30, Image: "data:b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreate_ErrorDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail":"Nombre duplicado"}`)
	})

	err := c.Create(context.Background(), Enemies, testRecord{Name: "Orc"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", apiErr.Status)
	}
	if got := DetailOr(err, "Error al crear enemigo"); got != "Nombre duplicado" {
		t.Errorf("expected server detail, got %q", got)
	}
}

func TestCreate_ErrorWithoutUsableDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "<html>bad gateway</html>"},
		{"validation array", `{"detail":[{"loc":["body","speed"],"msg":"must be > 0"}]}`},
		{"other field", `{"error":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				io.WriteString(w, tt.body)
			})
			err := c.Create(context.Background(), Players, testRecord{})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := DetailOr(err, "Error al crear jugador"); got != "Error al crear jugador" {
				t.Errorf("expected fallback, got %q", got)
			}
		})
	}
}

func TestDeleteAll(t *testing.T) {
	called := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called++
		if r.Method != http.MethodDelete || r.URL.Path != "/api/players/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `[]`)
	})

	if err := c.DeleteAll(context.Background(), Players); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != 1 {
		t.Errorf("expected 1 call, got %d", called)
	}
}

func TestStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"total_players":4,"total_enemies":7}`)
	})

	s, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalPlayers != 4 || s.TotalEnemies != 7 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestList_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{not json`)
	})

	var got []testRecord
	if err := c.List(context.Background(), Players, &got); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestList_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got []testRecord
	err := c.List(ctx, Players, &got)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
