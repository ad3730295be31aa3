package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/catalogpanel/internal/catalogapi"
)

// Redis key prefixes. Keys end in "<session id>:<kind>".
const (
	formKeyPrefix  = "catalog:form:"
	fenceKeyPrefix = "catalog:loadseq:"
)

// Session identifies the browser session an operation runs for. Every
// piece of form state is scoped to it.
type Session struct {
	ID       string
	ClientIP string
}

// EditSession marks update mode: the form targets the record at Index.
// Length and Fingerprint describe the collection when the edit started so
// a changed collection can be detected before the update is sent.
type EditSession struct {
	Index       int    `json:"index"`
	Length      int    `json:"length"`
	Fingerprint string `json:"fingerprint"`
}

// FormState is the per-session, per-entity-type form state. A nil Edit
// means create mode.
type FormState struct {
	Visible bool              `json:"visible"`
	Values  map[string]string `json:"values,omitempty"`
	Preview string            `json:"preview,omitempty"`
	Edit    *EditSession      `json:"edit,omitempty"`
}

// Toggle flips visibility. Hiding clears the values and the preview.
func (s *FormState) Toggle() {
	if s.Visible {
		s.Hide()
		return
	}
	s.Visible = true
}

// Hide hides the form and clears its values and preview. Hiding a hidden
// form only clears again.
func (s *FormState) Hide() {
	s.Visible = false
	s.Values = nil
	s.Preview = ""
}

// Reset returns the state to a hidden, empty, create-mode form.
func (s *FormState) Reset() {
	s.Hide()
	s.Edit = nil
}

// Value returns the current value of a form field.
func (s *FormState) Value(name string) string {
	return s.Values[name]
}

// StateStore persists form state and the list load fence.
type StateStore interface {
	// Get returns the form state, or a zero state when none is stored.
	Get(ctx context.Context, sessionID string, kind catalogapi.Kind) (*FormState, error)
	Save(ctx context.Context, sessionID string, kind catalogapi.Kind, state *FormState) error

	// NextLoad issues a new, strictly increasing load sequence number.
	NextLoad(ctx context.Context, sessionID string, kind catalogapi.Kind) (int64, error)

	// LatestLoad returns the most recently issued sequence number.
	LatestLoad(ctx context.Context, sessionID string, kind catalogapi.Kind) (int64, error)
}

// redisStateStore implements StateStore on Redis. Every key expires ttl
// after its last write.
type redisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStateStore creates a Redis-backed state store.
func NewStateStore(rdb *redis.Client, ttl time.Duration) StateStore {
	return &redisStateStore{rdb: rdb, ttl: ttl}
}

func stateKey(prefix, sessionID string, kind catalogapi.Kind) string {
	return prefix + sessionID + ":" + string(kind)
}

// Get loads the JSON-encoded form state.
func (s *redisStateStore) Get(ctx context.Context, sessionID string, kind catalogapi.Kind) (*FormState, error) {
	data, err := s.rdb.Get(ctx, stateKey(formKeyPrefix, sessionID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &FormState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting form state: %w", err)
	}

	var state FormState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling form state: %w", err)
	}
	return &state, nil
}

// Save stores the form state, refreshing its expiry.
func (s *redisStateStore) Save(ctx context.Context, sessionID string, kind catalogapi.Kind, state *FormState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling form state: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKey(formKeyPrefix, sessionID, kind), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing form state: %w", err)
	}
	return nil
}

// NextLoad increments the fence counter. INCR and EXPIRE run in one
// transaction so the counter never outlives the session.
func (s *redisStateStore) NextLoad(ctx context.Context, sessionID string, kind catalogapi.Kind) (int64, error) {
	key := stateKey(fenceKeyPrefix, sessionID, kind)

	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incrementing load sequence: %w", err)
	}
	return incr.Val(), nil
}

// LatestLoad reads the fence counter. A missing key reads as 0.
func (s *redisStateStore) LatestLoad(ctx context.Context, sessionID string, kind catalogapi.Kind) (int64, error) {
	n, err := s.rdb.Get(ctx, stateKey(fenceKeyPrefix, sessionID, kind)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading load sequence: %w", err)
	}
	return n, nil
}

// Visibility toggles named forms. It knows which entity type each form id
// belongs to; unknown ids are ignored.
type Visibility struct {
	store StateStore
	forms map[string]catalogapi.Kind
}

// NewVisibility creates a controller for the given entity types' forms.
func NewVisibility(store StateStore, entities ...*Entity) *Visibility {
	forms := make(map[string]catalogapi.Kind, len(entities))
	for _, e := range entities {
		forms[e.FormID] = e.Kind
	}
	return &Visibility{store: store, forms: forms}
}

// Toggle flips the visibility of formID for the session and returns the new
// state. An unknown form id is a no-op: it returns nil state and nil error.
func (v *Visibility) Toggle(ctx context.Context, sessionID, formID string) (*FormState, error) {
	kind, ok := v.forms[formID]
	if !ok {
		return nil, nil
	}

	state, err := v.store.Get(ctx, sessionID, kind)
	if err != nil {
		return nil, err
	}
	state.Toggle()
	if err := v.store.Save(ctx, sessionID, kind, state); err != nil {
		return nil, err
	}
	return state, nil
}
