// Package catalog is the admin panel for the game's catalog entity types,
// players and enemies. It lists each collection and its deletion history,
// drives the create/edit form, and sends every mutation to the external
// catalog API. The panel owns no catalog data; the only state it keeps is
// per-session form state in Redis.
package catalog

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/keyxmakerx/catalogpanel/internal/apperror"
	"github.com/keyxmakerx/catalogpanel/internal/catalogapi"
	"github.com/keyxmakerx/catalogpanel/internal/sanitize"
)

// FieldType is the coercion rule applied to a form value before it goes
// into a payload.
type FieldType int

const (
	// FieldString is passed through after markup stripping.
	FieldString FieldType = iota

	// FieldInt requires a strict base-10 integer.
	FieldInt

	// FieldFloat requires a strict finite decimal number.
	FieldFloat

	// FieldBool is never read from the form; records fix its value.
	FieldBool
)

// Field describes one entity field: its form/JSON name, display label and
// coercion rule. Field tables drive form rendering, card rendering and
// form-to-payload binding.
type Field struct {
	Name  string
	Label string
	Type  FieldType

	// Card is the label on list cards. Empty hides the field on cards.
	Card string

	// Step is the HTML number input step for numeric fields.
	Step string

	// Hidden fields are not shown in the form.
	Hidden bool
}

// Record is implemented by pointers to the entity record types.
type Record interface {
	// Bind fills the record from the form through r. Errors are collected
	// in r, not returned.
	Bind(r *FormReader)

	// Validate checks the field constraints the catalog API enforces.
	Validate() error

	// Values returns every form field as the string shown in its input.
	Values() map[string]string

	// Title is the record's display name.
	Title() string

	// Summary is the one-line history representation.
	Summary() string

	ImageData() string
	SetImage(dataURI string)
}

// RecordPtr constrains a type parameter to a pointer to T implementing Record.
type RecordPtr[T any] interface {
	*T
	Record
}

// Player is a playable character as stored by the catalog API.
type Player struct {
	Name             string  `json:"name"`
	Health           int     `json:"health"`
	RegenerateHealth int     `json:"regenerate_health"`
	Speed            float64 `json:"speed"`
	Jump             float64 `json:"jump"`
	IsDead           bool    `json:"is_dead"`
	Armor            int     `json:"armor"`
	HitSpeed         int     `json:"hit_speed"`
	Image            string  `json:"image"`
}

// PlayerFields is the player field table in card order.
var PlayerFields = []Field{
	{Name: "name", Label: "Nombre", Type: FieldString},
	{Name: "health", Label: "Salud", Type: FieldInt, Card: "Salud", Step: "1"},
	{Name: "regenerate_health", Label: "Regeneración", Type: FieldInt, Card: "Regeneración", Step: "1"},
	{Name: "speed", Label: "Velocidad", Type: FieldFloat, Card: "Velocidad", Step: "any"},
	{Name: "jump", Label: "Salto", Type: FieldFloat, Card: "Salto", Step: "any"},
	{Name: "armor", Label: "Armadura", Type: FieldInt, Card: "Armadura", Step: "1"},
	{Name: "hit_speed", Label: "Vel. golpe", Type: FieldInt, Card: "Vel. golpe", Step: "1"},
	{Name: "is_dead", Label: "Muerto", Type: FieldBool, Hidden: true},
}

// Bind implements Record. is_dead is always written as false.
func (p *Player) Bind(r *FormReader) {
	p.Name = r.String("name")
	p.Health = r.Int("health")
	p.RegenerateHealth = r.Int("regenerate_health")
	p.Speed = r.Float("speed")
	p.Jump = r.Float("jump")
	p.IsDead = false
	p.Armor = r.Int("armor")
	p.HitSpeed = r.Int("hit_speed")
}

// Validate implements Record.
func (p *Player) Validate() error {
	switch {
	case p.Name == "":
		return apperror.NewValidation("El nombre es requerido")
	case p.Health < 0:
		return negative("Salud")
	case p.RegenerateHealth < 0:
		return negative("Regeneración")
	case p.Speed <= 0:
		return notPositive("Velocidad")
	case p.Jump <= 0:
		return notPositive("Salto")
	case p.Armor < 0:
		return negative("Armadura")
	case p.HitSpeed < 0:
		return negative("Vel. golpe")
	}
	return nil
}

// Values implements Record.
func (p *Player) Values() map[string]string {
	return map[string]string{
		"name":              p.Name,
		"health":            strconv.Itoa(p.Health),
		"regenerate_health": strconv.Itoa(p.RegenerateHealth),
		"speed":             formatFloat(p.Speed),
		"jump":              formatFloat(p.Jump),
		"is_dead":           strconv.FormatBool(p.IsDead),
		"armor":             strconv.Itoa(p.Armor),
		"hit_speed":         strconv.Itoa(p.HitSpeed),
	}
}

func (p *Player) Title() string { return p.Name }

// Summary implements Record: "{name} (Salud: {health}, Vel: {speed})".
func (p *Player) Summary() string {
	return fmt.Sprintf("%s (Salud: %d, Vel: %s)", p.Name, p.Health, formatFloat(p.Speed))
}

func (p *Player) ImageData() string        { return p.Image }
func (p *Player) SetImage(dataURI string) { p.Image = dataURI }

// Enemy is a hostile creature as stored by the catalog API.
type Enemy struct {
	Name             string  `json:"name"`
	Speed            float64 `json:"speed"`
	Jump             float64 `json:"jump"`
	HitSpeed         int     `json:"hit_speed"`
	Health           int     `json:"health"`
	Type             string  `json:"type"`
	Spawn            float64 `json:"spawn"`
	ProbabilitySpawn float64 `json:"probability_spawn"`
	Image            string  `json:"image"`
}

// EnemyFields is the enemy field table in card order.
var EnemyFields = []Field{
	{Name: "name", Label: "Nombre", Type: FieldString},
	{Name: "type", Label: "Tipo", Type: FieldString, Card: "Tipo"},
	{Name: "health", Label: "Salud", Type: FieldInt, Card: "Salud", Step: "1"},
	{Name: "speed", Label: "Velocidad", Type: FieldFloat, Card: "Velocidad", Step: "any"},
	{Name: "jump", Label: "Salto", Type: FieldFloat, Card: "Salto", Step: "any"},
	{Name: "hit_speed", Label: "Vel. golpe", Type: FieldInt, Card: "Vel. golpe", Step: "1"},
	{Name: "spawn", Label: "Spawn", Type: FieldFloat, Card: "Spawn", Step: "any"},
	{Name: "probability_spawn", Label: "Prob. Spawn", Type: FieldFloat, Card: "Prob. Spawn", Step: "any"},
}

// Bind implements Record.
func (e *Enemy) Bind(r *FormReader) {
	e.Name = r.String("name")
	e.Speed = r.Float("speed")
	e.Jump = r.Float("jump")
	e.HitSpeed = r.Int("hit_speed")
	e.Health = r.Int("health")
	e.Type = r.String("type")
	e.Spawn = r.Float("spawn")
	e.ProbabilitySpawn = r.Float("probability_spawn")
}

// Validate implements Record.
func (e *Enemy) Validate() error {
	switch {
	case e.Name == "":
		return apperror.NewValidation("El nombre es requerido")
	case e.Type == "":
		return apperror.NewValidation("El tipo es requerido")
	case e.Speed <= 0:
		return notPositive("Velocidad")
	case e.Jump <= 0:
		return notPositive("Salto")
	case e.HitSpeed < 0:
		return negative("Vel. golpe")
	case e.Health < 0:
		return negative("Salud")
	case e.Spawn <= 0:
		return notPositive("Spawn")
	case e.ProbabilitySpawn < 0:
		return negative("Prob. Spawn")
	}
	return nil
}

// Values implements Record.
func (e *Enemy) Values() map[string]string {
	return map[string]string{
		"name":              e.Name,
		"speed":             formatFloat(e.Speed),
		"jump":              formatFloat(e.Jump),
		"hit_speed":         strconv.Itoa(e.HitSpeed),
		"health":            strconv.Itoa(e.Health),
		"type":              e.Type,
		"spawn":             formatFloat(e.Spawn),
		"probability_spawn": formatFloat(e.ProbabilitySpawn),
	}
}

func (e *Enemy) Title() string { return e.Name }

// Summary implements Record: "{name} (Tipo: {type}, Salud: {health})".
func (e *Enemy) Summary() string {
	return fmt.Sprintf("%s (Tipo: %s, Salud: %d)", e.Name, e.Type, e.Health)
}

func (e *Enemy) ImageData() string        { return e.Image }
func (e *Enemy) SetImage(dataURI string) { e.Image = dataURI }

// Messages holds the fixed user-facing texts of one entity type.
type Messages struct {
	Title         string
	Singular      string
	NewButton     string
	Empty         string
	LoadFailed    string
	Deleted       string
	DeleteFailed  string
	DeleteConfirm string
	Created       string
	Updated       string
	CreateFailed  string
	UpdateFailed  string
}

// Entity describes one catalog entity type: its API collection, route
// segment, form id and field table.
type Entity struct {
	Kind   catalogapi.Kind
	FormID string
	Fields []Field
	Msg    Messages
}

// Slug is the panel route segment, identical to the API collection name.
func (e *Entity) Slug() string { return string(e.Kind) }

// PlayerEntity describes the players collection.
var PlayerEntity = &Entity{
	Kind:   catalogapi.Players,
	FormID: "playerForm",
	Fields: PlayerFields,
	Msg: Messages{
		Title:         "Jugadores",
		Singular:      "jugador",
		NewButton:     "Nuevo jugador",
		Empty:         "No hay jugadores registrados.",
		LoadFailed:    "Error al cargar jugadores.",
		Deleted:       "Todos los jugadores eliminados",
		DeleteFailed:  "Error al eliminar jugadores",
		DeleteConfirm: "¿Seguro que quieres eliminar todos los jugadores?",
		Created:       "Jugador creado exitosamente",
		Updated:       "Jugador actualizado exitosamente",
		CreateFailed:  "Error al crear jugador",
		UpdateFailed:  "Error al actualizar jugador",
	},
}

// EnemyEntity describes the enemies collection.
var EnemyEntity = &Entity{
	Kind:   catalogapi.Enemies,
	FormID: "enemyForm",
	Fields: EnemyFields,
	Msg: Messages{
		Title:         "Enemigos",
		Singular:      "enemigo",
		NewButton:     "Nuevo enemigo",
		Empty:         "No hay enemigos registrados.",
		LoadFailed:    "Error al cargar enemigos.",
		Deleted:       "Todos los enemigos eliminados",
		DeleteFailed:  "Error al eliminar enemigos",
		DeleteConfirm: "¿Seguro que quieres eliminar todos los enemigos?",
		Created:       "Enemigo creado exitosamente",
		Updated:       "Enemigo actualizado exitosamente",
		CreateFailed:  "Error al crear enemigo",
		UpdateFailed:  "Error al actualizar enemigo",
	},
}

// Fixed messages shared by both entity types.
const (
	msgImageRequired     = "La imagen es requerida"
	msgRecordNotFound    = "Registro no encontrado"
	msgCollectionChanged = "La colección cambió, recarga la lista"
	msgHistoryEmpty      = "No hay histórico."
	msgHistoryFailed     = "Error al cargar histórico."
)

// FormReader reads typed values out of submitted form values, remembering
// the first coercion failure. Values are looked up in the entity's field
// table so only declared fields can be read.
type FormReader struct {
	values url.Values
	fields map[string]Field
	err    error
}

// NewFormReader creates a reader over values restricted to fields.
func NewFormReader(values url.Values, fields []Field) *FormReader {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return &FormReader{values: values, fields: m}
}

// Err returns the first coercion error, or nil.
func (r *FormReader) Err() error { return r.err }

// String returns the field with markup stripped.
func (r *FormReader) String(name string) string {
	f, ok := r.field(name, FieldString)
	if !ok {
		return ""
	}
	return sanitize.Text(r.values.Get(f.Name))
}

// Int parses the field as a base-10 integer. "3.5", "3abc" and "" fail.
func (r *FormReader) Int(name string) int {
	f, ok := r.field(name, FieldInt)
	if !ok {
		return 0
	}
	raw := strings.TrimSpace(r.values.Get(f.Name))
	if raw == "" {
		r.fail(apperror.NewValidation(f.Label + " es requerido"))
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(apperror.NewValidation(f.Label + " debe ser un número entero"))
		return 0
	}
	return n
}

// Float parses the field as a finite decimal number.
func (r *FormReader) Float(name string) float64 {
	f, ok := r.field(name, FieldFloat)
	if !ok {
		return 0
	}
	raw := strings.TrimSpace(r.values.Get(f.Name))
	if raw == "" {
		r.fail(apperror.NewValidation(f.Label + " es requerido"))
		return 0
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		r.fail(apperror.NewValidation(f.Label + " debe ser un número"))
		return 0
	}
	return n
}

// field looks up name and checks it is declared with the expected type.
// A mismatch is a programming error and is reported as an internal error.
func (r *FormReader) field(name string, want FieldType) (Field, bool) {
	f, ok := r.fields[name]
	if !ok || f.Type != want {
		r.fail(apperror.NewInternal(fmt.Errorf("form field %q not declared as type %d", name, want)))
		return Field{}, false
	}
	return f, true
}

func (r *FormReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// formValues keeps only the visible declared fields of a submitted form, so
// a failed submit can be shown again as typed.
func formValues(values url.Values, fields []Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if f.Hidden {
			continue
		}
		out[f.Name] = values.Get(f.Name)
	}
	return out
}

func negative(label string) error {
	return apperror.NewValidation(label + " no puede ser negativo")
}

func notPositive(label string) error {
	return apperror.NewValidation(label + " debe ser mayor que 0")
}

// formatFloat renders a float the way the browser shows it: 1.5, 3, 0.25.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
