// Package extract pulls candidate contact fields out of dictated Spanish text
// with ordered regular-expression rules.
package extract

import (
	"regexp"
	"strings"
	"time"
)

// Fields is the flat result of one extraction. Unmatched fields are empty.
type Fields struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
	Role     string `json:"role"`
	Date     string `json:"date"`
	Notes    string `json:"notes"`
	Category string `json:"category"`
}

type field int

const (
	fieldName field = iota
	fieldEmail
	fieldPhone
	fieldCompany
	fieldRole
)

// rule captures group of pattern; group 0 is the whole match.
type rule struct {
	field   field
	pattern *regexp.Regexp
	group   int
}

const (
	upperWord = `[A-ZÁÉÍÓÚÑÜ][a-záéíóúñü]+`
	upperName = upperWord + `(?:\s+` + upperWord + `)*`
	lowerWord = `[a-záéíóúñü]+`
	orgWord   = `[A-ZÁÉÍÓÚÑÜ][A-Za-z0-9ÁÉÍÓÚÑÜáéíóúñü&.\-]*`
)

// Keyword prefixes match in any case; captured names must be capitalised.
var rules = []rule{
	{fieldName, regexp.MustCompile(`\b(?i:mi nombre es|me llamo|soy)\s+(` + upperName + `)`), 1},
	{fieldName, regexp.MustCompile(`\b(?i:nombre)[:\s]+(` + upperName + `)`), 1},

	{fieldEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), 0},

	{fieldPhone, regexp.MustCompile(`\b(?i:teléfono|telefono|celular|móvil|movil)[:\s]*(\+?[\d\s\-()]{10,})`), 1},
	{fieldPhone, regexp.MustCompile(`\+?\d[\d\s\-()]{8,}\d`), 0},

	{fieldCompany, regexp.MustCompile(`\b(?i:trabajo en|empresa|compañía)[:\s]+(` + orgWord + `(?:\s+` + orgWord + `)*)`), 1},
	{fieldCompany, regexp.MustCompile(`\b(?i:de la empresa|en)\s+(` + orgWord + `(?:\s+` + orgWord + `)*)`), 1},

	{fieldRole, regexp.MustCompile(`\b(?i:soy|trabajo como|mi cargo es)[:\s]+(` + lowerWord + `(?:\s+` + lowerWord + `){0,2})`), 1},
	{fieldRole, regexp.MustCompile(`(?i)\b(gerente|director|coordinador|analista|desarrollador|ingeniero)\b`), 1},
}

type category struct {
	name     string
	keywords []string
}

// Checked in order; the first category with any keyword present wins.
var categories = []category{
	{"client", []string{"cliente", "comprar", "producto", "servicio", "cotización"}},
	{"supplier", []string{"proveedor", "suministro", "vender", "distribuidor"}},
	{"employee", []string{"empleado", "trabajo", "oficina", "equipo", "departamento"}},
	{"contact", []string{"contacto", "información", "datos"}},
}

const CategoryOther = "other"

type Extractor struct {
	now func() time.Time
}

type Option func(*Extractor)

// WithClock fixes the capture date source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func New(opts ...Option) *Extractor {
	e := &Extractor{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = New()

// Extract runs the default extractor.
func Extract(text string) Fields {
	return defaultExtractor.Extract(text)
}

func (e *Extractor) Extract(text string) Fields {
	return Fields{
		Name:     firstMatch(fieldName, text),
		Email:    firstMatch(fieldEmail, text),
		Phone:    firstMatch(fieldPhone, text),
		Company:  firstMatch(fieldCompany, text),
		Role:     firstMatch(fieldRole, text),
		Date:     e.now().UTC().Format("2006-01-02"),
		Notes:    text,
		Category: Categorize(text),
	}
}

func firstMatch(f field, text string) string {
	for _, r := range rules {
		if r.field != f {
			continue
		}
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return strings.TrimSpace(m[r.group])
	}
	return ""
}

// Categorize returns the first category whose keywords occur in text, or
// CategoryOther.
func Categorize(text string) string {
	lower := strings.ToLower(text)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.name
			}
		}
	}
	return CategoryOther
}
