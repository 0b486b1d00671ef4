package classification

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"schemaflow/internal/flexmap"
	"schemaflow/internal/schema"
)

// AllTables is the deployment key applied to every table.
const AllTables = "$$ALL$$"

// UndefinedHandling decides what happens to a code its classification does
// not declare.
type UndefinedHandling string

const (
	HandlingException UndefinedHandling = "exception"
	HandlingLogging   UndefinedHandling = "logging"
	HandlingAllowed   UndefinedHandling = "allowed"
)

// ParseUndefinedHandling accepts the configuration spellings; empty means
// logging.
func ParseUndefinedHandling(s string) (UndefinedHandling, error) {
	switch h := UndefinedHandling(strings.ToLower(strings.TrimSpace(s))); h {
	case "":
		return HandlingLogging, nil
	case HandlingException, HandlingLogging, HandlingAllowed:
		return h, nil
	}
	return "", fmt.Errorf("unknown undefined classification handling %q", s)
}

// Deployment is one configured table/column to classification entry. Column
// may be a hint pattern: prefix:X, suffix:X, contain:X, X*, *X or *X*.
type Deployment struct {
	Table          string `mapstructure:"table" yaml:"table"`
	Column         string `mapstructure:"column" yaml:"column"`
	Classification string `mapstructure:"classification" yaml:"classification"`
}

type hint struct {
	pattern        string
	match          func(upperColumn string) bool
	classification string
}

// tableDeployment holds the entries of one table: exact column names by
// flexible key and hints in declaration order.
type tableDeployment struct {
	mu    sync.RWMutex
	exact *flexmap.Map[string]
	hints []hint
}

func (td *tableDeployment) register(column, classification string) bool {
	td.mu.Lock()
	defer td.mu.Unlock()
	if h, ok := parseHint(column); ok {
		for _, existing := range td.hints {
			if strings.EqualFold(existing.pattern, column) {
				return false
			}
		}
		h.classification = classification
		td.hints = append(td.hints, h)
		return true
	}
	return td.exact.PutIfAbsent(column, classification)
}

func (td *tableDeployment) resolve(column string) (string, bool) {
	td.mu.RLock()
	defer td.mu.RUnlock()
	if cls, ok := td.exact.Get(column); ok {
		return cls, true
	}
	upper := strings.ToUpper(column)
	for _, h := range td.hints {
		if h.match(upper) {
			return h.classification, true
		}
	}
	return "", false
}

// Resolver answers which classification a column carries. Lookups are safe
// for concurrent use, including while FK propagation registers new entries.
type Resolver struct {
	defs       *Definitions
	deployment *flexmap.SyncMap[*tableDeployment]
	handling   UndefinedHandling
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithUndefinedHandling overrides the default logging handling.
func WithUndefinedHandling(h UndefinedHandling) Option {
	return func(r *Resolver) { r.handling = h }
}

// WithLogger sets the logger used for logging handling.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver registers deployments in order, then the related column hints
// of the definitions under AllTables. Entries naming an unknown
// classification are rejected.
func NewResolver(defs *Definitions, deployments []Deployment, opts ...Option) (*Resolver, error) {
	if defs == nil {
		defs, _ = NewDefinitions()
	}
	r := &Resolver{
		defs:       defs,
		deployment: flexmap.NewSync[*tableDeployment](flexmap.Flexible),
		handling:   HandlingLogging,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, d := range deployments {
		if _, ok := defs.Get(d.Classification); !ok {
			return nil, fmt.Errorf("deployment %s.%s: unknown classification %q", d.Table, d.Column, d.Classification)
		}
		r.Register(d.Table, d.Column, d.Classification)
	}
	for _, top := range defs.All() {
		if top.RelatedColumnHint != "" {
			r.Register(AllTables, top.RelatedColumnHint, top.Name)
		}
	}
	return r, nil
}

// Register deploys classification onto table.column. The first registration
// of a column wins; it reports whether this one took effect.
func (r *Resolver) Register(table, column, classification string) bool {
	td := r.deployment.Compute(table, func() *tableDeployment {
		return &tableDeployment{exact: flexmap.NewFlexible[string]()}
	})
	return td.register(column, classification)
}

// ClassificationOf resolves the classification of table.column: the table's
// own entries first (exact name, then hints in declaration order), then the
// AllTables entries the same way.
func (r *Resolver) ClassificationOf(table, column string) (string, bool) {
	if td, ok := r.deployment.Get(table); ok {
		if cls, ok := td.resolve(column); ok {
			return cls, true
		}
	}
	if td, ok := r.deployment.Get(AllTables); ok {
		return td.resolve(column)
	}
	return "", false
}

// PropagateForeignKeys copies the classification of a single-column primary
// key onto every simple foreign key column referencing it, unless that
// column already resolves to a classification. It repeats until nothing
// changes, so chains of references are followed.
func (r *Resolver) PropagateForeignKeys(tables []*schema.Table) {
	byName := flexmap.NewCaseInsensitive[*schema.Table]()
	for _, t := range tables {
		byName.PutIfAbsent(t.DBName, t)
	}
	for changed := true; changed; {
		changed = false
		for _, t := range tables {
			for _, fk := range t.ForeignKeys {
				if !fk.IsSimple() {
					continue
				}
				ref, ok := byName.Get(fk.ForeignTable)
				if !ok || !ref.HasSinglePrimaryKey() || !strings.EqualFold(ref.PrimaryKeyColumns[0], fk.ForeignColumns[0]) {
					continue
				}
				cls, ok := r.ClassificationOf(ref.DBName, ref.PrimaryKeyColumns[0])
				if !ok {
					continue
				}
				local := fk.LocalColumns[0]
				if _, already := r.ClassificationOf(t.DBName, local); already {
					continue
				}
				if r.Register(t.DBName, local, cls) {
					r.logger.Debug("classification propagated", "table", t.DBName, "column", local, "classification", cls)
					changed = true
				}
			}
		}
	}
}

// Definitions returns the classification definitions.
func (r *Resolver) Definitions() *Definitions { return r.defs }

// Classification returns the definition registered under name.
func (r *Resolver) Classification(name string) (*Top, bool) {
	return r.defs.Get(name)
}

// CheckCode validates code against the named classification according to
// the undefined handling. A nil code is never checked by callers; an empty
// string is checked like any other code.
func (r *Resolver) CheckCode(classification, code string) error {
	top, ok := r.defs.Get(classification)
	if !ok {
		return fmt.Errorf("unknown classification %q", classification)
	}
	if _, ok := top.Element(code); ok {
		return nil
	}
	err := &UndefinedCodeError{Classification: top.Name, Code: code, Known: top.Codes()}
	switch r.handling {
	case HandlingException:
		return err
	case HandlingLogging:
		r.logger.Warn("undefined classification code (continuing...)", "classification", top.Name, "code", code)
	}
	return nil
}

// CheckColumnCode resolves the classification of table.column and checks
// code against it. Unclassified columns always pass.
func (r *Resolver) CheckColumnCode(table, column, code string) error {
	cls, ok := r.ClassificationOf(table, column)
	if !ok {
		return nil
	}
	if err := r.CheckCode(cls, code); err != nil {
		var uce *UndefinedCodeError
		if errors.As(err, &uce) {
			uce.Table, uce.Column = table, column
		}
		return err
	}
	return nil
}

// parseHint recognizes a hint pattern column key.
func parseHint(key string) (hint, bool) {
	lower := strings.ToLower(key)
	for _, p := range []struct {
		prefix string
		fn     func(s, v string) bool
	}{
		{"prefix:", strings.HasPrefix},
		{"suffix:", strings.HasSuffix},
		{"contain:", strings.Contains},
	} {
		if strings.HasPrefix(lower, p.prefix) {
			v := strings.ToUpper(key[len(p.prefix):])
			fn := p.fn
			return hint{pattern: key, match: func(col string) bool { return fn(col, v) }}, true
		}
	}
	if !strings.Contains(key, "*") {
		return hint{}, false
	}
	upper := strings.ToUpper(key)
	starts := strings.HasPrefix(upper, "*")
	ends := strings.HasSuffix(upper, "*")
	v := strings.Trim(upper, "*")
	var match func(string) bool
	switch {
	case starts && ends:
		match = func(col string) bool { return strings.Contains(col, v) }
	case starts:
		match = func(col string) bool { return strings.HasSuffix(col, v) }
	case ends:
		match = func(col string) bool { return strings.HasPrefix(col, v) }
	default:
		head, tail, _ := strings.Cut(upper, "*")
		match = func(col string) bool {
			return len(col) >= len(head)+len(tail) && strings.HasPrefix(col, head) && strings.HasSuffix(col, tail)
		}
	}
	return hint{pattern: key, match: match}, true
}
