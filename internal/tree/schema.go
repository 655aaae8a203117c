package tree

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/timetravel/internal/ir"
)

// Schema constrains the shape of a tree's root with a CUE definition.
//
// The definition named #State is used when present; otherwise the whole
// file is the constraint. Definitions are closed, so #State also rejects
// fields it does not declare.
//
// Thread-safety: Validate is safe for concurrent use.
type Schema struct {
	mu     sync.Mutex
	ctx    *cue.Context
	def    cue.Value
	source string
}

// SchemaError describes the first place a value failed to unify with the
// schema. It matches ErrSchemaViolation under errors.Is.
type SchemaError struct {
	// Path is the CUE path of the offending field, slash separated.
	Path    string
	Message string
	// Pos is the schema position of the violated constraint, if known.
	Pos token.Pos
	// Count is the total number of violations reported by CUE.
	Count int
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(ErrSchemaViolation.Error())
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, " (%s:%d:%d)", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Count > 1 {
		fmt.Fprintf(&b, " and %d more", e.Count-1)
	}
	return b.String()
}

// Is makes SchemaError match ErrSchemaViolation.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaViolation
}

// CompileSchema compiles CUE source into a Schema.
func CompileSchema(src string) (*Schema, error) {
	return compileSchema(src, "schema.cue")
}

// LoadSchema reads and compiles a CUE schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return compileSchema(string(data), path)
}

func compileSchema(src, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	def := v.LookupPath(cue.ParsePath("#State"))
	if !def.Exists() {
		def = v
	}
	return &Schema{ctx: ctx, def: def, source: filename}, nil
}

// Source returns the file name the schema was compiled from.
func (s *Schema) Source() string {
	return s.source
}

// Validate checks that v unifies with the schema and is fully concrete.
func (s *Schema) Validate(v ir.IRValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.Encode(ir.ToNative(v))
	if err := data.Err(); err != nil {
		return fmt.Errorf("%w: encode: %v", ErrInvalidValue, err)
	}

	unified := s.def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// toSchemaError keeps the first CUE error, with its path and position.
func toSchemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error(), Count: 1}
	}

	first := errs[0]
	se := &SchemaError{
		Message: first.Error(),
		Count:   len(errs),
	}
	if p := first.Path(); len(p) > 0 {
		se.Path = "/" + strings.Join(p, "/")
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}

// IsSchemaViolation reports whether err (or anything it wraps) is a
// schema violation.
func IsSchemaViolation(err error) bool {
	return errors.Is(err, ErrSchemaViolation)
}
