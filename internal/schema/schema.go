// Package schema validates records against CUE constraints before they are
// written.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed records.cue
var recordsCUE string

// Validator checks a record before it is stored.
type Validator interface {
	Validate(v any) error
}

// ValidationError describes the first constraint a record violated.
type ValidationError struct {
	Kind    string
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// CUE validates values against one top-level field of a CUE source.
//
// A cue.Context is not safe for concurrent use, so Validate serializes.
type CUE struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
	kind   string
}

// Compile builds a validator for the field named kind in src.
func Compile(kind, src string) (*CUE, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(kind+".cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	s := v.LookupPath(cue.ParsePath(kind))
	if !s.Exists() {
		return nil, fmt.Errorf("schema has no %q definition", kind)
	}

	return &CUE{ctx: ctx, schema: s, kind: kind}, nil
}

var (
	builtinMu sync.Mutex
	builtin   = map[string]*CUE{}
)

// ForKind returns the built-in validator for a record kind ("image", "verse").
// Each kind is compiled once; later calls share the same validator.
func ForKind(kind string) (*CUE, error) {
	builtinMu.Lock()
	defer builtinMu.Unlock()

	if c, ok := builtin[kind]; ok {
		return c, nil
	}
	c, err := Compile(kind, recordsCUE)
	if err != nil {
		return nil, err
	}
	builtin[kind] = c
	return c, nil
}

// Validate encodes v (honouring json tags) and unifies it with the schema.
// All fields the schema names must be concrete.
func (c *CUE) Validate(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	val := c.ctx.Encode(v)
	if err := val.Err(); err != nil {
		return c.formatError(err)
	}

	unified := c.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return c.formatError(err)
	}
	return nil
}

// formatError reduces a CUE error list to its first entry with a path.
func (c *CUE) formatError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Kind: c.kind, Message: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	return &ValidationError{
		Kind:    c.kind,
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
}
