package interp

import (
	"fmt"
	"strings"
)

// UnknownFunction reports a direct-call target missing from db.funs (spec §7).
type UnknownFunction struct{ Name string }

func (e UnknownFunction) Error() string { return fmt.Sprintf("unknown function %q", e.Name) }

// UnknownConstant reports a constant reference missing from db.constants.
type UnknownConstant struct{ Name string }

func (e UnknownConstant) Error() string { return fmt.Sprintf("unknown constant %q", e.Name) }

// UnknownClass reports a class reference missing from db.classes.
type UnknownClass struct{ Name string }

func (e UnknownClass) Error() string { return fmt.Sprintf("unknown class %q", e.Name) }

// UnknownMethod reports a member access that isn't present in the object's
// flattened member map. Candidates lists the member names that *were*
// present, for diagnostics.
type UnknownMethod struct {
	Name       string
	Class      string
	Candidates []string
}

func (e UnknownMethod) Error() string {
	return fmt.Sprintf("unknown method %q on class %q (have: %s)", e.Name, e.Class, strings.Join(e.Candidates, ", "))
}

// UnknownObject reports member access attempted on a non-object value.
type UnknownObject struct{ On string }

func (e UnknownObject) Error() string { return fmt.Sprintf("member access on non-object value (%s)", e.On) }

// LostControl reports a dynamic call target that couldn't be narrowed to any
// string or Method value.
type LostControl struct{ Detail string }

func (e LostControl) Error() string { return fmt.Sprintf("lost control: %s", e.Detail) }

// Impossible reports an invariant violation — a shape the simplified AST is
// never supposed to produce (e.g. a nested constant definition).
type Impossible struct{ Detail string }

func (e Impossible) Error() string { return fmt.Sprintf("impossible: %s", e.Detail) }
