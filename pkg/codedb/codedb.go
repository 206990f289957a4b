// Package codedb provides the code database the interpreter treats as an
// external collaborator (spec §3.3, §6.1): by-name lookups for function,
// class, and constant definitions. It also supplies the one concrete way
// this repository builds a codedb and a simplified-AST Module from disk —
// decoding a YAML/JSON fixture tree, generalizing the teacher's JSON-only
// fixture decoder (see SPEC_FULL.md §0).
package codedb

import "github.com/corewall/hackscan/pkg/ast"

// DB is the by-name lookup surface the evaluator (pkg/interp) consults. A
// miss is reported via the boolean, never an error — callers turn a miss
// into the appropriate Unknown* condition (spec §7) themselves, since
// whether that's fatal depends on strict mode, not on the database.
type DB interface {
	Function(name string) (*ast.FunctionDef, bool)
	Class(name string) (*ast.ClassDef, bool)
	Constant(name string) (ast.Expression, bool)
	// Functions lists every indexed function, used by the fake-root sweep
	// (§4.F, GLOSSARY) when extract_paths is enabled.
	Functions() []*ast.FunctionDef
	// Classes lists every indexed class, for the same reason.
	Classes() []*ast.ClassDef
}

// MemDB is a simple in-memory DB built directly from a Module's hoisted
// declarations.
type MemDB struct {
	funs      map[string]*ast.FunctionDef
	classes   map[string]*ast.ClassDef
	constants map[string]ast.Expression
	funOrder  []*ast.FunctionDef
	clsOrder  []*ast.ClassDef
}

// NewMemDB builds a MemDB from one or more modules, indexing their hoisted
// function/class/constant declarations. Later modules shadow earlier ones
// on name collision, mirroring how a code database built from a package
// tree would resolve duplicate top-level definitions.
func NewMemDB(modules ...*ast.Module) *MemDB {
	db := &MemDB{
		funs:      make(map[string]*ast.FunctionDef),
		classes:   make(map[string]*ast.ClassDef),
		constants: make(map[string]ast.Expression),
	}
	for _, m := range modules {
		db.Add(m)
	}
	return db
}

// Add indexes one more module's declarations into the database.
func (db *MemDB) Add(m *ast.Module) {
	if m == nil {
		return
	}
	for _, f := range m.Functions {
		if old, exists := db.funs[f.Name]; !exists {
			db.funOrder = append(db.funOrder, f)
		} else {
			for i := range db.funOrder {
				if db.funOrder[i] == old {
					db.funOrder[i] = f
				}
			}
		}
		db.funs[f.Name] = f
	}
	for _, c := range m.Classes {
		if old, exists := db.classes[c.Name]; !exists {
			db.clsOrder = append(db.clsOrder, c)
		} else {
			for i := range db.clsOrder {
				if db.clsOrder[i] == old {
					db.clsOrder[i] = c
				}
			}
		}
		db.classes[c.Name] = c
	}
	for _, c := range m.Constants {
		db.constants[c.Name] = c.Value
	}
}

func (db *MemDB) Function(name string) (*ast.FunctionDef, bool) {
	f, ok := db.funs[name]
	return f, ok
}

func (db *MemDB) Class(name string) (*ast.ClassDef, bool) {
	c, ok := db.classes[name]
	return c, ok
}

func (db *MemDB) Constant(name string) (ast.Expression, bool) {
	c, ok := db.constants[name]
	return c, ok
}

func (db *MemDB) Functions() []*ast.FunctionDef { return db.funOrder }
func (db *MemDB) Classes() []*ast.ClassDef      { return db.clsOrder }
