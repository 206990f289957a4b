// Package taint implements the pluggable taint-propagation hook (spec
// §4.I): expression-level propagation, binary-concat flow, sink checks,
// slist folding, and unknown-call summaries. When taint mode is off every
// operation is identity/no-op, as §4.I requires.
package taint

import (
	"fmt"

	"github.com/corewall/hackscan/pkg/value"
)

// ReservedSources are the well-known request-like globals that evaluate,
// in l-value position, to a Map whose key and element are Taint(name)
// (spec §4.I).
var ReservedSources = map[string]struct{}{
	"$_POST":    {},
	"$_GET":     {},
	"$_REQUEST": {},
}

// IsReservedSource reports whether name is one of the reserved taint
// sources.
func IsReservedSource(name string) bool {
	_, ok := ReservedSources[name]
	return ok
}

// ReservedSink is the method name whose return triggers a sink check
// (spec §4.I).
const ReservedSink = "render"

// Finding is one taint record emitted by CheckDanger (spec §6.2).
type Finding struct {
	SinkLabel  string
	SourceInfo string
	Label      string
}

// Collector receives findings as they're emitted.
type Collector interface {
	Record(Finding)
}

// SliceCollector is the simplest Collector: an in-memory, append-only list.
type SliceCollector struct {
	Findings []Finding
}

func (c *SliceCollector) Record(f Finding) { c.Findings = append(c.Findings, f) }

// Module is the taint hook interface the evaluator calls into (§4.I). A
// caller that disables taint_mode (§6.3) uses New(false, ...), whose
// methods propagate no taint.
type Module interface {
	// Enabled reports whether taint propagation is active.
	Enabled() bool
	// SourceValue returns the taint-source value for a reserved global name
	// (e.g. "$_GET"), and ok=false if name isn't a reserved source.
	SourceValue(name string) (v value.Value, ok bool)
	// ConcatFold computes the result of string-concatenating a and b,
	// propagating taint when either side carries it (§4.E binary
	// arithmetic / string concatenation).
	ConcatFold(a, b value.Value) value.Value
	// SlistFold folds a sequence of already-evaluated interpolation
	// segments into one string-shaped value (§4.E string interpolation).
	SlistFold(segments []value.Value) value.Value
	// UnknownCallSummary returns the fallback return value for a call to
	// an unresolved function/method name in non-strict mode (§4.E, §7).
	UnknownCallSummary(name string) value.Value
	// CheckDanger is invoked when a reserved sink (a method named "render")
	// returns; it inspects the returned value for taint and records a
	// Finding for each label found.
	CheckDanger(sinkLabel, sourceInfo string, v value.Value)
	// FoldUnify lets the unifier's rule 10 (taint-involving unify) delegate
	// to the policy; see unify.TaintPolicy.
	FoldUnify(a, b value.Value) (value.Value, bool)
}

// Default is the standard taint module: string-typed sources widen to
// AbstractType(String) on concat, labels fold into a Sum so both origins
// remain visible, and CheckDanger walks Sum/Map/Record/Object shapes
// looking for a Taint leaf.
type Default struct {
	On        bool
	Collector Collector
}

// New returns a Default module. If enabled is false every method behaves
// as identity/no-op per §4.I. A nil collector is replaced with a
// SliceCollector the caller can't reach — pass one explicitly to observe
// findings.
func New(enabled bool, collector Collector) *Default {
	if collector == nil {
		collector = &SliceCollector{}
	}
	return &Default{On: enabled, Collector: collector}
}

func (d *Default) Enabled() bool { return d.On }

func (d *Default) SourceValue(name string) (value.Value, bool) {
	if !d.On || !IsReservedSource(name) {
		return nil, false
	}
	label := value.NewTaint(name)
	return value.MapValue{Key: label, Elem: label}, true
}

func (d *Default) ConcatFold(a, b value.Value) value.Value {
	aTaint, aOK := a.(value.TaintValue)
	bTaint, bOK := b.(value.TaintValue)
	aOK, bOK = aOK && d.On, bOK && d.On
	switch {
	case aOK && bOK:
		if aTaint.Label == bTaint.Label {
			return aTaint
		}
		return value.NewSum(aTaint, bTaint)
	case aOK:
		return value.NewSum(aTaint, value.NewAbstractType(value.TypeString))
	case bOK:
		return value.NewSum(bTaint, value.NewAbstractType(value.TypeString))
	default:
		as, aIsStr := a.(value.StringValue)
		bs, bIsStr := b.(value.StringValue)
		if aIsStr && bIsStr {
			return value.StringValue{Val: as.Val + bs.Val}
		}
		return value.NewAbstractType(value.TypeString)
	}
}

func (d *Default) SlistFold(segments []value.Value) value.Value {
	if len(segments) == 0 {
		return value.StringValue{Val: ""}
	}
	acc := segments[0]
	for _, s := range segments[1:] {
		acc = d.ConcatFold(acc, s)
	}
	return acc
}

func (d *Default) UnknownCallSummary(name string) value.Value {
	return value.Any
}

func (d *Default) CheckDanger(sinkLabel, sourceInfo string, v value.Value) {
	if !d.On {
		return
	}
	for _, label := range collectTaintLabels(v) {
		d.Collector.Record(Finding{SinkLabel: sinkLabel, SourceInfo: sourceInfo, Label: label})
	}
}

func (d *Default) FoldUnify(a, b value.Value) (value.Value, bool) {
	if !d.On {
		return value.NewSum(a, b), true
	}
	return nil, false // defer to unify's default Sum fold (still sound).
}

// collectTaintLabels walks the value shape looking for Taint leaves,
// de-duplicating by label. Reference-like collections (Map/Record/Object)
// can't participate in the addr-based visited set the unifier uses, so this
// instead stops descending below a fixed depth of 32, which also bounds the
// walk when an object's members refer back to the object itself.
func collectTaintLabels(v value.Value) []string {
	seen := map[string]struct{}{}
	var out []string
	var walk func(value.Value, int)
	walk = func(v value.Value, depth int) {
		if v == nil || depth > 32 {
			return
		}
		switch vv := v.(type) {
		case value.TaintValue:
			if _, ok := seen[vv.Label]; !ok {
				seen[vv.Label] = struct{}{}
				out = append(out, vv.Label)
			}
		case value.SumValue:
			for _, alt := range vv.Alternatives {
				walk(alt, depth+1)
			}
		case value.MapValue:
			walk(vv.Key, depth+1)
			walk(vv.Elem, depth+1)
		case value.RecordValue:
			for _, f := range vv.Fields {
				walk(f, depth+1)
			}
		case value.ArrayValue:
			for _, e := range vv.Elements {
				walk(e, depth+1)
			}
		case *value.ObjectValue:
			for _, f := range vv.Members {
				walk(f, depth+1)
			}
		}
	}
	walk(v, 0)
	return out
}

// HasTaint reports whether v carries a Taint label anywhere in its shape,
// used by the call engine to decide whether a call's arguments were clean
// (§4.G step 2).
func HasTaint(v value.Value) bool {
	return len(collectTaintLabels(v)) > 0
}

// SinkInfo formats the (class, method) pair CheckDanger's sourceInfo
// argument is usually built from.
func SinkInfo(class, method string) string {
	if class == "" {
		return method
	}
	return fmt.Sprintf("%s::%s", class, method)
}
