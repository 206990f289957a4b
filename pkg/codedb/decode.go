package codedb

import (
	"fmt"
	"math/big"

	"gopkg.in/yaml.v3"

	"github.com/corewall/hackscan/pkg/ast"
)

// LoadModule decodes a YAML document describing one simplified-AST module
// (spec §6.1) into an *ast.Module. The document shape mirrors the teacher's
// own JSON fixture format (fixtures_decode_node.go) generalized to YAML,
// which this repository's config and corpus fixtures already depend on
// (SPEC_FULL.md §2).
func LoadModule(path string, data []byte) (*ast.Module, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("codedb: decode %s: %w", path, err)
	}
	node, err := decodeNode(raw)
	if err != nil {
		return nil, fmt.Errorf("codedb: decode %s: %w", path, err)
	}
	mod, ok := node.(*ast.Module)
	if !ok {
		return nil, fmt.Errorf("codedb: %s: top-level node is %T, not a Module", path, node)
	}
	mod.Path = path
	return mod, nil
}

func decodeNode(node map[string]any) (ast.Node, error) {
	typ, _ := node["type"].(string)
	switch ast.NodeType(typ) {
	case ast.NodeModule:
		return decodeModule(node)
	case ast.NodeIdentifier:
		return ast.NewIdentifier(str(node["name"])), nil
	case ast.NodeStringLiteral:
		return ast.NewStringLiteral(str(node["value"])), nil
	case ast.NodeIntLiteral:
		return ast.NewIntLiteral(bigInt(node["value"])), nil
	case ast.NodeFloatLiteral:
		return ast.NewFloatLiteral(asFloat(node["value"])), nil
	case ast.NodeBoolLiteral:
		b, _ := node["value"].(bool)
		return ast.NewBoolLiteral(b), nil
	case ast.NodeNullLiteral:
		return ast.NewNullLiteral(), nil
	case ast.NodeArrayLiteral:
		return decodeArrayLiteral(node)
	case ast.NodeXhpLiteral:
		return decodeXhpLiteral(node)
	case ast.NodeStringInterp:
		segs, err := decodeExprList(node["segments"])
		if err != nil {
			return nil, err
		}
		return ast.NewStringInterpolation(segs), nil
	case ast.NodeUnaryExpr:
		operand, err := decodeExpr(node["operand"])
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryExpression(str(node["operator"]), operand), nil
	case ast.NodeBinaryExpr:
		left, err := decodeExpr(node["left"])
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(node["right"])
		if err != nil {
			return nil, err
		}
		return ast.NewBinaryExpression(str(node["operator"]), left, right), nil
	case ast.NodeConditionalExpr:
		cond, err := decodeExpr(node["condition"])
		if err != nil {
			return nil, err
		}
		then, err := decodeExpr(node["then"])
		if err != nil {
			return nil, err
		}
		els, err := decodeExpr(node["else"])
		if err != nil {
			return nil, err
		}
		return ast.NewConditionalExpression(cond, then, els), nil
	case ast.NodeAssignmentExpr:
		target, err := decodeExpr(node["target"])
		if err != nil {
			return nil, err
		}
		val, err := decodeExpr(node["value"])
		if err != nil {
			return nil, err
		}
		return ast.NewAssignmentExpression(str(node["operator"]), target, val), nil
	case ast.NodeListAssignExpr:
		targets, err := decodeExprList(node["targets"])
		if err != nil {
			return nil, err
		}
		val, err := decodeExpr(node["value"])
		if err != nil {
			return nil, err
		}
		return ast.NewListAssignmentExpression(targets, val), nil
	case ast.NodeCall:
		callee, err := decodeExpr(node["callee"])
		if err != nil {
			return nil, err
		}
		args, err := decodeExprList(node["arguments"])
		if err != nil {
			return nil, err
		}
		return ast.NewCall(callee, args), nil
	case ast.NodeNew:
		classExpr, err := decodeExpr(node["classExpr"])
		if err != nil {
			return nil, err
		}
		args, err := decodeExprList(node["arguments"])
		if err != nil {
			return nil, err
		}
		return ast.NewNewExpression(classExpr, args), nil
	case ast.NodeObjGet:
		obj, err := decodeExpr(node["object"])
		if err != nil {
			return nil, err
		}
		og := ast.NewObjGet(obj, str(node["member"]))
		if dyn, ok := node["dynamic"].(map[string]any); ok {
			d, err := decodeNode(dyn)
			if err != nil {
				return nil, err
			}
			expr, ok := d.(ast.Expression)
			if !ok {
				return nil, fmt.Errorf("ObjGet.dynamic must be an expression, got %T", d)
			}
			og.Dynamic = expr
		}
		return og, nil
	case ast.NodeClassGet:
		return ast.NewClassGet(str(node["class"]), str(node["member"])), nil
	case ast.NodeIndexExpr:
		coll, err := decodeExpr(node["collection"])
		if err != nil {
			return nil, err
		}
		idx, err := decodeExpr(node["index"])
		if err != nil {
			return nil, err
		}
		return ast.NewIndexExpression(coll, idx), nil
	case ast.NodeLambdaExpr:
		params, err := decodeParameters(node["parameters"])
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(node["body"])
		if err != nil {
			return nil, err
		}
		return ast.NewLambdaExpression(params, body), nil
	case ast.NodeBlock:
		return decodeBlock(node)
	case ast.NodeIfStmt:
		return decodeIf(node)
	case ast.NodeWhileStmt:
		cond, err := decodeExpr(node["condition"])
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(node["body"])
		if err != nil {
			return nil, err
		}
		return ast.NewWhile(cond, body), nil
	case ast.NodeDoWhileStmt:
		cond, err := decodeExpr(node["condition"])
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(node["body"])
		if err != nil {
			return nil, err
		}
		return ast.NewDoWhile(cond, body), nil
	case ast.NodeForStmt:
		return decodeFor(node)
	case ast.NodeBreakStmt:
		return ast.NewBreak(), nil
	case ast.NodeContinueStmt:
		return ast.NewContinue(), nil
	case ast.NodeReturnStmt:
		arg, err := decodeOptExpr(node["argument"])
		if err != nil {
			return nil, err
		}
		return ast.NewReturn(arg), nil
	case ast.NodeThrowStmt:
		arg, err := decodeExpr(node["argument"])
		if err != nil {
			return nil, err
		}
		return ast.NewThrow(arg), nil
	case ast.NodeTryStmt:
		return decodeTry(node)
	case ast.NodeGlobalStmt:
		return ast.NewGlobal(strList(node["names"])), nil
	case ast.NodeStaticStmt:
		init, err := decodeOptExpr(node["initial"])
		if err != nil {
			return nil, err
		}
		return ast.NewStatic(str(node["name"]), init), nil
	case ast.NodeFunctionDef:
		return decodeFunctionDef(node)
	case ast.NodeClassDef:
		return decodeClassDef(node)
	case ast.NodeConstantDef:
		val, err := decodeExpr(node["value"])
		if err != nil {
			return nil, err
		}
		return ast.NewConstantDef(str(node["name"]), val), nil
	default:
		return nil, fmt.Errorf("codedb: unknown node type %q", typ)
	}
}

func decodeModule(node map[string]any) (ast.Node, error) {
	body, err := decodeStmtList(node["body"])
	if err != nil {
		return nil, err
	}
	var funs []*ast.FunctionDef
	for _, raw := range asList(node["functions"]) {
		n, err := decodeNode(asMap(raw))
		if err != nil {
			return nil, err
		}
		f, ok := n.(*ast.FunctionDef)
		if !ok {
			return nil, fmt.Errorf("module.functions entry is %T, not FunctionDef", n)
		}
		funs = append(funs, f)
	}
	var classes []*ast.ClassDef
	for _, raw := range asList(node["classes"]) {
		n, err := decodeNode(asMap(raw))
		if err != nil {
			return nil, err
		}
		c, ok := n.(*ast.ClassDef)
		if !ok {
			return nil, fmt.Errorf("module.classes entry is %T, not ClassDef", n)
		}
		classes = append(classes, c)
	}
	var consts []*ast.ConstantDef
	for _, raw := range asList(node["constantDefs"]) {
		n, err := decodeNode(asMap(raw))
		if err != nil {
			return nil, err
		}
		c, ok := n.(*ast.ConstantDef)
		if !ok {
			return nil, fmt.Errorf("module.constantDefs entry is %T, not ConstantDef", n)
		}
		consts = append(consts, c)
	}
	return ast.NewModule("", body, funs, classes, consts), nil
}

func decodeFunctionDef(node map[string]any) (ast.Node, error) {
	params, err := decodeParameters(node["parameters"])
	if err != nil {
		return nil, err
	}
	body, err := decodeBlock(node["body"])
	if err != nil {
		return nil, err
	}
	f := ast.NewFunctionDef(str(node["name"]), params, body)
	if st, ok := node["static"].(bool); ok {
		f.IsStatic = st
	}
	f.Visibility = str(node["visibility"])
	return f, nil
}

func decodeClassDef(node map[string]any) (ast.Node, error) {
	c := ast.NewClassDef(str(node["name"]), str(node["parent"]))
	for _, raw := range asList(node["properties"]) {
		pm := asMap(raw)
		init, err := decodeOptExpr(pm["initial"])
		if err != nil {
			return nil, err
		}
		st, _ := pm["static"].(bool)
		c.Properties = append(c.Properties, &ast.PropertyDecl{Name: str(pm["name"]), IsStatic: st, Initial: init})
	}
	for _, raw := range asList(node["constants"]) {
		cm := asMap(raw)
		val, err := decodeExpr(cm["value"])
		if err != nil {
			return nil, err
		}
		c.Constants = append(c.Constants, &ast.ClassConstDecl{Name: str(cm["name"]), Value: val})
	}
	for _, raw := range asList(node["methods"]) {
		n, err := decodeNode(asMap(raw))
		if err != nil {
			return nil, err
		}
		m, ok := n.(*ast.FunctionDef)
		if !ok {
			return nil, fmt.Errorf("class.methods entry is %T, not FunctionDef", n)
		}
		c.Methods = append(c.Methods, m)
	}
	return c, nil
}

func decodeIf(node map[string]any) (ast.Node, error) {
	cond, err := decodeExpr(node["condition"])
	if err != nil {
		return nil, err
	}
	then, err := decodeBlock(node["then"])
	if err != nil {
		return nil, err
	}
	var els *ast.Block
	if raw, ok := node["else"]; ok && raw != nil {
		els, err = decodeBlock(raw)
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIf(cond, then, els), nil
}

func decodeFor(node map[string]any) (ast.Node, error) {
	var init ast.Statement
	if raw, ok := node["init"]; ok && raw != nil {
		n, err := decodeNode(asMap(raw))
		if err != nil {
			return nil, err
		}
		stmt, ok := n.(ast.Statement)
		if !ok {
			return nil, fmt.Errorf("for.init is %T, not a Statement", n)
		}
		init = stmt
	}
	cond, err := decodeOptExpr(node["condition"])
	if err != nil {
		return nil, err
	}
	var update ast.Statement
	if raw, ok := node["update"]; ok && raw != nil {
		n, err := decodeNode(asMap(raw))
		if err != nil {
			return nil, err
		}
		stmt, ok := n.(ast.Statement)
		if !ok {
			return nil, fmt.Errorf("for.update is %T, not a Statement", n)
		}
		update = stmt
	}
	body, err := decodeBlock(node["body"])
	if err != nil {
		return nil, err
	}
	return ast.NewFor(init, cond, update, body), nil
}

func decodeTry(node map[string]any) (ast.Node, error) {
	body, err := decodeBlock(node["body"])
	if err != nil {
		return nil, err
	}
	var catches []*ast.CatchClause
	for _, raw := range asList(node["catches"]) {
		cm := asMap(raw)
		cbody, err := decodeBlock(cm["body"])
		if err != nil {
			return nil, err
		}
		catches = append(catches, &ast.CatchClause{
			ExceptionType: str(cm["exceptionType"]),
			Binding:       str(cm["binding"]),
			Body:          cbody,
		})
	}
	var finally *ast.Block
	if raw, ok := node["finally"]; ok && raw != nil {
		finally, err = decodeBlock(raw)
		if err != nil {
			return nil, err
		}
	}
	return ast.NewTry(body, catches, finally), nil
}

func decodeArrayLiteral(node map[string]any) (ast.Node, error) {
	keys, err := decodeOptExprList(node["keys"])
	if err != nil {
		return nil, err
	}
	elems, err := decodeExprList(node["elements"])
	if err != nil {
		return nil, err
	}
	return ast.NewArrayLiteral(keys, elems), nil
}

func decodeXhpLiteral(node map[string]any) (ast.Node, error) {
	attrs := map[string]ast.Expression{}
	for k, raw := range asMap(node["attributes"]) {
		expr, err := decodeExpr(raw)
		if err != nil {
			return nil, err
		}
		attrs[k] = expr
	}
	children, err := decodeExprList(node["children"])
	if err != nil {
		return nil, err
	}
	return ast.NewXhpLiteral(str(node["tag"]), attrs, children), nil
}

func decodeParameters(raw any) ([]*ast.Parameter, error) {
	var out []*ast.Parameter
	for _, item := range asList(raw) {
		pm := asMap(item)
		def, err := decodeOptExpr(pm["default"])
		if err != nil {
			return nil, err
		}
		byRef, _ := pm["byRef"].(bool)
		variadic, _ := pm["variadic"].(bool)
		out = append(out, &ast.Parameter{Name: str(pm["name"]), ByRef: byRef, Default: def, IsVariadic: variadic})
	}
	return out, nil
}

func decodeBlock(raw any) (*ast.Block, error) {
	if raw == nil {
		return ast.NewBlock(nil), nil
	}
	m := asMap(raw)
	stmts, err := decodeStmtList(m["statements"])
	if err != nil {
		return nil, err
	}
	return ast.NewBlock(stmts), nil
}

func decodeStmtList(raw any) ([]ast.Statement, error) {
	var out []ast.Statement
	for _, item := range asList(raw) {
		n, err := decodeNode(asMap(item))
		if err != nil {
			return nil, err
		}
		stmt, ok := n.(ast.Statement)
		if !ok {
			return nil, fmt.Errorf("expected statement, got %T", n)
		}
		out = append(out, stmt)
	}
	return out, nil
}

func decodeExprList(raw any) ([]ast.Expression, error) {
	var out []ast.Expression
	for _, item := range asList(raw) {
		expr, err := decodeExpr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

// decodeOptExprList is like decodeExprList but preserves a nil entry for
// each list element that is itself nil/absent (ArrayLiteral.Keys uses this
// to mark positional entries — see ast.ArrayLiteral).
func decodeOptExprList(raw any) ([]ast.Expression, error) {
	var out []ast.Expression
	for _, item := range asList(raw) {
		if item == nil {
			out = append(out, nil)
			continue
		}
		expr, err := decodeExpr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

func decodeExpr(raw any) (ast.Expression, error) {
	if raw == nil {
		return nil, fmt.Errorf("expected expression, got nil")
	}
	n, err := decodeNode(asMap(raw))
	if err != nil {
		return nil, err
	}
	expr, ok := n.(ast.Expression)
	if !ok {
		return nil, fmt.Errorf("expected expression, got %T", n)
	}
	return expr, nil
}

func decodeOptExpr(raw any) (ast.Expression, error) {
	if raw == nil {
		return nil, nil
	}
	return decodeExpr(raw)
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strList(v any) []string {
	var out []string
	for _, item := range asList(v) {
		out = append(out, str(item))
	}
	return out
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func bigInt(v any) *big.Int {
	switch n := v.(type) {
	case int:
		return big.NewInt(int64(n))
	case int64:
		return big.NewInt(n)
	case float64:
		return big.NewInt(int64(n))
	case string:
		bi := new(big.Int)
		if _, ok := bi.SetString(n, 10); ok {
			return bi
		}
	}
	return big.NewInt(0)
}
