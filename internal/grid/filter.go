package grid

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"openbis/pkg/domain"
)

// CustomFilter is a boolean expression evaluated for every row. ${name}
// placeholders are replaced by Parameters before evaluation. The expression
// sees row["ID"] and col("ID") (the value of a column), num("ID") (the value
// parsed as a number, 0 when it is not one), the math package and a few
// functions of strings and strconv; see allowedCalls.
type CustomFilter struct {
	Expression string            `json:"expression"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// MaxFilterExpressionLength bounds a custom filter after parameter
// substitution.
const MaxFilterExpressionLength = 1024

// allowedCalls lists what an expression may call. A nil set admits every
// name of the package.
var allowedCalls = map[string]map[string]bool{
	"math": nil,
	"strings": {
		"Contains": true, "ContainsAny": true, "EqualFold": true, "HasPrefix": true, "HasSuffix": true,
		"Index": true, "ToLower": true, "ToUpper": true, "TrimSpace": true,
	},
	"strconv": {"Atoi": true, "ParseFloat": true, "ParseInt": true, "ParseBool": true, "Itoa": true},
}

// allowedFuncs are the plain identifiers an expression may call.
var allowedFuncs = map[string]bool{
	"col": true, "num": true, "len": true, "string": true, "int": true, "float64": true,
}

const filterProgram = `package main

import (
	"math"
	"strconv"
	"strings"
)

var (
	_ = math.Abs
	_ = strconv.Itoa
)

func Match(row map[string]string) bool {
	col := func(id string) string { return row[id] }
	num := func(id string) float64 {
		f, err := strconv.ParseFloat(strings.TrimSpace(row[id]), 64)
		if err != nil {
			return 0
		}
		return f
	}
	_, _ = col, num
	return %s
}
`

// SubstituteParameters replaces every ${name} by its value.
func SubstituteParameters(expression string, parameters map[string]string) string {
	names := make([]string, 0, len(parameters))
	for name := range parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		expression = strings.ReplaceAll(expression, "${"+name+"}", parameters[name])
	}
	return expression
}

// checkExpression rejects anything but a short, plain expression over the
// row helpers and allowedCalls.
func checkExpression(expression string) error {
	if len(expression) > MaxFilterExpressionLength {
		return domain.UserFailuref("Invalid filter expression: longer than %d characters.", MaxFilterExpressionLength)
	}
	expr, err := parser.ParseExpr(expression)
	if err != nil {
		return domain.UserFailuref("Invalid filter expression '%s': %v", expression, err)
	}
	var bad string
	ast.Inspect(expr, func(n ast.Node) bool {
		if bad != "" {
			return false
		}
		switch x := n.(type) {
		case *ast.FuncLit:
			bad = "function literals are not allowed"
		case *ast.CallExpr:
			if id, ok := x.Fun.(*ast.Ident); ok && !allowedFuncs[id.Name] {
				bad = id.Name + " may not be called"
			}
		case *ast.SelectorExpr:
			pkg, ok := x.X.(*ast.Ident)
			if !ok {
				bad = "only math, strings and strconv may be referenced"
				break
			}
			names, known := allowedCalls[pkg.Name]
			switch {
			case !known:
				bad = "only math, strings and strconv may be referenced"
			case names != nil && !names[x.Sel.Name]:
				bad = pkg.Name + "." + x.Sel.Name + " may not be used"
			}
		}
		return true
	})
	if bad != "" {
		return domain.UserFailuref("Invalid filter expression '%s': %s.", expression, bad)
	}
	return nil
}

func compileFilter(expression string) (func(map[string]string) bool, error) {
	if err := checkExpression(expression); err != nil {
		return nil, err
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load filter symbols: %w", err)
	}
	if _, err := i.Eval(fmt.Sprintf(filterProgram, expression)); err != nil {
		return nil, domain.UserFailuref("Invalid filter expression '%s': %v", expression, err)
	}
	v, err := i.Eval("main.Match")
	if err != nil {
		return nil, fmt.Errorf("resolve filter: %w", err)
	}
	match, ok := v.Interface().(func(map[string]string) bool)
	if !ok {
		return nil, fmt.Errorf("filter has type %s", v.Type())
	}
	return match, nil
}

func applyCustomFilter[T any](ctx context.Context, rows []T, columns []ColumnDef[T], f CustomFilter) (out []T, err error) {
	expression := SubstituteParameters(f.Expression, f.Parameters)
	match, err := compileFilter(expression)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, domain.UserFailuref("Evaluation of filter expression '%s' failed: %v", expression, r)
		}
	}()
	row := make(map[string]string, len(columns))
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, c := range columns {
			row[c.Identifier] = c.Value(r)
		}
		if match(row) {
			out = append(out, r)
		}
	}
	return out, nil
}
