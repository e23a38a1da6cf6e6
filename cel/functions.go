package cel

import (
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"
	"github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// userMacros rewrite hasRole(x) to hasRole(x, user.roles), and likewise for
// the group and any-of forms, so the functions read the user from the
// activation instead of being bound to one user.
func userMacros() []celgo.Macro {
	return []celgo.Macro{
		userMacro("hasRole", "roles"),
		userMacro("hasGroup", "groups"),
		userMacro("hasAnyRole", "roles"),
		userMacro("hasAnyGroup", "groups"),
	}
}

func userMacro(function, attribute string) celgo.Macro {
	return celgo.GlobalMacro(function, 1,
		func(eh celgo.MacroExprFactory, _ ast.Expr, args []ast.Expr) (ast.Expr, *common.Error) {
			return eh.NewCall(function, args[0], eh.NewSelect(eh.NewIdent("user"), attribute)), nil
		})
}

// userFunctions declares the two-argument forms the user macros expand to.
func userFunctions() []celgo.EnvOption {
	list := celgo.ListType(celgo.DynType)
	return []celgo.EnvOption{
		celgo.Function("hasRole",
			celgo.Overload("hasRole_string_list", []*celgo.Type{celgo.StringType, list}, celgo.BoolType,
				celgo.BinaryBinding(member))),
		celgo.Function("hasGroup",
			celgo.Overload("hasGroup_string_list", []*celgo.Type{celgo.StringType, list}, celgo.BoolType,
				celgo.BinaryBinding(member))),
		celgo.Function("hasAnyRole",
			celgo.Overload("hasAnyRole_list_list", []*celgo.Type{list, list}, celgo.BoolType,
				celgo.BinaryBinding(anyMember))),
		celgo.Function("hasAnyGroup",
			celgo.Overload("hasAnyGroup_list_list", []*celgo.Type{list, list}, celgo.BoolType,
				celgo.BinaryBinding(anyMember))),
	}
}

// emptinessFunctions declares isEmpty and isNotEmpty.
func emptinessFunctions() []celgo.EnvOption {
	return []celgo.EnvOption{
		celgo.Function("isEmpty",
			celgo.Overload("isEmpty_dyn", []*celgo.Type{celgo.DynType}, celgo.BoolType,
				celgo.UnaryBinding(func(v ref.Val) ref.Val { return types.Bool(empty(v)) }))),
		celgo.Function("isNotEmpty",
			celgo.Overload("isNotEmpty_dyn", []*celgo.Type{celgo.DynType}, celgo.BoolType,
				celgo.UnaryBinding(func(v ref.Val) ref.Val { return types.Bool(!empty(v)) }))),
	}
}

// member reports whether the string v is in set.
func member(v, set ref.Val) ref.Val {
	s, ok := v.(types.String)
	if !ok {
		return types.MaybeNoSuchOverloadErr(v)
	}
	l, ok := set.(traits.Lister)
	if !ok {
		return types.MaybeNoSuchOverloadErr(set)
	}
	return types.Bool(contains(l, s))
}

// anyMember reports whether any string in items is in set.
func anyMember(items, set ref.Val) ref.Val {
	want, ok := items.(traits.Lister)
	if !ok {
		return types.MaybeNoSuchOverloadErr(items)
	}
	l, ok := set.(traits.Lister)
	if !ok {
		return types.MaybeNoSuchOverloadErr(set)
	}
	it := want.Iterator()
	for it.HasNext() == types.True {
		if s, ok := it.Next().(types.String); ok && contains(l, s) {
			return types.True
		}
	}
	return types.False
}

func contains(l traits.Lister, s types.String) bool {
	it := l.Iterator()
	for it.HasNext() == types.True {
		if v, ok := it.Next().(types.String); ok && v == s {
			return true
		}
	}
	return false
}

// empty matches expr.IsEmpty: null, blank strings, and empty lists and
// maps are empty.
func empty(v ref.Val) bool {
	if v == types.NullValue {
		return true
	}
	if s, ok := v.(types.String); ok {
		return strings.TrimSpace(string(s)) == ""
	}
	if sz, ok := v.(traits.Sizer); ok {
		return sz.Size() == types.IntZero
	}
	return false
}
