package operator

// RegisterScalarBuiltins wires every built-in operator that needs no
// relation iteration. The relational combinators and the
// aggregates/in/subset_of/is_empty predicates are registered separately by
// the relalg package, which avoids an import cycle back into
// operator; see DESIGN.md.
func RegisterScalarBuiltins(r *Registry) {
	RegisterComparison(r)
	RegisterArithmetic(r)
	RegisterLogic(r)
	RegisterStrings(r)
	RegisterCasts(r)
	RegisterMisc(r)
}
