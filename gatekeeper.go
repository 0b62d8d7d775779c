package process

// gatekeep validates the dependency model, then the input model. The first
// invalid one short-circuits the call with a Failure carrying the model.
func gatekeep(deps, input Model) (Outcome, bool) {
	if !isNil(deps) && !deps.IsValid() {
		return Failure(TypeInvalidDependencies, "dependencies", deps), false
	}
	if !isNil(input) && !input.IsValid() {
		return Failure(TypeInvalidInput, "input", input), false
	}
	return Outcome{}, true
}
