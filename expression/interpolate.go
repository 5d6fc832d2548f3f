package expression

// ParseVariables replaces each $(scope:name) in the string with the
// text of the variable's value.  Unknown values render as NA.
func ParseVariables(s string, lookup func(scope, name string) interface{}) string {
	return referencePattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := referencePattern.FindStringSubmatch(ref)
		return Stringify(lookup(m[1], m[2]))
	})
}

// Interpolate is ParseVariables against an Env, and it reports the
// references.
func Interpolate(s string, env *Env) (string, map[string]struct{}, error) {
	if env == nil {
		env = &Env{}
	}
	st := &State{
		env: env,
		ids: make(map[string]struct{}),
	}
	var failed error
	acc := ParseVariables(s, func(scope, name string) interface{} {
		v, err := st.Lookup(scope, name)
		if err != nil {
			if failed == nil {
				failed = err
			}
			return Unknown
		}
		return v
	})
	return acc, st.ids, failed
}
