package classify

import (
	"github.com/google/cel-go/cel"
)

func compileRule(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("status", cel.IntType),
		cel.Variable("message", cel.StringType),
		cel.Variable("kind", cel.StringType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, iss2.Err()
	}
	return env.Program(checked)
}

// evalRule treats evaluation errors and non-bool results as no match.
func evalRule(prog cel.Program, status int, message, kind string) bool {
	out, _, err := prog.Eval(map[string]any{
		"status":  int64(status),
		"message": message,
		"kind":    kind,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
