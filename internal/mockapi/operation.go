package mockapi

import "net/http"

// Operation identifies one API endpoint.
type Operation int

const (
	OpUnknown Operation = iota
	OpSignIn
	OpSignUp
	OpSignOut
	OpForgotPassword
	OpResetPassword
	OpAddQueryHistory
	OpGetQueryHistory
)

// Operations lists every routable operation.
var Operations = []Operation{
	OpSignIn,
	OpSignUp,
	OpSignOut,
	OpForgotPassword,
	OpResetPassword,
	OpAddQueryHistory,
	OpGetQueryHistory,
}

func (o Operation) String() string {
	switch o {
	case OpSignIn:
		return "sign-in"
	case OpSignUp:
		return "sign-up"
	case OpSignOut:
		return "sign-out"
	case OpForgotPassword:
		return "forgot-password"
	case OpResetPassword:
		return "reset-password"
	case OpAddQueryHistory:
		return "add-query-history"
	case OpGetQueryHistory:
		return "get-query-history"
	default:
		return "unknown"
	}
}

// Method is the HTTP method the operation is served on.
func (o Operation) Method() string {
	return http.MethodPost
}

// Path is the operation path relative to the API base path.
func (o Operation) Path() string {
	return "/" + o.String()
}

// Writes reports whether the operation can change store content. Only
// these operations are followed by a snapshot write.
func (o Operation) Writes() bool {
	switch o {
	case OpSignUp, OpAddQueryHistory:
		return true
	default:
		return false
	}
}

// lookup resolves a path relative to the API base path. The second
// result is false when no operation lives at rel; the third is false
// when one does but method does not match.
func lookup(method, rel string) (op Operation, found, methodOK bool) {
	for _, o := range Operations {
		if o.Path() == rel {
			return o, true, o.Method() == method
		}
	}
	return OpUnknown, false, false
}
