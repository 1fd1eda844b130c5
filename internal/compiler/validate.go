package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/kforge/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrNoGraph         = "E200" // request has no graph
	ErrNoTask          = "E201" // request has no task metadata
	ErrParamIndex      = "E202" // param node refers to an undeclared parameter
	ErrArgCount        = "E203" // known arguments do not match the signature
	ErrArgKind         = "E204" // known argument does not match its parameter
	ErrDuplicateCallee = "E205" // two callees share a name
	ErrMalformedGraph  = "E206" // graph fails ir.Verify
)

// ValidationError represents one problem with a compilation request.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// RequestError carries every validation error of a rejected request.
type RequestError struct {
	Errors []ValidationError
}

func (e *RequestError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return "invalid compilation request: " + strings.Join(msgs, "; ")
}

// IsRequestError reports whether err is a RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// Validate checks a request before compilation.
// Returns all errors found (does not fail-fast).
func Validate(req Request) []ValidationError {
	var errs []ValidationError

	// E200, E201: required inputs
	if req.Graph == nil {
		errs = append(errs, ValidationError{Field: "graph", Message: "graph is required", Code: ErrNoGraph})
	}
	if req.Task == nil {
		errs = append(errs, ValidationError{Field: "task", Message: "task metadata is required", Code: ErrNoTask})
	}
	if req.Graph == nil {
		return errs
	}

	errs = append(errs, validateGraph("graph", req.Graph)...)

	// E203, E204: known arguments
	if req.Args != nil {
		if len(req.Args) != len(req.Graph.Params) {
			errs = append(errs, ValidationError{
				Field:   "args",
				Message: fmt.Sprintf("%d arguments for %d parameters", len(req.Args), len(req.Graph.Params)),
				Code:    ErrArgCount,
			})
		} else {
			for i, arg := range req.Args {
				if msg := checkArg(req.Graph.Params[i], arg); msg != "" {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("args[%d]", i),
						Message: msg,
						Code:    ErrArgKind,
					})
				}
			}
		}
	}

	// E205: callee names are call targets and must be unique
	seen := map[string]bool{req.Graph.Name: true}
	for i, c := range req.Callees {
		field := fmt.Sprintf("callees[%d]", i)
		if seen[c.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("function %q is defined twice", c.Name),
				Code:    ErrDuplicateCallee,
			})
			continue
		}
		seen[c.Name] = true
		errs = append(errs, validateGraph(field, c)...)
	}

	return errs
}

func validateGraph(field string, g *ir.Graph) []ValidationError {
	var errs []ValidationError

	// E202: every param node is declared
	for _, p := range g.NodesOf(ir.OpParam) {
		if p.Index < 0 || p.Index >= len(g.Params) {
			errs = append(errs, ValidationError{
				Field:   field + ".params",
				Message: fmt.Sprintf("%s refers to parameter %d of %d", p.ID(), p.Index, len(g.Params)),
				Code:    ErrParamIndex,
			})
		}
	}

	// E206: structural well-formedness
	if err := ir.Verify(g); err != nil {
		errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrMalformedGraph})
	}
	return errs
}

func checkArg(p ir.ParamInfo, arg ir.Argument) string {
	switch a := arg.(type) {
	case nil:
		return ""
	case ir.Scalar:
		if p.Kind == ir.KindObject {
			return fmt.Sprintf("scalar %s for %s parameter %q", a.Value.Kind(), p.Kind, p.Name)
		}
	case *ir.Array:
		if !p.IsArray() {
			return fmt.Sprintf("array for %s parameter %q", p.Kind, p.Name)
		}
		if a.Elem != p.Elem {
			return fmt.Sprintf("%s array for %s[] parameter %q", a.Elem, p.Elem, p.Name)
		}
	case *ir.Object, ir.Null, *ir.Atomic:
		if p.Kind != ir.KindObject {
			return fmt.Sprintf("reference for %s parameter %q", p.Kind, p.Name)
		}
	}
	return ""
}
