package api

import (
	"errors"
	"net/http"

	"github.com/thisisjab/rulezilla/fault"
	"github.com/thisisjab/rulezilla/rule"
	"github.com/thisisjab/rulezilla/rule/ast"
)

// ruleErrorCodes maps rule failures to the codes clients match on. Wrapping
// errors come before the errors they wrap.
var ruleErrorCodes = []struct {
	err  error
	code string
}{
	{rule.ErrCombineFailed, "combine_failed"},
	{rule.ErrEmptyRuleSet, "empty_rule_set"},
	{rule.ErrInvalidRuleString, "invalid_rule_string"},
	{rule.ErrInvalidAST, "invalid_ast"},
	{ast.ErrMalformedNode, "invalid_ast"},
	{rule.ErrInvalidData, "invalid_data"},
	{rule.ErrMissingAttribute, "missing_attribute"},
	{rule.ErrInvalidOperator, "invalid_operator"},
	{rule.ErrUnexpectedNodeType, "unexpected_node_type"},
}

// ruleFault turns a rule failure into a bad input fault. Errors that are not
// rule failures are returned unchanged.
func ruleFault(err error) error {
	for _, rc := range ruleErrorCodes {
		if errors.Is(err, rc.err) {
			return fault.New(fault.BadInputCode, err.Error()).
				WithMetadata(map[string]any{"error": rc.code}).
				WithOriginal(err)
		}
	}

	return err
}

func (s *server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	// Errors without a fault have UnknownCode and become internal errors.
	var f fault.Fault
	errors.As(err, &f)

	switch fault.CodeOf(err) {
	case fault.BadInputCode:
		if md, ok := f.Metadata().(fault.FieldErrorsMetadata); ok {
			// This is a 422 error since it's related to specific field
			s.writeError(w, r, http.StatusUnprocessableEntity, apiResponse{
				Success: false,
				Message: f.Message(),
				Metadata: map[string]any{
					"fields": md,
				},
			})
		} else {
			// This is a 400 as it's a bad request with no metadata or unknown metadata
			s.logger.Debug("bad request", "method", r.Method, "path", r.RequestURI, "error", f)
			s.writeError(w, r, http.StatusBadRequest, apiResponse{
				Success:  false,
				Message:  f.Message(),
				Metadata: map[string]any{"context": f.Metadata()},
			})
		}
	case fault.NotFoundCode:
		m := f.Message()
		if m == "" {
			m = "Requested resource not found."
		}

		res := apiResponse{Success: false, Message: m}

		if f.Metadata() != nil {
			res.Metadata = map[string]any{"context": f.Metadata()}
		}

		s.writeError(w, r, http.StatusNotFound, res)

	case fault.PermissionDeniedCode:
		m := f.Message()
		if m == "" {
			m = "Permission denied."
		}
		s.writeError(w, r, http.StatusForbidden, apiResponse{Success: false, Message: m})

	default:
		s.internalServerError(w, r, err)
	}
}

func (s *server) logError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal server error", "method", r.Method, "path", r.RequestURI, "remote-addr", r.RemoteAddr, "error", err)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, response apiResponse) {
	s.writeJson(w, status, response, nil) //nolint:errcheck
}

func (s *server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(w, r, err)
	s.writeError(w, r, http.StatusInternalServerError, apiResponse{Success: false, Message: "Internal server error"})
}
