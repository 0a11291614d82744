package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/thisisjab/sieve/fault"
	"github.com/thisisjab/sieve/filter"
	"github.com/thisisjab/sieve/querier"
)

func (s *server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if m, ok := filterErrorMessage(err); ok {
		err = fault.New(fault.BadInputCode, "").
			WithMetadata(fault.FieldErrorsMetadata{"filter": []string{m}}).
			WithOriginal(err)
	}

	var f fault.Fault
	if errors.As(err, &f) {
		switch f.Code() {
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
			s.internalServerError(w, r, f)
		}

		return
	}

	s.internalServerError(w, r, err)
}

// filterErrorMessage returns a client facing message for errors caused by the
// filter string itself.
func filterErrorMessage(err error) (string, bool) {
	var delimiterErr *filter.DelimiterError
	var unknownFieldErr *filter.UnknownFieldError
	var operatorErr *querier.UnsupportedOperatorError

	switch {
	case errors.Is(err, filter.ErrUnbalancedParentheses):
		return "Parentheses are not balanced.", true
	case errors.As(err, &delimiterErr):
		return fmt.Sprintf("Too many column delimiters at position %d.", delimiterErr.Position), true
	case errors.As(err, &unknownFieldErr):
		return fmt.Sprintf("Field `%s` does not exist.", unknownFieldErr.Field), true
	case errors.Is(err, filter.ErrFilterTooLong):
		return "Filter is too long.", true
	case errors.As(err, &operatorErr):
		return fmt.Sprintf("Operator `%s` is not supported.", operatorErr.Operator), true
	}

	return "", false
}

func (s *server) logError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal server error", "request_id", requestIDFrom(r.Context()), "method", r.Method, "path", r.RequestURI, "remote-addr", r.RemoteAddr, "error", err)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, response apiResponse) {
	s.writeJson(w, status, response, nil) //nolint:errcheck
}

func (s *server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(w, r, err)
	s.writeError(w, r, http.StatusInternalServerError, apiResponse{Success: false, Message: "Internal server error"})
}
