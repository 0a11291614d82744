package api

import "net/http"

// healthCheckHandler reports the SQL dialect the server renders filters for.
// It does not touch storage.
func (s *server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "OK",
		Data:    map[string]string{"dialect": s.services.Dialect.Name()},
	}, nil)
}
