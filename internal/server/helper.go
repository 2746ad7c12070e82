package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// log field names the Stackdriver logging agent picks up as structured fields
const (
	LogFieldRequestID   = "requestId"
	LogFieldHTTPRequest = "httpRequest"
)

func (s *Server) setContentTypeJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
}

func (s *Server) writeJSON(w http.ResponseWriter, d any) {
	s.setContentTypeJSON(w)
	err := json.NewEncoder(w).Encode(d)
	if err != nil {
		s.log.Error(err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, statusCode int, err error, alternativeMessage ...string) {
	errMsg := err.Error()
	s.requestLogger(r, statusCode).Errorf("error: %s", errMsg)

	s.setContentTypeJSON(w)
	w.WriteHeader(statusCode)

	if len(alternativeMessage) > 0 {
		errMsg = strings.Join(alternativeMessage, " ")
	}
	s.writeJSON(w, map[string]string{"error": errMsg})
}

func (s *Server) requestLogger(r *http.Request, status ...int) *logrus.Entry {
	httpRequest := map[string]any{
		"requestMethod": r.Method,
		"requestUrl":    r.URL.EscapedPath(),
	}
	if len(status) > 0 {
		httpRequest["status"] = status[0]
	}
	return s.log.WithFields(logrus.Fields{
		LogFieldRequestID:   middleware.GetReqID(r.Context()),
		LogFieldHTTPRequest: httpRequest,
	})
}
