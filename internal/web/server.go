package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/rs/cors"

	"github.com/conorfennell/tinithink/internal/domain"
	"github.com/conorfennell/tinithink/internal/scope"
	"github.com/conorfennell/tinithink/internal/validate"
)

//go:embed all:templates
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

// Server holds the dependencies for the HTTP server. Every request that
// touches the collection holds mu for its whole duration.
type Server struct {
	mu      sync.Mutex
	coll    *scope.Collection
	router  *http.ServeMux
	handler http.Handler
	logger  *slog.Logger
}

// NewServer creates and configures a new server around coll.
func NewServer(coll *scope.Collection, allowedOrigins []string) *Server {
	s := &Server{
		coll:   coll,
		router: http.NewServeMux(),
		logger: slog.Default(),
	}
	s.routes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           3600,
	}).Handler(s.router)
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /{$}", s.handleIndex())
	s.router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	s.router.HandleFunc("GET /api/state", s.handleGetState())
	s.router.HandleFunc("POST /api/courses", s.handleSelectCourse())
	s.router.HandleFunc("DELETE /api/courses/{name}", s.handleRemoveCourse())
	s.router.HandleFunc("POST /api/path/advance", s.handleAdvancePath())
	s.router.HandleFunc("POST /api/path/reset", s.handleResetPath())
	s.router.HandleFunc("POST /api/path/clear", s.handleClearPath())
	s.router.HandleFunc("POST /api/cards", s.handleAddCard())
	s.router.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard())
}

// State is the view of the collection returned by every API call.
type State struct {
	ActiveCourse string        `json:"active_course"`
	ActivePath   domain.Path   `json:"active_path"`
	PathLabel    string        `json:"path_label"`
	PendingLevel string        `json:"pending_level,omitempty"`
	CanAddCards  bool          `json:"can_add_cards"`
	Courses      []string      `json:"courses"`
	Cards        []domain.Card `json:"cards"`
}

// state must be called with mu held.
func (s *Server) state() State {
	path := s.coll.ActivePath()
	st := State{
		ActiveCourse: s.coll.ActiveCourse(),
		ActivePath:   path,
		PathLabel:    path.Label(),
		CanAddCards:  len(path) >= 2,
		Courses:      s.coll.Courses(),
		Cards:        slices.Collect(s.coll.VisibleRecords()),
	}
	if level, ok := s.coll.PendingLevel(); ok {
		st.PendingLevel = level.String()
	}
	if st.Cards == nil {
		st.Cards = []domain.Card{}
	}
	return st
}

// handleIndex renders the breadcrumb and the visible cards.
func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		st := s.state()
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ExecuteTemplate(w, "index", st); err != nil {
			s.logger.Error("Error rendering index", "error", err)
		}
	}
}

func (s *Server) handleGetState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeJSON(w, http.StatusOK, s.state())
	}
}

func (s *Server) handleSelectCourse() http.HandlerFunc {
	type request struct {
		Name string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !s.decode(w, r, &req) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.coll.SelectOrCreateCourse(r.Context(), req.Name); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.state())
	}
}

// handleRemoveCourse needs ?confirm=true; the query flag is the
// confirmation prompt's answer.
func (s *Server) handleRemoveCourse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

		s.mu.Lock()
		defer s.mu.Unlock()
		err := s.coll.RemoveCourse(r.Context(), name, scope.ConfirmFunc(func(string) bool {
			return confirmed
		}))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.state())
	}
}

func (s *Server) handleAdvancePath() http.HandlerFunc {
	type request struct {
		Value string `json:"value"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !s.decode(w, r, &req) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.coll.SetPendingValue(req.Value)
		if err := s.coll.AdvancePath(r.Context(), req.Value); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.state())
	}
}

func (s *Server) handleResetPath() http.HandlerFunc {
	type request struct {
		Index *int `json:"index"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !s.decode(w, r, &req) {
			return
		}
		if req.Index == nil {
			s.writeError(w, &scope.ValidationError{
				Err:    scope.ErrInvalidInput,
				Fields: []validate.FieldError{{Field: "index", Message: "index is required"}},
			})
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.coll.ResetPathToDepth(r.Context(), *req.Index); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.state())
	}
}

func (s *Server) handleClearPath() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.coll.ClearPathKeepCourse(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.state())
	}
}

func (s *Server) handleAddCard() http.HandlerFunc {
	type request struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !s.decode(w, r, &req) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		card, err := s.coll.AddRecord(r.Context(), req.Question, req.Answer)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.coll.DeleteRecord(r.Context(), r.PathValue("id")); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.state())
	}
}

type errorResponse struct {
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields,omitempty"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not decode request"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		verr *scope.ValidationError
		perr *scope.PersistenceError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, scope.ErrNotConfirmed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &perr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: perr.Error()})
	default:
		s.logger.Error("Unhandled error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
