package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/conorfennell/tinithink/internal/domain"
	"github.com/conorfennell/tinithink/internal/scope"
	"github.com/conorfennell/tinithink/internal/web"
)

type failingStore struct{}

var errDown = errors.New("database is down")

func (failingStore) SaveCourse(context.Context, string, domain.Path) error { return errDown }
func (failingStore) DeleteCourse(context.Context, string) error            { return errDown }
func (failingStore) SaveCard(context.Context, domain.Card) error           { return errDown }
func (failingStore) DeleteCard(context.Context, string) error              { return errDown }
func (failingStore) Load(context.Context) (scope.Snapshot, error)          { return scope.Snapshot{}, errDown }

var _ = Describe("Server", func() {
	var server *web.Server

	BeforeEach(func() {
		server = web.NewServer(scope.New(), []string{"http://localhost:5173"})
	})

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, target, nil)
		} else {
			req = httptest.NewRequest(method, target, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec
	}

	decodeState := func(rec *httptest.ResponseRecorder) web.State {
		var st web.State
		Expect(json.NewDecoder(rec.Body).Decode(&st)).To(Succeed())
		return st
	}

	Context("when building a path and adding a card", func() {
		BeforeEach(func() {
			Expect(do("POST", "/api/courses", `{"name":"Math"}`).Code).To(Equal(http.StatusOK))
			Expect(do("POST", "/api/path/advance", `{"value":"Algebra"}`).Code).To(Equal(http.StatusOK))
		})

		It("should show the card under the active path", func() {
			rec := do("POST", "/api/cards", `{"question":"2+2?","answer":"4"}`)
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var card domain.Card
			Expect(json.NewDecoder(rec.Body).Decode(&card)).To(Succeed())
			Expect(card.ID).NotTo(BeEmpty())
			Expect(card.Path.Label()).To(Equal("Math → Algebra"))

			st := decodeState(do("GET", "/api/state", ""))
			Expect(st.ActiveCourse).To(Equal("Math"))
			Expect(st.PendingLevel).To(Equal("grade"))
			Expect(st.Cards).To(HaveLen(1))
			Expect(st.Cards[0].Question).To(Equal("2+2?"))
		})

		It("should hide the card after resetting to the course", func() {
			do("POST", "/api/cards", `{"question":"2+2?","answer":"4"}`)

			rec := do("POST", "/api/path/reset", `{"index":0}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			st := decodeState(rec)
			Expect(st.ActivePath).To(HaveLen(1))
			Expect(st.Cards).To(BeEmpty())
			Expect(st.CanAddCards).To(BeFalse())
		})

		It("should delete a card idempotently", func() {
			rec := do("POST", "/api/cards", `{"question":"2+2?","answer":"4"}`)
			var card domain.Card
			Expect(json.NewDecoder(rec.Body).Decode(&card)).To(Succeed())

			Expect(do("DELETE", "/api/cards/"+card.ID, "").Code).To(Equal(http.StatusOK))
			rec = do("DELETE", "/api/cards/"+card.ID, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decodeState(rec).Cards).To(BeEmpty())
		})

		It("should require confirmation to remove a course", func() {
			Expect(do("DELETE", "/api/courses/Math", "").Code).To(Equal(http.StatusConflict))

			rec := do("DELETE", "/api/courses/Math?confirm=true", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			st := decodeState(rec)
			Expect(st.Courses).To(BeEmpty())
			Expect(st.ActiveCourse).To(BeEmpty())
		})

		It("should clear back to the course", func() {
			rec := do("POST", "/api/path/clear", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decodeState(rec).PathLabel).To(Equal("Math"))
		})

		It("should render the index page", func() {
			do("POST", "/api/cards", `{"question":"Square root of 16?","answer":"4"}`)

			rec := do("GET", "/", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("text/html"))
			Expect(rec.Body.String()).To(ContainSubstring("Square root of 16?"))
			Expect(rec.Body.String()).To(ContainSubstring("Math → Algebra"))
		})
	})

	Context("when input is rejected", func() {
		It("should refuse a card without a subject", func() {
			do("POST", "/api/courses", `{"name":"Math"}`)
			rec := do("POST", "/api/cards", `{"question":"q","answer":"a"}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("set course and subject first"))
		})

		It("should report blank fields by name", func() {
			rec := do("POST", "/api/courses", `{"name":"  "}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			var body struct {
				Fields []struct {
					Field string `json:"field"`
				} `json:"fields"`
			}
			Expect(json.NewDecoder(rec.Body).Decode(&body)).To(Succeed())
			Expect(body.Fields).To(HaveLen(1))
			Expect(body.Fields[0].Field).To(Equal("name"))
		})

		It("should reject malformed JSON and unknown fields", func() {
			Expect(do("POST", "/api/courses", `{"name":`).Code).To(Equal(http.StatusBadRequest))
			Expect(do("POST", "/api/courses", `{"course":"Math"}`).Code).To(Equal(http.StatusBadRequest))
		})

		It("should require an index to reset", func() {
			Expect(do("POST", "/api/path/reset", `{}`).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("when the store fails", func() {
		BeforeEach(func() {
			server = web.NewServer(scope.New(scope.WithStore(failingStore{})), nil)
		})

		It("should answer with a bad gateway and keep state", func() {
			rec := do("POST", "/api/courses", `{"name":"Math"}`)
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			Expect(rec.Body.String()).To(ContainSubstring("database is down"))

			Expect(decodeState(do("GET", "/api/state", "")).Courses).To(BeEmpty())
		})
	})

	It("should answer CORS preflight for allowed origins", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/cards", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:5173"))
	})
})
