package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client", func() {
	var (
		ctx context.Context
		mux *http.ServeMux
		srv *httptest.Server
		c   *Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		mux = http.NewServeMux()
		srv = httptest.NewServer(mux)
		c = New(srv.URL)
	})

	AfterEach(func() {
		srv.Close()
	})

	Describe("sessions", func() {
		It("creates a session and returns its id", func() {
			mux.HandleFunc("POST /api/session/new", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var body map[string]string
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body).To(HaveKeyWithValue("name", "trip to beijing"))
				fmt.Fprint(w, `{"success": true, "session_id": "sess-42"}`)
			})

			id, err := c.CreateSession(ctx, "trip to beijing")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("sess-42"))
		})

		It("lists sessions with the include_empty flag", func() {
			mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Query().Get("include_empty")).To(Equal("true"))
				fmt.Fprint(w, `{"success": true, "sessions": [{"session_id": "a", "name": "first"}, {"session_id": "b", "name": "second"}]}`)
			})

			sessions, err := c.ListSessions(ctx, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(2))
			Expect(sessions[0].ID).To(Equal("a"))
			Expect(sessions[1].Name).To(Equal("second"))
		})

		It("renames and deletes sessions", func() {
			mux.HandleFunc("PUT /api/session/a/name", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var body map[string]string
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body).To(HaveKeyWithValue("name", "renamed"))
				fmt.Fprint(w, `{"success": true}`)
			})
			mux.HandleFunc("DELETE /api/session/a", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"success": true}`)
			})

			Expect(c.RenameSession(ctx, "a", "renamed")).To(Succeed())
			Expect(c.DeleteSession(ctx, "a")).To(Succeed())
		})

		It("round-trips the session model", func() {
			mux.HandleFunc("PUT /api/session/a/model", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"success": true, "model_id": "gpt-4o-mini"}`)
			})
			mux.HandleFunc("GET /api/session/a/model", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"success": true, "model_id": "gpt-4o-mini"}`)
			})

			Expect(c.SetSessionModel(ctx, "a", "gpt-4o-mini")).To(Succeed())
			model, err := c.SessionModel(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(model).To(Equal("gpt-4o-mini"))
		})

		It("surfaces a success=false envelope as an error", func() {
			mux.HandleFunc("DELETE /api/session/missing", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"success": false, "error": "session not found"}`)
			})

			err := c.DeleteSession(ctx, "missing")
			Expect(err).To(MatchError(ContainSubstring("session not found")))
		})

		It("surfaces a non-2xx status with its body", func() {
			mux.HandleFunc("POST /api/session/new", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"detail": "service degraded"}`)
			})

			_, err := c.CreateSession(ctx, "")
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("service degraded")))
		})
	})

	Describe("models", func() {
		It("lists available models", func() {
			mux.HandleFunc("GET /api/models", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"success": true, "models": [{"model_id": "gpt-4o-mini", "name": "GPT-4o Mini", "provider": "openai"}]}`)
			})

			models, err := c.ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(1))
			Expect(models[0].Provider).To(Equal("openai"))
		})
	})

	Describe("cities", func() {
		It("lists cities with region and tag filters", func() {
			mux.HandleFunc("GET /api/cities", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Query().Get("region")).To(Equal("华东"))
				Expect(r.URL.Query().Get("tags")).To(Equal("美食,历史文化"))
				fmt.Fprint(w, `{"success": true, "cities": [{"id": "hangzhou", "name": "杭州", "region": "华东", "tags": ["美食"]}]}`)
			})

			cities, err := c.ListCities(ctx, "华东", []string{"美食", "历史文化"})
			Expect(err).NotTo(HaveOccurred())
			Expect(cities).To(HaveLen(1))
			Expect(cities[0].ID).To(Equal("hangzhou"))
		})

		It("fetches attractions, regions and tags", func() {
			mux.HandleFunc("GET /api/cities/beijing/attractions", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"success": true, "attractions": [{"name": "故宫", "category": "历史"}]}`)
			})
			mux.HandleFunc("GET /api/regions", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"success": true, "regions": ["华北", "华东"]}`)
			})
			mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"success": true, "tags": ["美食"]}`)
			})

			attractions, err := c.Attractions(ctx, "beijing")
			Expect(err).NotTo(HaveOccurred())
			Expect(attractions[0].Name).To(Equal("故宫"))

			regions, err := c.Regions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(regions).To(ConsistOf("华北", "华东"))

			tags, err := c.Tags(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tags).To(ConsistOf("美食"))
		})
	})

	Describe("health", func() {
		It("succeeds on a healthy backend", func() {
			mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"status": "ok"}`)
			})

			Expect(c.Health(ctx)).To(Succeed())
		})

		It("fails on an unreachable backend", func() {
			srv.Close()
			Expect(c.Health(ctx)).NotTo(Succeed())
		})
	})
})
