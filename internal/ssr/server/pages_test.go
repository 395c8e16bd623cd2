package server_test

import (
	"context"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server-rendered pages", Serial, func() {
	BeforeEach(func() {
		testEnv.Reset()
	})

	Context("when requesting the episodes page", func() {
		It("should render once and then serve the cached document", func() {
			By("Making the first request")
			first := testEnv.Get("/episodes")

			Expect(first.StatusCode).To(Equal(http.StatusOK))
			Expect(first.Headers.Get("Content-Type")).To(Equal("text/html; charset=utf-8"))
			Expect(first.Headers.Get("X-Render-Cache")).To(Equal("miss"))
			Expect(testEnv.Calls()).To(Equal(int64(1)))

			By("Verifying the assembled document")
			Expect(strings.HasPrefix(first.Body, "<!doctype html><html")).To(BeTrue())
			Expect(first.Body).To(ContainSubstring(`<div id="root">`))
			Expect(first.Body).To(ContainSubstring("A New Hope"))
			Expect(first.Body).To(ContainSubstring("The Empire Strikes Back"))
			Expect(first.Body).To(ContainSubstring(`window.__APOLLO_STATE__={"apollo":{"data":{"allEpisodes":[`))
			Expect(first.Body).To(ContainSubstring(`<script src="/static/bundle.js" charset="UTF-8"></script>`))
			Expect(first.Body).To(ContainSubstring("<style>"))

			By("Making the same request again")
			second := testEnv.Get("/episodes")

			Expect(second.StatusCode).To(Equal(http.StatusOK))
			Expect(second.Headers.Get("X-Render-Cache")).To(Equal("hit"))
			Expect(second.Body).To(Equal(first.Body))
			Expect(testEnv.Calls()).To(Equal(int64(1)), "cached page must not query GraphQL again")
		})

		It("should cache each query string separately", func() {
			testEnv.Get("/episodes?page=1")
			testEnv.Get("/episodes?page=2")

			Expect(testEnv.Calls()).To(Equal(int64(2)))
			Expect(testEnv.Store.Len()).To(Equal(2))
		})

		It("should forward the request cookie to GraphQL", func() {
			resp := testEnv.Request(http.MethodGet, "/episodes", map[string]string{"Cookie": "session=abc"})

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(testEnv.LastCookie.Load()).To(Equal("session=abc"))
		})
	})

	Context("when the route redirects", func() {
		It("should answer 302 without caching anything", func() {
			resp := testEnv.Get("/")

			Expect(resp.StatusCode).To(Equal(http.StatusFound))
			Expect(resp.Headers.Get("Location")).To(Equal("/episodes"))
			Expect(testEnv.Store.Len()).To(Equal(0))
			Expect(testEnv.Calls()).To(Equal(int64(0)))

			By("Repeating the request")
			again := testEnv.Get("/")
			Expect(again.StatusCode).To(Equal(http.StatusFound))
			Expect(testEnv.Store.Len()).To(Equal(0))
		})
	})

	Context("when rendering a page without data", func() {
		It("should render the route parameter", func() {
			resp := testEnv.Get("/hello/world")

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Body).To(ContainSubstring("Hello world"))
			Expect(resp.Body).To(ContainSubstring("<title>Hello</title>"))
			Expect(testEnv.Calls()).To(Equal(int64(0)))
		})
	})

	Context("when no route matches", func() {
		It("should answer 404 and serve the cached page with 200 afterwards", func() {
			first := testEnv.Get("/no/such/page")
			Expect(first.StatusCode).To(Equal(http.StatusNotFound))
			Expect(first.Body).To(ContainSubstring("Not Found"))

			second := testEnv.Get("/no/such/page")
			Expect(second.StatusCode).To(Equal(http.StatusOK))
			Expect(second.Body).To(Equal(first.Body))
		})
	})

	Context("when GraphQL fails", func() {
		It("should answer 500 and leave the cache untouched", func() {
			testEnv.FailGraphQL.Store(true)

			resp := testEnv.Get("/episodes")

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(resp.Body).To(Equal("Internal Server Error"))
			Expect(testEnv.Store.Len()).To(Equal(0))

			By("Recovering once GraphQL is back")
			testEnv.FailGraphQL.Store(false)
			ok := testEnv.Get("/episodes")
			Expect(ok.StatusCode).To(Equal(http.StatusOK))
			Expect(testEnv.Store.Len()).To(Equal(1))
		})
	})

	Context("when using other methods", func() {
		It("should reject POST on pages", func() {
			resp := testEnv.Request(http.MethodPost, "/episodes", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Context("when administering the cache", func() {
		It("should reject anonymous purges", func() {
			testEnv.Get("/hello/a")

			resp := testEnv.Request(http.MethodPost, "/_internal/cache/purge", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(testEnv.Store.Len()).To(Equal(1))
		})

		It("should purge rendered pages", func() {
			testEnv.Get("/hello/a")
			Expect(testEnv.Store.Len()).To(Equal(1))

			resp := testEnv.Request(http.MethodPost, "/_internal/cache/purge", map[string]string{
				"X-Internal-Auth": suiteAuthKey,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Body).To(ContainSubstring(`"removed":1`))

			_, ok := testEnv.Store.Get(context.Background(), "/hello/a")
			Expect(ok).To(BeFalse())
		})
	})
})
