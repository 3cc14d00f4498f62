package httpsrv_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/shortenlabs/shortener/authn"
	"github.com/shortenlabs/shortener/cache"
	"github.com/shortenlabs/shortener/codegen"
	"github.com/shortenlabs/shortener/enrich"
	"github.com/shortenlabs/shortener/histsvc"
	"github.com/shortenlabs/shortener/httpsrv"
	"github.com/shortenlabs/shortener/linksvc"
	"github.com/shortenlabs/shortener/redirect"
	"github.com/shortenlabs/shortener/store/memstore"
)

const apiKey = "test-api-key-0123456789"

func newTestServer() *httptest.Server {
	st := memstore.New()
	ca := cache.NewNull()
	gen := codegen.New(codegen.DefaultAlphabet, 6)
	links := linksvc.New(st, ca, gen, time.Hour, nil)
	hist := histsvc.New(st)

	hash, err := authn.HashPassword("correct horse")
	Expect(err).NotTo(HaveOccurred())
	gate := authn.New(authn.Config{
		APIKey:            apiKey,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		JWTSecret:         "test-jwt-secret",
		SessionTTL:        time.Minute,
	}, nil)

	pipeline := redirect.New(links, st, &enrich.GeoLookup{}, redirect.Config{}, nil)

	srv := httpsrv.New(httpsrv.Deps{
		Links:    links,
		History:  hist,
		Auth:     gate,
		Redirect: pipeline,
		Store:    st,
		Cache:    ca,
	})
	return httptest.NewServer(srv)
}

func doJSON(method, url string, body interface{}, headers map[string]string) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req, err := http.NewRequest(method, url, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decodeBody(resp *http.Response, v interface{}) {
	defer resp.Body.Close()
	Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
}

var _ = Describe("HTTP surface", func() {
	var ts *httptest.Server

	BeforeEach(func() {
		ts = newTestServer()
	})

	AfterEach(func() {
		ts.Close()
	})

	It("creates a link and redirects to it", func() {
		resp := doJSON(http.MethodPost, ts.URL+"/api/shortens",
			map[string]string{"original_url": "https://example.com"},
			map[string]string{"X-API-KEY": apiKey})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var created map[string]interface{}
		decodeBody(resp, &created)
		code := created["code"].(string)
		Expect(code).To(HaveLen(6))

		redirectResp := doJSON(http.MethodGet, ts.URL+"/"+code, nil, nil)
		Expect(redirectResp.StatusCode).To(Equal(http.StatusFound))
		Expect(redirectResp.Header.Get("Location")).To(Equal("https://example.com"))
	})

	It("rejects a duplicate explicit code with 409 CODE_EXISTS", func() {
		headers := map[string]string{"X-API-KEY": apiKey}
		resp1 := doJSON(http.MethodPost, ts.URL+"/api/shortens",
			map[string]string{"original_url": "https://example.com", "code": "abc123"}, headers)
		Expect(resp1.StatusCode).To(Equal(http.StatusCreated))

		resp2 := doJSON(http.MethodPost, ts.URL+"/api/shortens",
			map[string]string{"original_url": "https://other.com", "code": "abc123"}, headers)
		Expect(resp2.StatusCode).To(Equal(http.StatusConflict))

		var body map[string]string
		decodeBody(resp2, &body)
		Expect(body["errcode"]).To(Equal("CODE_EXISTS"))
	})

	It("logs in, uses the bearer token, then logs out and loses access", func() {
		loginResp := doJSON(http.MethodPost, ts.URL+"/api/account/login",
			map[string]string{"username": "admin", "password": "correct horse"}, nil)
		Expect(loginResp.StatusCode).To(Equal(http.StatusOK))

		var login map[string]string
		decodeBody(loginResp, &login)
		Expect(login["token"]).NotTo(BeEmpty())

		bearer := map[string]string{"Authorization": "Bearer " + login["token"]}
		listResp := doJSON(http.MethodGet, ts.URL+"/api/shortens", nil, bearer)
		Expect(listResp.StatusCode).To(Equal(http.StatusOK))

		logoutResp := doJSON(http.MethodPost, ts.URL+"/api/account/logout", nil, bearer)
		Expect(logoutResp.StatusCode).To(Equal(http.StatusNoContent))

		afterLogout := doJSON(http.MethodGet, ts.URL+"/api/shortens", nil, bearer)
		Expect(afterLogout.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("enforces the API-key scheme on admin routes", func() {
		noAuth := doJSON(http.MethodGet, ts.URL+"/api/shortens", nil, nil)
		Expect(noAuth.StatusCode).To(Equal(http.StatusUnauthorized))

		wrongKey := doJSON(http.MethodGet, ts.URL+"/api/shortens", nil, map[string]string{"X-API-KEY": "nope"})
		Expect(wrongKey.StatusCode).To(Equal(http.StatusUnauthorized))

		rightKey := doJSON(http.MethodGet, ts.URL+"/api/shortens", nil, map[string]string{"X-API-KEY": apiKey})
		Expect(rightKey.StatusCode).To(Equal(http.StatusOK))
	})

	It("404s an unknown code and a disabled link, then 302s once re-enabled", func() {
		headers := map[string]string{"X-API-KEY": apiKey}

		missing := doJSON(http.MethodGet, ts.URL+"/nonexistent", nil, nil)
		Expect(missing.StatusCode).To(Equal(http.StatusNotFound))

		createResp := doJSON(http.MethodPost, ts.URL+"/api/shortens",
			map[string]string{"original_url": "https://a.example", "code": "foo"}, headers)
		Expect(createResp.StatusCode).To(Equal(http.StatusCreated))

		disableResp := doJSON(http.MethodPut, ts.URL+"/api/shortens/foo", map[string]int{"status": 1}, headers)
		Expect(disableResp.StatusCode).To(Equal(http.StatusOK))

		disabled := doJSON(http.MethodGet, ts.URL+"/foo", nil, nil)
		Expect(disabled.StatusCode).To(Equal(http.StatusNotFound))

		enableResp := doJSON(http.MethodPut, ts.URL+"/api/shortens/foo", map[string]int{"status": 0}, headers)
		Expect(enableResp.StatusCode).To(Equal(http.StatusOK))

		reenabled := doJSON(http.MethodGet, ts.URL+"/foo", nil, nil)
		Expect(reenabled.StatusCode).To(Equal(http.StatusFound))
	})

	It("records one access event per redirect, visible via /api/histories", func() {
		headers := map[string]string{"X-API-KEY": apiKey}
		createResp := doJSON(http.MethodPost, ts.URL+"/api/shortens",
			map[string]string{"original_url": "https://a.example", "code": "bar"}, headers)
		Expect(createResp.StatusCode).To(Equal(http.StatusCreated))

		for i := 0; i < 5; i++ {
			r := doJSON(http.MethodGet, ts.URL+"/bar", nil, nil)
			Expect(r.StatusCode).To(Equal(http.StatusFound))
		}

		Eventually(func() float64 {
			resp := doJSON(http.MethodGet, ts.URL+"/api/histories?code=bar", nil, headers)
			var env struct {
				Meta struct {
					Total float64 `json:"total"`
				} `json:"meta"`
			}
			decodeBody(resp, &env)
			return env.Meta.Total
		}, time.Second, 10*time.Millisecond).Should(Equal(5.0))
	})
})
