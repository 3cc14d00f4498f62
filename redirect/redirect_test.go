package redirect_test

import (
	"context"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/shortenlabs/shortener/cache"
	"github.com/shortenlabs/shortener/cmn"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
	"github.com/shortenlabs/shortener/codegen"
	"github.com/shortenlabs/shortener/linksvc"
	"github.com/shortenlabs/shortener/redirect"
	"github.com/shortenlabs/shortener/store/memstore"
)

var _ = Describe("Pipeline", func() {
	var (
		ctx      context.Context
		st       *memstore.Store
		links    *linksvc.Service
		pipeline *redirect.Pipeline
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = memstore.New()
		gen := codegen.New(codegen.DefaultAlphabet, 6)
		links = linksvc.New(st, cache.NewNull(), gen, 0, nil)
		pipeline = redirect.New(links, st, nil, redirect.Config{Workers: 2, QueueSize: 16}, nil)
	})

	AfterEach(func() {
		Expect(pipeline.Close()).To(Succeed())
	})

	Describe("Resolve", func() {
		It("returns the link for an enabled code", func() {
			created, err := links.Create(ctx, "https://example.com/page", "abc123", "")
			Expect(err).NotTo(HaveOccurred())

			link, err := pipeline.Resolve(ctx, created.Code)
			Expect(err).NotTo(HaveOccurred())
			Expect(link.OriginalURL).To(Equal("https://example.com/page"))
		})

		It("returns NotFound for an absent code", func() {
			_, err := pipeline.Resolve(ctx, "missing")
			Expect(cerrors.Is(err, cerrors.KindNotFound)).To(BeTrue())
		})

		It("treats a disabled link as not found", func() {
			created, err := links.Create(ctx, "https://example.com", "abc123", "")
			Expect(err).NotTo(HaveOccurred())

			disabled := cmn.StatusDisabled
			_, err = links.Update(ctx, created.Code, cmn.LinkPatch{Status: &disabled})
			Expect(err).NotTo(HaveOccurred())

			_, err = pipeline.Resolve(ctx, created.Code)
			Expect(cerrors.Is(err, cerrors.KindNotFound)).To(BeTrue())
		})
	})

	Describe("RecordAsync", func() {
		It("persists an event off the request path", func() {
			created, err := links.Create(ctx, "https://example.com", "abc123", "")
			Expect(err).NotTo(HaveOccurred())

			pipeline.RecordAsync(created.Code, redirect.RequestMeta{
				IP:        "203.0.113.9",
				UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
				Referer:   "https://referrer.example",
			})

			Eventually(func() int {
				_, total, err := st.ListEvents(ctx, cmn.EventFilter{Code: created.Code}, cmn.Page{})
				Expect(err).NotTo(HaveOccurred())
				return total
			}).Should(Equal(1))

			events, _, err := st.ListEvents(ctx, cmn.EventFilter{Code: created.Code}, cmn.Page{})
			Expect(err).NotTo(HaveOccurred())
			e := events[0]
			Expect(e.LinkID).To(Equal(created.ID))
			Expect(e.IP).To(Equal("203.0.113.9"))
			Expect(e.Referer).To(Equal("https://referrer.example"))
			Expect(e.DeviceType).To(Equal(cmn.DevicePC))
			Expect(e.AccessedAt).NotTo(BeZero())
		})

		It("records nothing for a code that no longer resolves", func() {
			pipeline.RecordAsync("gone99", redirect.RequestMeta{IP: "203.0.113.9"})

			Consistently(func() int {
				_, total, err := st.ListEvents(ctx, cmn.EventFilter{}, cmn.Page{})
				Expect(err).NotTo(HaveOccurred())
				return total
			}).Should(BeZero())
		})

		It("lists one code's events in non-decreasing accessed_at order when sorted ascending", func() {
			created, err := links.Create(ctx, "https://example.com", "abc123", "")
			Expect(err).NotTo(HaveOccurred())

			const hits = 5
			for i := 0; i < hits; i++ {
				pipeline.RecordAsync(created.Code, redirect.RequestMeta{IP: "198.51.100.7"})
			}

			Eventually(func() int {
				_, total, err := st.ListEvents(ctx, cmn.EventFilter{Code: created.Code}, cmn.Page{})
				Expect(err).NotTo(HaveOccurred())
				return total
			}).Should(Equal(hits))

			events, _, err := st.ListEvents(ctx, cmn.EventFilter{Code: created.Code},
				cmn.Page{PerPage: hits, SortBy: "accessed_at", Order: cmn.SortAsc})
			Expect(err).NotTo(HaveOccurred())
			for i := 1; i < len(events); i++ {
				Expect(events[i].AccessedAt.Before(events[i-1].AccessedAt)).To(BeFalse())
			}
		})
	})
})

var _ = Describe("ClientIP", func() {
	It("uses the direct peer when no trusted header is configured", func() {
		r := httptest.NewRequest("GET", "/abc123", nil)
		r.RemoteAddr = "192.0.2.4:51234"
		Expect(redirect.ClientIP(r, "")).To(Equal("192.0.2.4"))
	})

	It("prefers the first value of the configured trusted header", func() {
		r := httptest.NewRequest("GET", "/abc123", nil)
		r.RemoteAddr = "192.0.2.4:51234"
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		Expect(redirect.ClientIP(r, "X-Forwarded-For")).To(Equal("203.0.113.9"))
	})

	It("falls back to the peer when the trusted header is absent", func() {
		r := httptest.NewRequest("GET", "/abc123", nil)
		r.RemoteAddr = "192.0.2.4:51234"
		Expect(redirect.ClientIP(r, "X-Forwarded-For")).To(Equal("192.0.2.4"))
	})

	It("passes a portless peer address through unchanged", func() {
		r := httptest.NewRequest("GET", "/abc123", nil)
		r.RemoteAddr = "192.0.2.4"
		Expect(redirect.ClientIP(r, "")).To(Equal("192.0.2.4"))
	})
})
