package linksvc_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/shortenlabs/shortener/cache"
	"github.com/shortenlabs/shortener/cmn"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
	"github.com/shortenlabs/shortener/codegen"
	"github.com/shortenlabs/shortener/linksvc"
	"github.com/shortenlabs/shortener/store/memstore"
)

var _ = Describe("Service", func() {
	var (
		svc *linksvc.Service
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		gen := codegen.New(codegen.DefaultAlphabet, 6)
		svc = linksvc.New(memstore.New(), cache.NewNull(), gen, 0, nil)
	})

	Describe("Create", func() {
		It("rejects a malformed URL", func() {
			_, err := svc.Create(ctx, "not a url", "", "")
			Expect(cerrors.Is(err, cerrors.KindInvalidURL)).To(BeTrue())
		})

		It("creates a link with a generated code", func() {
			link, err := svc.Create(ctx, "https://example.com/page", "", "desc")
			Expect(err).NotTo(HaveOccurred())
			Expect(link.Code).To(HaveLen(6))
			Expect(link.Status).To(Equal(cmn.StatusEnabled))
		})

		It("honors an explicit code", func() {
			link, err := svc.Create(ctx, "https://example.com", "mycode", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(link.Code).To(Equal("mycode"))
		})

		It("rejects an explicit code outside the alphabet", func() {
			_, err := svc.Create(ctx, "https://example.com", "not valid!", "")
			Expect(cerrors.Is(err, cerrors.KindInvalidCode)).To(BeTrue())
		})

		It("lets exactly one concurrent create win an explicit code", func() {
			const workers = 8
			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.Create(ctx, "https://example.com", "race01", "")
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			var won, taken int
			for err := range errs {
				switch {
				case err == nil:
					won++
				case cerrors.Is(err, cerrors.KindCodeTaken):
					taken++
				}
			}
			Expect(won).To(Equal(1))
			Expect(taken).To(Equal(workers - 1))
		})

		It("returns CodeTaken when the explicit code already exists", func() {
			_, err := svc.Create(ctx, "https://example.com/a", "dupe12", "")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Create(ctx, "https://example.com/b", "dupe12", "")
			Expect(cerrors.Is(err, cerrors.KindCodeTaken)).To(BeTrue())
		})
	})

	Describe("Get", func() {
		It("returns NotFound for an absent code", func() {
			_, err := svc.Get(ctx, "missing")
			Expect(cerrors.Is(err, cerrors.KindNotFound)).To(BeTrue())
		})

		It("returns the created link", func() {
			created, err := svc.Create(ctx, "https://example.com", "abc123", "")
			Expect(err).NotTo(HaveOccurred())
			got, err := svc.Get(ctx, created.Code)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.OriginalURL).To(Equal(created.OriginalURL))
		})
	})

	Describe("Update", func() {
		It("changes the original_url and leaves the code untouched", func() {
			created, err := svc.Create(ctx, "https://example.com/old", "abc123", "")
			Expect(err).NotTo(HaveOccurred())

			newURL := "https://example.com/new"
			updated, err := svc.Update(ctx, created.Code, cmn.LinkPatch{OriginalURL: &newURL})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Code).To(Equal(created.Code))
			Expect(updated.OriginalURL).To(Equal(newURL))
		})

		It("rejects an invalid replacement URL", func() {
			created, _ := svc.Create(ctx, "https://example.com", "abc123", "")
			bad := "not a url"
			_, err := svc.Update(ctx, created.Code, cmn.LinkPatch{OriginalURL: &bad})
			Expect(cerrors.Is(err, cerrors.KindInvalidURL)).To(BeTrue())
		})
	})

	Describe("Delete and DeleteMany", func() {
		It("removes a single link", func() {
			created, _ := svc.Create(ctx, "https://example.com", "abc123", "")
			Expect(svc.Delete(ctx, created.Code)).To(Succeed())
			_, err := svc.Get(ctx, created.Code)
			Expect(cerrors.Is(err, cerrors.KindNotFound)).To(BeTrue())
		})

		It("bulk-deletes by id and reports the count", func() {
			a, _ := svc.Create(ctx, "https://example.com/a", "", "")
			b, _ := svc.Create(ctx, "https://example.com/b", "", "")
			n, err := svc.DeleteMany(ctx, []int64{a.ID, b.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})
	})

	Describe("List", func() {
		It("delegates to storage with filter and pagination applied", func() {
			_, _ = svc.Create(ctx, "https://example.com/a", "", "")
			_, _ = svc.Create(ctx, "https://example.com/b", "", "")
			links, total, err := svc.List(ctx, cmn.LinkFilter{}, cmn.Page{PerPage: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(2))
			Expect(links).To(HaveLen(1))
		})
	})
})
