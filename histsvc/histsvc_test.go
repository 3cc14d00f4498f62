package histsvc_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/shortenlabs/shortener/cmn"
	"github.com/shortenlabs/shortener/histsvc"
	"github.com/shortenlabs/shortener/store/memstore"
)

var _ = Describe("Service", func() {
	var (
		ms  *memstore.Store
		svc *histsvc.Service
		ctx = context.Background()
	)

	BeforeEach(func() {
		ms = memstore.New()
		svc = histsvc.New(ms)
		Expect(ms.InsertEvent(ctx, cmn.AccessEvent{Code: "bar", IP: "1.1.1.1"})).To(Succeed())
		Expect(ms.InsertEvent(ctx, cmn.AccessEvent{Code: "bar", IP: "2.2.2.2"})).To(Succeed())
		Expect(ms.InsertEvent(ctx, cmn.AccessEvent{Code: "baz", IP: "3.3.3.3"})).To(Succeed())
	})

	Describe("List", func() {
		It("filters by code", func() {
			rows, total, err := svc.List(ctx, cmn.EventFilter{Code: "bar"}, cmn.Page{Page: 1, PerPage: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(2))
			Expect(rows).To(HaveLen(2))
			for _, r := range rows {
				Expect(r.Code).To(Equal("bar"))
			}
		})

		It("returns every row when unfiltered", func() {
			_, total, err := svc.List(ctx, cmn.EventFilter{}, cmn.Page{Page: 1, PerPage: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(3))
		})
	})

	Describe("DeleteMany", func() {
		It("is a no-op on an empty id list", func() {
			n, err := svc.DeleteMany(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))

			_, total, _ := svc.List(ctx, cmn.EventFilter{}, cmn.Page{Page: 1, PerPage: 10})
			Expect(total).To(Equal(3))
		})

		It("removes the named rows and leaves the rest", func() {
			rows, _, _ := svc.List(ctx, cmn.EventFilter{Code: "baz"}, cmn.Page{Page: 1, PerPage: 10})
			Expect(rows).To(HaveLen(1))

			n, err := svc.DeleteMany(ctx, []int64{rows[0].ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			_, total, _ := svc.List(ctx, cmn.EventFilter{}, cmn.Page{Page: 1, PerPage: 10})
			Expect(total).To(Equal(2))
		})
	})
})
