package gormstore_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/conorfennell/tinithink/internal/domain"
	"github.com/conorfennell/tinithink/internal/scope"
	"github.com/conorfennell/tinithink/internal/storage/gormstore"
)

var _ = Describe("Store", func() {
	var (
		store *gormstore.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		store, err = gormstore.Open(gormstore.DriverSQLite, filepath.Join(GinkgoT().TempDir(), "gorm.db"))
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("should reject an unknown driver", func() {
		_, err := gormstore.Open("mysql", "")
		Expect(err).To(MatchError(ContainSubstring("unsupported gorm driver")))
	})

	Context("when a collection writes through it", func() {
		var coll *scope.Collection

		BeforeEach(func() {
			coll = scope.New(scope.WithStore(store))
			for _, course := range []string{"Math", "History"} {
				Expect(coll.SelectOrCreateCourse(ctx, course)).To(Succeed())
				Expect(coll.AdvancePath(ctx, "Intro")).To(Succeed())
				_, err := coll.AddRecord(ctx, course+" question", "answer")
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should load the same courses and cards", func() {
			snap, err := store.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Courses).To(HaveLen(2))
			Expect(snap.Courses["Math"]).To(HaveLen(2))
			Expect(snap.Cards).To(HaveLen(2))
			Expect(snap.Cards[0].Question).To(Equal("Math question"))
			Expect(snap.Cards[1].Path.Course()).To(Equal("History"))
		})

		It("should keep the registry path current", func() {
			Expect(coll.AdvancePath(ctx, "Grade 9")).To(Succeed())
			Expect(coll.ResetPathToDepth(ctx, 0)).To(Succeed())
			Expect(coll.AdvancePath(ctx, "Rome")).To(Succeed())

			snap, err := store.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Courses["History"].Label()).To(Equal("History → Rome"))
		})

		It("should cascade a course removal", func() {
			Expect(coll.RemoveCourse(ctx, "Math", scope.Approve)).To(Succeed())

			snap, err := store.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Courses).NotTo(HaveKey("Math"))
			Expect(snap.Cards).To(HaveLen(1))
			Expect(snap.Cards[0].Path.Course()).To(Equal("History"))
		})

		It("should delete a single card idempotently", func() {
			id := coll.Records()[0].ID
			Expect(store.DeleteCard(ctx, id)).To(Succeed())
			Expect(store.DeleteCard(ctx, id)).To(Succeed())

			snap, err := store.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Cards).To(HaveLen(1))
		})

		It("should reject a duplicate card id", func() {
			card := coll.Records()[0]
			Expect(store.SaveCard(ctx, card)).NotTo(Succeed())
		})
	})

	It("should upsert sources", func() {
		Expect(store.RecordSource(ctx, "./decks", "local")).To(Succeed())
		Expect(store.RecordSource(ctx, "./decks", "local")).To(Succeed())

		sources, err := store.ListSources(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(HaveLen(1))
		Expect(sources[0].Kind).To(Equal("local"))
		Expect(sources[0].LastImported.IsZero()).To(BeFalse())
	})

	Context("with a domain path", func() {
		It("should round-trip levels", func() {
			path, err := domain.NewPath("Math", "Algebra", "Grade 7", "Q1")
			Expect(err).NotTo(HaveOccurred())
			Expect(store.SaveCourse(ctx, "Math", path)).To(Succeed())

			snap, err := store.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Courses["Math"][3].Level).To(Equal(domain.Quarter))
		})
	})
})
