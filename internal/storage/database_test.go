package storage_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/conorfennell/tinithink/internal/domain"
	"github.com/conorfennell/tinithink/internal/scope"
	"github.com/conorfennell/tinithink/internal/storage"
)

var _ = Describe("DB", func() {
	var (
		db      *storage.DB
		ctx     context.Context
		algebra domain.Path
	)

	BeforeEach(func() {
		var err error
		db, err = storage.Open(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()

		algebra, err = domain.NewPath("Math", "Algebra")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	card := func(id string, path domain.Path) domain.Card {
		return domain.Card{
			ID:        id,
			Question:  "question " + id,
			Answer:    "answer " + id,
			Path:      path,
			Hash:      "hash-" + id,
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	Context("when saving courses", func() {
		It("should replace the stored path on a second save", func() {
			Expect(db.SaveCourse(ctx, "Math", algebra.Prefix(1))).To(Succeed())
			Expect(db.SaveCourse(ctx, "Math", algebra)).To(Succeed())

			snap, err := db.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Courses).To(HaveLen(1))
			Expect(snap.Courses["Math"].Equal(algebra)).To(BeTrue())
			Expect(snap.Courses["Math"][1].Level).To(Equal(domain.Subject))
		})
	})

	Context("when saving cards", func() {
		It("should load them back in insertion order with their paths", func() {
			Expect(db.SaveCard(ctx, card("b", algebra))).To(Succeed())
			Expect(db.SaveCard(ctx, card("a", algebra))).To(Succeed())

			snap, err := db.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Cards).To(HaveLen(2))
			Expect(snap.Cards[0].ID).To(Equal("b"))
			Expect(snap.Cards[1].Question).To(Equal("question a"))
			Expect(snap.Cards[1].Path.Equal(algebra)).To(BeTrue())
		})

		It("should reject a duplicate id", func() {
			Expect(db.SaveCard(ctx, card("a", algebra))).To(Succeed())
			Expect(db.SaveCard(ctx, card("a", algebra))).NotTo(Succeed())
		})

		It("should treat deleting a missing card as success", func() {
			Expect(db.SaveCard(ctx, card("a", algebra))).To(Succeed())
			Expect(db.DeleteCard(ctx, "a")).To(Succeed())
			Expect(db.DeleteCard(ctx, "a")).To(Succeed())

			snap, err := db.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Cards).To(BeEmpty())
		})
	})

	Context("when deleting a course", func() {
		It("should cascade to that course's cards only", func() {
			history, err := domain.NewPath("History", "Rome")
			Expect(err).NotTo(HaveOccurred())

			Expect(db.SaveCourse(ctx, "Math", algebra)).To(Succeed())
			Expect(db.SaveCourse(ctx, "History", history)).To(Succeed())
			Expect(db.SaveCard(ctx, card("m", algebra))).To(Succeed())
			Expect(db.SaveCard(ctx, card("h", history))).To(Succeed())

			Expect(db.DeleteCourse(ctx, "Math")).To(Succeed())

			snap, err := db.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Courses).To(HaveKey("History"))
			Expect(snap.Courses).NotTo(HaveKey("Math"))
			Expect(snap.Cards).To(HaveLen(1))
			Expect(snap.Cards[0].ID).To(Equal("h"))
		})
	})

	Context("when backing a collection", func() {
		It("should restore what the collection wrote", func() {
			coll := scope.New(scope.WithStore(db))
			Expect(coll.SelectOrCreateCourse(ctx, "Math")).To(Succeed())
			Expect(coll.AdvancePath(ctx, "Algebra")).To(Succeed())
			_, err := coll.AddRecord(ctx, "2+2?", "4")
			Expect(err).NotTo(HaveOccurred())

			snap, err := db.Load(ctx)
			Expect(err).NotTo(HaveOccurred())

			restored := scope.New()
			restored.Restore(snap)
			Expect(restored.SelectOrCreateCourse(ctx, "Math")).To(Succeed())
			Expect(restored.ActivePath().Equal(algebra)).To(BeTrue())

			var questions []string
			for c := range restored.VisibleRecords() {
				questions = append(questions, c.Question)
			}
			Expect(questions).To(Equal([]string{"2+2?"}))
		})
	})

	Context("when recording sources", func() {
		It("should upsert by path", func() {
			Expect(db.RecordSource(ctx, "./decks", "local")).To(Succeed())
			Expect(db.RecordSource(ctx, "./decks", "local")).To(Succeed())
			Expect(db.RecordSource(ctx, "https://example.com/decks.git", "git")).To(Succeed())

			sources, err := db.ListSources(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sources).To(HaveLen(2))
			Expect(sources[0].Path).To(Equal("./decks"))
			Expect(sources[0].LastImported.IsZero()).To(BeFalse())
			Expect(sources[1].Kind).To(Equal("git"))
		})
	})
})
