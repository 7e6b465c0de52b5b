// Package scope keeps a flat set of flashcards partitioned by the study path
// each card was created under, and the per-course paths a user drills into.
//
// A Collection is not safe for concurrent use; callers that share one across
// goroutines must serialize access.
package scope

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/conorfennell/tinithink/internal/domain"
	"github.com/conorfennell/tinithink/internal/knol"
	"github.com/conorfennell/tinithink/internal/validate"
)

// Collection holds the course registry, the active course and the cards.
type Collection struct {
	courses map[string]domain.Path
	cards   []domain.Card
	active  string
	pending string

	store  Store
	newID  func() (string, error)
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Collection.
type Option func(*Collection)

// WithStore makes every mutation go through s first.
func WithStore(s Store) Option {
	return func(c *Collection) { c.store = s }
}

// WithIDGenerator replaces the nanoid card id generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(c *Collection) { c.newID = fn }
}

// WithClock replaces time.Now for card timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collection) { c.logger = l }
}

// New returns an empty Collection.
func New(opts ...Option) *Collection {
	c := &Collection{
		courses: make(map[string]domain.Path),
		newID:   func() (string, error) { return gonanoid.New() },
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type courseForm struct {
	Name string `json:"name" validate:"notblank"`
}

type levelForm struct {
	Value string `json:"value" validate:"notblank"`
}

type cardForm struct {
	Question string `json:"question" validate:"notblank"`
	Answer   string `json:"answer" validate:"notblank"`
}

// Restore replaces the registry and cards with a persisted snapshot and
// clears the active course.
func (c *Collection) Restore(snap Snapshot) {
	c.courses = make(map[string]domain.Path, len(snap.Courses))
	for name, path := range snap.Courses {
		c.courses[name] = path.Clone()
	}
	c.cards = slices.Clone(snap.Cards)
	c.active = ""
	c.pending = ""
}

// SelectOrCreateCourse makes name the active course, registering it with a
// course-only path the first time it is seen. A name that differs from a
// registered course only in case selects that course.
func (c *Collection) SelectOrCreateCourse(ctx context.Context, name string) error {
	form := courseForm{Name: strings.TrimSpace(name)}
	if fields := validate.Struct(form); fields != nil {
		return invalid(fmt.Errorf("please type course name: %w", ErrInvalidInput), fields...)
	}

	course := c.resolveCourse(form.Name)
	if _, ok := c.courses[course]; !ok {
		path := domain.Path{{Level: domain.Course, Name: course}}
		if err := c.persist("save course "+course, func(s Store) error {
			return s.SaveCourse(ctx, course, path)
		}); err != nil {
			return err
		}
		c.courses[course] = path
		c.logger.Debug("course registered", "course", course)
	}

	c.active = course
	c.pending = ""
	return nil
}

// AdvancePath appends value at the next level of the active course's path.
func (c *Collection) AdvancePath(ctx context.Context, value string) error {
	path, ok := c.courses[c.active]
	if c.active == "" || !ok {
		return invalid(ErrNoActiveCourse)
	}
	level, ok := path.NextLevel()
	if !ok {
		return invalid(ErrPathComplete)
	}

	form := levelForm{Value: strings.TrimSpace(value)}
	if fields := validate.Struct(form); fields != nil {
		return invalid(fmt.Errorf("please enter %s: %w", strings.ToLower(level.Label()), ErrInvalidInput), fields...)
	}

	updated, err := path.Append(form.Value)
	if err != nil {
		return invalid(err)
	}
	if err := c.savePath(ctx, updated); err != nil {
		return err
	}
	c.pending = ""
	return nil
}

// ResetPathToDepth truncates the active path to index+1 segments.
// An index outside the current path is ignored.
func (c *Collection) ResetPathToDepth(ctx context.Context, index int) error {
	path, ok := c.courses[c.active]
	if !ok || index < 0 || index >= len(path) {
		return nil
	}
	if index == len(path)-1 {
		return nil
	}
	return c.savePath(ctx, path.Prefix(index+1))
}

// ClearPathKeepCourse drops every level below the course.
func (c *Collection) ClearPathKeepCourse(ctx context.Context) error {
	path, ok := c.courses[c.active]
	if !ok {
		return nil
	}
	if len(path) > 1 {
		if err := c.savePath(ctx, path.Prefix(1)); err != nil {
			return err
		}
	}
	c.pending = ""
	return nil
}

// RemoveCourse deletes a course and every card filed under it, once
// confirm approves. Unknown courses are ignored.
func (c *Collection) RemoveCourse(ctx context.Context, name string, confirm Confirmer) error {
	if _, ok := c.courses[name]; !ok {
		return nil
	}
	if confirm == nil || !confirm.Confirm(fmt.Sprintf("Remove %q and all flashcards?", name)) {
		return ErrNotConfirmed
	}
	if err := c.persist("delete course "+name, func(s Store) error {
		return s.DeleteCourse(ctx, name)
	}); err != nil {
		return err
	}

	delete(c.courses, name)
	before := len(c.cards)
	c.cards = slices.DeleteFunc(c.cards, func(card domain.Card) bool {
		return card.Path.Course() == name
	})
	if c.active == name {
		c.active = ""
		c.pending = ""
	}
	c.logger.Info("course removed", "course", name, "cards_deleted", before-len(c.cards))
	return nil
}

// AddRecord files a new card under the active path, which must reach at
// least the subject level.
func (c *Collection) AddRecord(ctx context.Context, question, answer string) (domain.Card, error) {
	form := cardForm{
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
	}
	if fields := validate.Struct(form); fields != nil {
		return domain.Card{}, invalid(fmt.Errorf("fill both fields: %w", ErrInvalidInput), fields...)
	}

	path := c.ActivePath()
	if len(path) < 2 {
		return domain.Card{}, invalid(ErrPathTooShort)
	}
	return c.insert(ctx, form, path)
}

// Import files a card under an explicit path without touching the active
// course or its path. The course is registered if needed, and the path of
// an inactive course is deepened when path extends it.
func (c *Collection) Import(ctx context.Context, path domain.Path, question, answer string) (domain.Card, error) {
	if err := path.Valid(); err != nil {
		return domain.Card{}, invalid(err)
	}
	if len(path) < 2 {
		return domain.Card{}, invalid(ErrPathTooShort)
	}
	form := cardForm{
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
	}
	if fields := validate.Struct(form); fields != nil {
		return domain.Card{}, invalid(fmt.Errorf("fill both fields: %w", ErrInvalidInput), fields...)
	}

	course := c.resolveCourse(strings.TrimSpace(path.Course()))
	path = path.WithCourse(course)

	current, ok := c.courses[course]
	deepens := course != c.active && len(path) > len(current) && path.HasPrefix(current)
	if !ok || deepens {
		if err := c.persist("save course "+course, func(s Store) error {
			return s.SaveCourse(ctx, course, path)
		}); err != nil {
			return domain.Card{}, err
		}
		c.courses[course] = path.Clone()
	}
	return c.insert(ctx, form, path)
}

// DeleteRecord removes the card with the given id. Missing ids are ignored.
func (c *Collection) DeleteRecord(ctx context.Context, id string) error {
	idx := slices.IndexFunc(c.cards, func(card domain.Card) bool { return card.ID == id })
	if idx < 0 {
		return nil
	}
	if err := c.persist("delete card "+id, func(s Store) error {
		return s.DeleteCard(ctx, id)
	}); err != nil {
		return err
	}
	c.cards = slices.Delete(c.cards, idx, idx+1)
	return nil
}

// VisibleRecords yields the cards whose path equals the active path, in
// insertion order. The sequence reads the collection each time it is ranged.
func (c *Collection) VisibleRecords() iter.Seq[domain.Card] {
	return func(yield func(domain.Card) bool) {
		active := c.ActivePath()
		if len(active) == 0 {
			return
		}
		for _, card := range c.cards {
			if !card.Path.Equal(active) {
				continue
			}
			card.Path = card.Path.Clone()
			if !yield(card) {
				return
			}
		}
	}
}

// ActivePath returns a copy of the active course's path; empty when no
// course is selected.
func (c *Collection) ActivePath() domain.Path {
	path, ok := c.courses[c.active]
	if !ok {
		return domain.Path{}
	}
	return path.Clone()
}

// ActiveCourse returns the selected course name, or "" when none is.
func (c *Collection) ActiveCourse() string {
	return c.active
}

// PendingLevel is the level the next AdvancePath would fill.
func (c *Collection) PendingLevel() (domain.Level, bool) {
	path, ok := c.courses[c.active]
	if !ok {
		return 0, false
	}
	return path.NextLevel()
}

// SetPendingValue stores the in-progress level input.
func (c *Collection) SetPendingValue(v string) {
	c.pending = v
}

// PendingValue returns the in-progress level input.
func (c *Collection) PendingValue() string {
	return c.pending
}

// Courses returns the registered course names, sorted.
func (c *Collection) Courses() []string {
	names := make([]string, 0, len(c.courses))
	for name := range c.courses {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CoursePath returns a copy of the registry path for course.
func (c *Collection) CoursePath(course string) (domain.Path, bool) {
	path, ok := c.courses[course]
	return path.Clone(), ok
}

// Records returns every card in insertion order.
func (c *Collection) Records() []domain.Card {
	return slices.Clone(c.cards)
}

// Len returns the number of cards across all courses.
func (c *Collection) Len() int {
	return len(c.cards)
}

// HasHash reports whether a card with the given content hash exists.
func (c *Collection) HasHash(hash string) bool {
	return slices.ContainsFunc(c.cards, func(card domain.Card) bool { return card.Hash == hash })
}

func (c *Collection) insert(ctx context.Context, form cardForm, path domain.Path) (domain.Card, error) {
	id, err := c.newID()
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to generate card id: %w", err)
	}

	card := domain.Card{
		ID:        id,
		Question:  form.Question,
		Answer:    form.Answer,
		Path:      path.Clone(),
		CreatedAt: c.now(),
	}
	card.Hash = knol.Hash(card)

	if err := c.persist("save card "+id, func(s Store) error {
		return s.SaveCard(ctx, card)
	}); err != nil {
		return domain.Card{}, err
	}
	c.cards = append(c.cards, card)
	return card, nil
}

func (c *Collection) savePath(ctx context.Context, path domain.Path) error {
	course := c.active
	if err := c.persist("save course "+course, func(s Store) error {
		return s.SaveCourse(ctx, course, path)
	}); err != nil {
		return err
	}
	c.courses[course] = path
	return nil
}

// resolveCourse maps name onto a registered course that matches it
// case-insensitively, preferring an exact match.
func (c *Collection) resolveCourse(name string) string {
	if _, ok := c.courses[name]; ok {
		return name
	}
	for existing := range c.courses {
		if strings.EqualFold(existing, name) {
			return existing
		}
	}
	return name
}

func (c *Collection) persist(op string, fn func(Store) error) error {
	if c.store == nil {
		return nil
	}
	if err := fn(c.store); err != nil {
		c.logger.Warn("store rejected mutation", "op", op, "error", err)
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}
