package scope

import (
	"context"

	"github.com/conorfennell/tinithink/internal/domain"
)

// Store persists collection mutations. Every method is called before the
// matching in-memory change; a returned error cancels that change.
type Store interface {
	SaveCourse(ctx context.Context, course string, path domain.Path) error
	DeleteCourse(ctx context.Context, course string) error
	SaveCard(ctx context.Context, card domain.Card) error
	DeleteCard(ctx context.Context, id string) error
	Load(ctx context.Context) (Snapshot, error)
}

// Snapshot is the persisted registry and cards, used to seed a Collection.
type Snapshot struct {
	Courses map[string]domain.Path
	Cards   []domain.Card
}

// Confirmer asks the user to approve a destructive operation.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a plain function to a Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

// Approve is a Confirmer that accepts every prompt.
var Approve Confirmer = ConfirmFunc(func(string) bool { return true })
