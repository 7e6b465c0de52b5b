package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Segment is a single named step of a Path.
type Segment struct {
	Level Level  `json:"level"`
	Name  string `json:"name"`
}

// Path is the drill-down scope course → subject → grade → quarter.
// A valid path has its levels in order starting at Course, with no gaps.
type Path []Segment

var (
	ErrEmptyName    = errors.New("segment name is empty")
	ErrPathTooDeep  = fmt.Errorf("path is deeper than %d levels", MaxDepth)
	ErrLevelOrder   = errors.New("path levels out of order")
	ErrPathComplete = errors.New("path has no further level")
)

// NewPath builds a path from names, assigning levels in order.
func NewPath(names ...string) (Path, error) {
	if len(names) > MaxDepth {
		return nil, ErrPathTooDeep
	}
	p := make(Path, 0, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("level %s: %w", Level(i), ErrEmptyName)
		}
		p = append(p, Segment{Level: Level(i), Name: name})
	}
	return p, nil
}

// ParsePath splits a label such as "Math / Algebra / Grade 7" on sep and
// builds a path from the pieces.
func ParsePath(label, sep string) (Path, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Path{}, nil
	}
	return NewPath(strings.Split(label, sep)...)
}

// Valid reports whether p follows the fixed level order with no gaps.
func (p Path) Valid() error {
	if len(p) > MaxDepth {
		return ErrPathTooDeep
	}
	for i, seg := range p {
		if seg.Level != Level(i) {
			return fmt.Errorf("segment %d is %s, want %s: %w", i, seg.Level, Level(i), ErrLevelOrder)
		}
		if strings.TrimSpace(seg.Name) == "" {
			return fmt.Errorf("segment %d: %w", i, ErrEmptyName)
		}
	}
	return nil
}

// Equal compares level by level; names match case-insensitively.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i].Level != other[i].Level || !strings.EqualFold(p[i].Name, other[i].Name) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix equals the first len(prefix) segments of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Prefix returns a copy of the first n segments. n is clamped to [0, len(p)].
func (p Path) Prefix(n int) Path {
	n = max(0, min(n, len(p)))
	return p[:n].Clone()
}

func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	return append(make(Path, 0, len(p)), p...)
}

// Course returns the name of the first segment, or "" for an empty path.
func (p Path) Course() string {
	if len(p) == 0 {
		return ""
	}
	return p[0].Name
}

// NextLevel returns the level a further segment would take.
func (p Path) NextLevel() (Level, bool) {
	if len(p) >= MaxDepth {
		return 0, false
	}
	return Level(len(p)), true
}

// Append returns a new path extended by one segment at the next level.
func (p Path) Append(name string) (Path, error) {
	level, ok := p.NextLevel()
	if !ok {
		return nil, ErrPathComplete
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("level %s: %w", level, ErrEmptyName)
	}
	return append(p.Clone(), Segment{Level: level, Name: name}), nil
}

// WithCourse returns a copy of p whose course segment is renamed.
func (p Path) WithCourse(name string) Path {
	out := p.Clone()
	if len(out) > 0 {
		out[0].Name = name
	}
	return out
}

// Label joins the segment names for display, e.g. "Math → Algebra".
func (p Path) Label() string {
	names := make([]string, len(p))
	for i, seg := range p {
		names[i] = seg.Name
	}
	return strings.Join(names, " → ")
}

func (p Path) String() string {
	return p.Label()
}
