package domain

import "fmt"

// Level is one tier of a study path. Levels have a fixed order:
// course, subject, grade, quarter.
type Level int

const (
	Course Level = iota
	Subject
	Grade
	Quarter
)

// MaxDepth is the number of levels a path can hold.
const MaxDepth = int(Quarter) + 1

var levelNames = [MaxDepth]string{"course", "subject", "grade", "quarter"}

var levelLabels = [MaxDepth]string{"COURSE", "SUBJECT", "GRADE LEVEL", "QUARTER"}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Label is the display name used in prompts, e.g. "GRADE LEVEL".
func (l Level) Label() string {
	if !l.Valid() {
		return l.String()
	}
	return levelLabels[l]
}

func (l Level) Valid() bool {
	return l >= Course && l <= Quarter
}

// Next returns the level that follows l, or false if l is the last one.
func (l Level) Next() (Level, bool) {
	if !l.Valid() || l == Quarter {
		return 0, false
	}
	return l + 1, true
}

// ParseLevel maps a lowercase level name back to its Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
