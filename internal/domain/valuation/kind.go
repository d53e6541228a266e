package valuation

import (
	"fmt"
	"strings"
)

// Kind identifies one of the six metric families.
type Kind int

// Metric kinds, in evaluation order.
const (
	Impact Kind = iota
	Simplicity
	Cleanness
	Comment
	Creditability
	Novelty
)

var kindNames = [...]string{
	Impact:        "impact",
	Simplicity:    "simplicity",
	Cleanness:     "cleanness",
	Comment:       "comment",
	Creditability: "creditability",
	Novelty:       "novelty",
}

// Kinds returns every kind in evaluation order.
func Kinds() []Kind {
	return []Kind{Impact, Simplicity, Cleanness, Comment, Creditability, Novelty}
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= Impact && k <= Novelty
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a case-insensitive name to its Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
