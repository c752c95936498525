package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AccessorKind tells how an Accessor selects a child value.
type AccessorKind string

const (
	AccessField AccessorKind = "field" // Struct field or attribute name
	AccessIndex AccessorKind = "index" // Slice or array element
	AccessKey   AccessorKind = "key"   // Map entry
)

// Accessor is one step of a Path.
type Accessor struct {
	Kind  AccessorKind `json:"kind"`
	Name  string       `json:"name,omitempty"`
	Index int          `json:"index,omitempty"`
}

// String renders the accessor the way it appears inside a Path.
func (a Accessor) String() string {
	switch a.Kind {
	case AccessIndex:
		return "[" + strconv.Itoa(a.Index) + "]"
	case AccessKey:
		return "[" + strconv.Quote(a.Name) + "]"
	default:
		return "." + a.Name
	}
}

// Path locates a sub-object inside an app's component graph.
// The empty Path addresses the app root itself.
type Path []Accessor

// RootPath returns the path of the app root.
func RootPath() Path { return Path{} }

// Field returns a copy of p extended with a field accessor.
func (p Path) Field(name string) Path {
	return p.extend(Accessor{Kind: AccessField, Name: name})
}

// Index returns a copy of p extended with an element accessor.
func (p Path) Index(i int) Path {
	return p.extend(Accessor{Kind: AccessIndex, Index: i})
}

// Key returns a copy of p extended with a map key accessor.
func (p Path) Key(k string) Path {
	return p.extend(Accessor{Kind: AccessKey, Name: k})
}

// extend never aliases the receiver's backing array, so paths handed to
// different branches of a walk stay independent.
func (p Path) extend(a Accessor) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, a)
}

// Equal reports whether both paths have the same accessors.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && p[:len(prefix)].Equal(prefix)
}

// String renders the path rooted at "app", e.g. app.chains[0].llm.
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString("app")
	for _, a := range p {
		sb.WriteString(a.String())
	}
	return sb.String()
}

// MarshalText encodes the path in its string form.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a path produced by MarshalText.
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := ParsePath(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePath parses the string form produced by Path.String.
func ParsePath(s string) (Path, error) {
	rest, ok := strings.CutPrefix(s, "app")
	if !ok {
		return nil, fmt.Errorf("invalid path %q: must start with \"app\"", s)
	}

	p := Path{}
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end == -1 {
				end = len(rest)
			}
			if end == 0 {
				return nil, fmt.Errorf("invalid path %q: empty field name", s)
			}
			p = append(p, Accessor{Kind: AccessField, Name: rest[:end]})
			rest = rest[end:]
		case '[':
			end := closingBracket(rest)
			if end == -1 {
				return nil, fmt.Errorf("invalid path %q: unterminated accessor", s)
			}
			inner := rest[1:end]
			rest = rest[end+1:]
			if strings.HasPrefix(inner, `"`) {
				key, err := strconv.Unquote(inner)
				if err != nil {
					return nil, fmt.Errorf("invalid path %q: bad key: %w", s, err)
				}
				p = append(p, Accessor{Kind: AccessKey, Name: key})
				continue
			}
			i, err := strconv.Atoi(inner)
			if err != nil {
				return nil, fmt.Errorf("invalid path %q: bad index: %w", s, err)
			}
			p = append(p, Accessor{Kind: AccessIndex, Index: i})
		default:
			return nil, fmt.Errorf("invalid path %q: unexpected %q", s, rest[0])
		}
	}
	return p, nil
}

// closingBracket finds the ']' ending the accessor at s[0], skipping quoted keys.
func closingBracket(s string) int {
	inQuote := false
	for i := 1; i < len(s); i++ {
		switch {
		case inQuote && s[i] == '\\':
			i++
		case s[i] == '"':
			inQuote = !inQuote
		case s[i] == ']' && !inQuote:
			return i
		}
	}
	return -1
}
