// Package canonical assigns and resolves the globally unique names every
// declared input, artefact, and producer in a blueprint tree is known by.
package canonical

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the three families of canonical id.
type Kind string

const (
	KindInput    Kind = "Input"
	KindArtifact Kind = "Artifact"
	KindProducer Kind = "Producer"
)

// Index is one `[key=value]` fan-out dimension attached to an Artifact or
// Producer id.
type Index struct {
	Key   string
	Value int
}

// ID is a fully-qualified canonical name: kind, dot-joined namespace path,
// and zero or more fan-out indices.
//
// Indices preserve declared order for String() (the wire format renders
// brackets in the order dimensions were introduced) but Equal compares them
// as a multiset.
type ID struct {
	Kind      Kind
	Qualified string
	Indices   []Index
}

// JoinNamespace joins a namespace path into its dotted qualified-name form.
func JoinNamespace(ns []string) string {
	return strings.Join(ns, ".")
}

func qualify(ns []string, name string) string {
	if len(ns) == 0 {
		return name
	}
	return JoinNamespace(ns) + "." + name
}

// FormatInputID builds the canonical id for a declared input.
func FormatInputID(ns []string, name string) ID {
	return ID{Kind: KindInput, Qualified: qualify(ns, name)}
}

// FormatProducerScopedInputID builds the canonical id for an input bound in
// a producer's own scope (`Input:<qualifiedProducer>.<key>`), flattening
// nested configuration keys with ".".
func FormatProducerScopedInputID(producerQualified string, keyPath ...string) ID {
	return ID{Kind: KindInput, Qualified: producerQualified + "." + strings.Join(keyPath, ".")}
}

// FormatArtifactID builds the canonical id for an artefact instance.
func FormatArtifactID(ns []string, name string, indices ...Index) ID {
	return ID{Kind: KindArtifact, Qualified: qualify(ns, name), Indices: append([]Index(nil), indices...)}
}

// FormatProducerID builds the canonical id for a producer instance.
func FormatProducerID(ns []string, name string, indices ...Index) ID {
	return ID{Kind: KindProducer, Qualified: qualify(ns, name), Indices: append([]Index(nil), indices...)}
}

// String renders the wire format: "Kind:qualified[key=value]...".
func (id ID) String() string {
	var b strings.Builder
	b.WriteString(string(id.Kind))
	b.WriteByte(':')
	b.WriteString(id.Qualified)
	for _, idx := range id.Indices {
		b.WriteByte('[')
		b.WriteString(idx.Key)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(idx.Value))
		b.WriteByte(']')
	}
	return b.String()
}

// Equal reports whether two ids name the same thing: same kind, same
// qualified name, and the same index multiset (order-independent).
func (id ID) Equal(other ID) bool {
	if id.Kind != other.Kind || id.Qualified != other.Qualified {
		return false
	}
	if len(id.Indices) != len(other.Indices) {
		return false
	}
	a := indexCounts(id.Indices)
	b := indexCounts(other.Indices)
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func indexCounts(idx []Index) map[string]int {
	m := make(map[string]int, len(idx))
	for _, i := range idx {
		m[fmt.Sprintf("%s=%d", i.Key, i.Value)]++
	}
	return m
}

// BaseName returns the final dot-separated segment of the qualified name.
func (id ID) BaseName() string {
	parts := strings.Split(id.Qualified, ".")
	return parts[len(parts)-1]
}

// IndexValue returns the value bound to the given index key and whether it
// was present.
func (id ID) IndexValue(key string) (int, bool) {
	for _, idx := range id.Indices {
		if idx.Key == key {
			return idx.Value, true
		}
	}
	return 0, false
}

// WithIndices returns a copy of id with additional indices appended,
// preserving declared order (parent dimensions first).
func (id ID) WithIndices(extra ...Index) ID {
	out := id
	out.Indices = append(append([]Index(nil), id.Indices...), extra...)
	return out
}

var idPattern = regexp.MustCompile(`^(Input|Artifact|Producer):([^\[]+)((?:\[[^=\]]+=\d+\])*)$`)
var bracketPattern = regexp.MustCompile(`\[([^=\]]+)=(\d+)\]`)

// ParseID parses a wire-format canonical id string back into an ID.
func ParseID(s string) (ID, error) {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return ID{}, fmt.Errorf("canonical: malformed id %q", s)
	}
	id := ID{Kind: Kind(m[1]), Qualified: m[2]}
	for _, b := range bracketPattern.FindAllStringSubmatch(m[3], -1) {
		v, err := strconv.Atoi(b[2])
		if err != nil {
			return ID{}, fmt.Errorf("canonical: malformed index in %q: %w", s, err)
		}
		id.Indices = append(id.Indices, Index{Key: b[1], Value: v})
	}
	return id, nil
}

// SortedIndices returns a copy of indices sorted lexicographically by key,
// used only where the wire format requires bracket-order normalisation
// independent of declaration order (e.g. hashing).
func SortedIndices(idx []Index) []Index {
	out := append([]Index(nil), idx...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
