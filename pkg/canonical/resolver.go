package canonical

import (
	"fmt"
	"sort"
)

// AmbiguousNameError is returned when a base name matches more than one
// namespace and the caller did not disambiguate with a qualified or
// canonical form.
type AmbiguousNameError struct {
	Key        string
	Candidates []ID
}

func (e *AmbiguousNameError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, c.String())
	}
	sort.Strings(names)
	return fmt.Sprintf("ambiguous name %q: candidates %v", e.Key, names)
}

// UnknownInputError is returned when a key resolves to nothing in the known
// set.
type UnknownInputError struct {
	Key string
}

func (e *UnknownInputError) Error() string {
	return fmt.Sprintf("unknown input %q", e.Key)
}

// Resolver maps short names and wire-format strings back to the one known
// ID they denote: a canonical id is validated against the known set, a
// fully-qualified name must be unique, and a base name is accepted only if
// it appears in exactly one namespace.
type Resolver struct {
	known       map[string]ID
	byQualified map[string][]ID
	byBaseName  map[string][]ID
}

// NewResolver builds a Resolver over the given catalogue of known ids.
func NewResolver(ids []ID) *Resolver {
	r := &Resolver{
		known:       make(map[string]ID, len(ids)),
		byQualified: make(map[string][]ID),
		byBaseName:  make(map[string][]ID),
	}
	for _, id := range ids {
		r.known[id.String()] = id
		r.byQualified[id.Qualified] = append(r.byQualified[id.Qualified], id)
		r.byBaseName[id.BaseName()] = append(r.byBaseName[id.BaseName()], id)
	}
	return r
}

// Resolve accepts a canonical id string, a fully-qualified name, or a base
// name and returns the single ID it denotes.
func (r *Resolver) Resolve(key string) (ID, error) {
	if id, err := ParseID(key); err == nil {
		if known, ok := r.known[id.String()]; ok {
			return known, nil
		}
		return ID{}, &UnknownInputError{Key: key}
	}

	if ids, ok := r.byQualified[key]; ok {
		if len(ids) == 1 {
			return ids[0], nil
		}
		return ID{}, &AmbiguousNameError{Key: key, Candidates: ids}
	}

	if ids, ok := r.byBaseName[key]; ok {
		if len(ids) == 1 {
			return ids[0], nil
		}
		return ID{}, &AmbiguousNameError{Key: key, Candidates: ids}
	}

	return ID{}, &UnknownInputError{Key: key}
}

// ResolveInput is Resolve restricted to Input-kind ids, the common entry
// point for inputs-document keys.
func (r *Resolver) ResolveInput(key string) (ID, error) {
	id, err := r.Resolve(key)
	if err != nil {
		return ID{}, err
	}
	if id.Kind != KindInput {
		return ID{}, &UnknownInputError{Key: key}
	}
	return id, nil
}

// Candidates returns every known id sharing the given base name, used to
// build ambiguity diagnostics outside the resolver itself.
func (r *Resolver) Candidates(baseName string) []ID {
	return append([]ID(nil), r.byBaseName[baseName]...)
}
