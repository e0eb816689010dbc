// Package cities resolves free-text city names against a static index
// loaded once at startup. The index file is a JSON object of lowercase
// city name to VK city id.
package cities

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// City is a canonical (display name, id) pair.
type City struct {
	Name string
	ID   int
}

// Resolver matches user input against the city index. It is read-only after
// construction and safe for concurrent use.
type Resolver struct {
	names []string // lowercase keys, file order
	ids   map[string]int
}

// Load builds a Resolver from the index file. A missing file is not fatal:
// the caller gets an empty resolver that never matches, so the bot can run
// while the index is being provisioned.
func Load(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Resolver{ids: map[string]int{}}, nil
		}
		return nil, fmt.Errorf("cities: read index %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Resolver from raw index JSON, preserving the file's key
// order so matching stays deterministic.
func Parse(data []byte) (*Resolver, error) {
	raw := make(map[string]int)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cities: parse index: %w", err)
	}

	// Matching is case-insensitive, so the lookup key is the lowercased
	// index key even if the file carries mixed case.
	ids := make(map[string]int, len(raw))
	for name, id := range raw {
		ids[strings.ToLower(name)] = id
	}

	// encoding/json maps lose document order; walk the tokens to recover it.
	names, err := keyOrder(data)
	if err != nil {
		return nil, err
	}

	return &Resolver{names: names, ids: ids}, nil
}

// Empty reports whether the index has no entries.
func (r *Resolver) Empty() bool {
	return len(r.names) == 0
}

// Len returns the number of indexed cities.
func (r *Resolver) Len() int {
	return len(r.names)
}

// Resolve matches query against the index: the first entry, in index order,
// whose name contains the query or is contained by it wins. Returns nil
// when nothing matches.
func (r *Resolver) Resolve(query string) *City {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	for _, name := range r.names {
		if strings.Contains(name, q) || strings.Contains(q, name) {
			return &City{Name: titleCase(name), ID: r.ids[name]}
		}
	}
	return nil
}

func keyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))

	// Opening brace.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("cities: scan index: %w", err)
	}

	var names []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("cities: scan index key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("cities: unexpected index key %v", keyTok)
		}
		names = append(names, strings.ToLower(key))

		// Skip the value.
		var id json.RawMessage
		if err := dec.Decode(&id); err != nil {
			return nil, fmt.Errorf("cities: scan index value: %w", err)
		}
	}
	return names, nil
}

// titleCase upper-cases the first letter of every word, matching how city
// names are displayed to users ("нижний новгород" -> "Нижний Новгород").
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	upperNext := true
	for _, r := range s {
		switch {
		case unicode.IsSpace(r) || r == '-':
			upperNext = true
			b.WriteRune(r)
		case upperNext:
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
