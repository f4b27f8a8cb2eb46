// Package roster holds the team-member allow-list. Only names on the roster
// can be resolved from query text; per-source identifiers are a data-driven
// mapping loaded from configuration, never hardcoded per person.
package roster

import (
	"fmt"
	"sort"
	"strings"

	"teampulse/internal/config"
	"teampulse/internal/sources"
)

// Member is one configured team member. Immutable once loaded.
type Member struct {
	// Name is the canonical display name used in queries and output.
	Name string

	identities map[sources.Name]string
}

// Identity returns the member's identifier for the given source,
// falling back to the display name when none is configured.
func (m Member) Identity(source sources.Name) string {
	if id, ok := m.identities[source]; ok && id != "" {
		return id
	}
	return m.Name
}

// JiraIdentity returns the issue-tracker assignee identifier.
func (m Member) JiraIdentity() string {
	return m.Identity(sources.Jira)
}

// GitHubIdentity returns the code-host login.
func (m Member) GitHubIdentity() string {
	return m.Identity(sources.GitHub)
}

// Roster is the ordered member allow-list. Order follows configuration and
// breaks ties when a query mentions two members at the same position.
type Roster struct {
	members []Member
	byName  map[string]int // lowercased name -> index
}

// FromConfig builds a roster from configured entries.
func FromConfig(entries []config.MemberEntry) (*Roster, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("roster is empty: configure team members")
	}

	r := &Roster{byName: make(map[string]int, len(entries))}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("roster entry has no name")
		}
		key := strings.ToLower(name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate roster entry %q", name)
		}

		m := Member{
			Name:       name,
			identities: map[sources.Name]string{},
		}
		if e.Jira != "" {
			m.identities[sources.Jira] = e.Jira
		}
		if e.GitHub != "" {
			m.identities[sources.GitHub] = e.GitHub
		}

		r.byName[key] = len(r.members)
		r.members = append(r.members, m)
	}
	return r, nil
}

// Members returns the members in configuration order.
func (r *Roster) Members() []Member {
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out
}

// Lookup finds a member by display name, case-insensitive.
func (r *Roster) Lookup(name string) (Member, bool) {
	idx, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Member{}, false
	}
	return r.members[idx], true
}

// Names returns the display names sorted for stable presentation.
func (r *Roster) Names() []string {
	names := make([]string, len(r.members))
	for i, m := range r.members {
		names[i] = m.Name
	}
	sort.Strings(names)
	return names
}

// Len returns the roster size.
func (r *Roster) Len() int {
	return len(r.members)
}
