// Package registry maps each entity kind to its storage binding: which table
// holds the record, which columns hold the owner reference and display name,
// and which roster table (if any) must stay synchronized with ownership.
//
// This is pure configuration. Table and column identifiers flow into SQL only
// from this trusted, startup-validated mapping, never from caller input.
package registry

import (
	"clubhub/internal/ownership/models"
	dErrors "clubhub/pkg/domain-errors"
)

// RosterBinding describes the membership table some kinds keep alongside the
// single owner reference. Transfers demote the outgoing owner to admin and
// upsert the incoming owner here.
type RosterBinding struct {
	Table        string
	EntityColumn string
	UserColumn   string
	RoleColumn   string
	StatusColumn string
}

// Binding is one kind's storage configuration.
type Binding struct {
	Kind        models.EntityKind
	Table       string
	OwnerColumn string
	NameColumn  string
	// Roster is nil for kinds without a membership table.
	Roster *RosterBinding
}

// HasRoster reports whether ownership changes must touch a roster table.
func (b Binding) HasRoster() bool {
	return b.Roster != nil
}

// Registry holds the closed kind→binding mapping.
type Registry struct {
	bindings map[models.EntityKind]Binding
}

// Default returns the platform's current configuration: venues and
// tournaments carry a bare owner column; clubs and communities additionally
// maintain membership rosters.
func Default() *Registry {
	return &Registry{bindings: map[models.EntityKind]Binding{
		models.KindVenue: {
			Kind:        models.KindVenue,
			Table:       "venues",
			OwnerColumn: "owner_id",
			NameColumn:  "name",
		},
		models.KindClub: {
			Kind:        models.KindClub,
			Table:       "clubs",
			OwnerColumn: "owner_id",
			NameColumn:  "name",
			Roster: &RosterBinding{
				Table:        "club_members",
				EntityColumn: "club_id",
				UserColumn:   "user_id",
				RoleColumn:   "role",
				StatusColumn: "status",
			},
		},
		models.KindTournament: {
			Kind:        models.KindTournament,
			Table:       "tournaments",
			OwnerColumn: "organizer_id",
			NameColumn:  "title",
		},
		models.KindCommunity: {
			Kind:        models.KindCommunity,
			Table:       "communities",
			OwnerColumn: "owner_id",
			NameColumn:  "name",
			Roster: &RosterBinding{
				Table:        "community_members",
				EntityColumn: "community_id",
				UserColumn:   "user_id",
				RoleColumn:   "role",
				StatusColumn: "status",
			},
		},
	}}
}

// ForKind returns the binding for a kind. An unknown kind is a wiring bug,
// not a runtime condition: callers validate kind strings with
// models.ParseKind before they reach this point.
func (r *Registry) ForKind(kind models.EntityKind) (Binding, error) {
	b, ok := r.bindings[kind]
	if !ok {
		return Binding{}, dErrors.Newf(dErrors.CodeConfiguration, "no storage binding for entity kind %q", kind)
	}
	return b, nil
}

// Kinds returns every configured kind in stable report order.
func (r *Registry) Kinds() []models.EntityKind {
	kinds := make([]models.EntityKind, 0, len(r.bindings))
	for _, k := range models.Kinds() {
		if _, ok := r.bindings[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Validate checks the mapping once at startup. Schema presence is a startup
// invariant; nothing probes for tables at request time.
func (r *Registry) Validate() error {
	if len(r.bindings) == 0 {
		return dErrors.New(dErrors.CodeConfiguration, "registry has no entity bindings")
	}
	for kind, b := range r.bindings {
		if b.Kind != kind {
			return dErrors.Newf(dErrors.CodeConfiguration, "binding for %q declares kind %q", kind, b.Kind)
		}
		if b.Table == "" || b.OwnerColumn == "" || b.NameColumn == "" {
			return dErrors.Newf(dErrors.CodeConfiguration, "binding for %q is missing identifiers", kind)
		}
		if b.Roster != nil {
			ro := b.Roster
			if ro.Table == "" || ro.EntityColumn == "" || ro.UserColumn == "" || ro.RoleColumn == "" || ro.StatusColumn == "" {
				return dErrors.Newf(dErrors.CodeConfiguration, "roster binding for %q is missing identifiers", kind)
			}
		}
	}
	return nil
}
