package family

import (
	"context"
	"time"
)

// Relation names a relationship set column on Person.
type Relation string

const (
	PARENT_IDS   Relation = "parent_ids"
	CHILDREN_IDS Relation = "children_ids"
)

// PersonStore is the persistence contract the core depends on. Every call is
// scoped to a single family; implementations must never match records of
// another family.
type PersonStore interface {
	// Create persists a new person, assigning an id when p.ID is empty.
	Create(ctx context.Context, p *Person) error

	// FindOne returns ErrNotFound when id does not resolve within familyID.
	FindOne(ctx context.Context, familyID, id string) (*Person, error)

	Find(ctx context.Context, filter PersonFilter) ([]Person, error)

	// AddToSet adds values to the relation set of every person in ids.
	// Ids that do not resolve are skipped.
	AddToSet(ctx context.Context, familyID string, ids []string, relation Relation, values ...string) error

	// Pull removes values from the relation set of every person in ids.
	Pull(ctx context.Context, familyID string, ids []string, relation Relation, values ...string) error

	// SetSpouse overwrites the spouse of id ("" clears it) and reports
	// whether a record matched.
	SetSpouse(ctx context.Context, familyID, id, spouseID string) (bool, error)

	// Update writes the given columns and returns the updated record.
	Update(ctx context.Context, familyID, id string, fields map[string]interface{}) (*Person, error)

	Delete(ctx context.Context, familyID, id string) error

	// Occupations returns the distinct non-empty occupations of a family
	// containing search (case-insensitive).
	Occupations(ctx context.Context, familyID, search string) ([]string, error)
}

// PersonFilter selects people of one family. Zero values do not filter.
type PersonFilter struct {
	FamilyID       string
	IDs            []string
	ExcludeID      string
	Email          string
	Gender         Gender
	BornOnOrBefore *time.Time
	Married        *bool
	RootsOnly      bool
	OrderByBirth   bool
}

// Matches reports whether p satisfies every condition of the filter.
func (f PersonFilter) Matches(p *Person) bool {
	switch {
	case p.FamilyID != f.FamilyID:
		return false
	case f.IDs != nil && !IDSet(f.IDs).Contains(p.ID):
		return false
	case f.ExcludeID != "" && p.ID == f.ExcludeID:
		return false
	case f.Email != "" && p.Email != f.Email:
		return false
	case f.Gender != "" && p.Gender != f.Gender:
		return false
	case f.BornOnOrBefore != nil && p.DateOfBirth.After(*f.BornOnOrBefore):
		return false
	case f.Married != nil && p.Married() != *f.Married:
		return false
	case f.RootsOnly && !p.IsRoot():
		return false
	}
	return true
}

// UpdatableFields are the columns Update accepts.
var UpdatableFields = map[string]bool{
	"name":            true,
	"gender":          true,
	"date_of_birth":   true,
	"place_of_birth":  true,
	"current_address": true,
	"contact_number":  true,
	"country_code":    true,
	"email":           true,
	"occupation":      true,
	"photo":           true,
	"parent_ids":      true,
	"spouse_id":       true,
}

// ---------------------------------------------------------------------------------//
// Collaborators
// --------------------------------------------------------------------------------//

// Actor is the authenticated caller. It is trusted as already verified.
type Actor struct {
	UserID   string
	FamilyID string
	Email    string
	Role     string
}

// Principal is the account linked to a person by family id and email.
type Principal struct {
	ID       string
	FamilyID string
	Name     string
	Email    string
}

// PrincipalDirectory gives the core access to the accounts collection.
type PrincipalDirectory interface {
	// FindByEmail returns nil, nil when no account uses email.
	FindByEmail(ctx context.Context, email string) (*Principal, error)

	// UpdateFields renames the account of familyID currently using email.
	// A missing account is not an error.
	UpdateFields(ctx context.Context, familyID, email string, fields PrincipalFields) error
}

type PrincipalFields struct {
	Name  string
	Email string
}

func boolPtr(b bool) *bool {
	return &b
}
