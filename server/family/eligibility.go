package family

import (
	"context"
	"sort"
	"strings"
	"time"
)

// SpouseMode selects the marital-status filter of EligibleSpouses.
type SpouseMode string

const (
	// NEW_MEMBER only offers candidates without a spouse.
	NEW_MEMBER SpouseMode = "newMember"
	// EDIT keeps married candidates so a current spouse stays selectable.
	EDIT SpouseMode = "edit"
)

// ParentCandidate is a person offered as a parent, with their spouse when married.
type ParentCandidate struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Gender      Gender         `json:"gender"`
	DateOfBirth time.Time      `json:"date_of_birth"`
	Spouse      *PersonSummary `json:"spouse"`
}

// EligibleSpouses lists the adults of the family that currentPersonID could
// marry: opposite gender for Male and Female (any gender otherwise), at
// least MIN_SPOUSE_AGE_YEARS old and, in NEW_MEMBER mode, unmarried.
func (s *Service) EligibleSpouses(ctx context.Context, actor Actor, currentPersonID string, currentGender Gender, mode SpouseMode) ([]PersonSummary, error) {
	if mode != NEW_MEMBER && mode != EDIT {
		return nil, invalidInput("unknown spouse mode %q", mode)
	}

	adultsBornBy := yearsAgo(s.now(), MIN_SPOUSE_AGE_YEARS)
	filter := PersonFilter{
		FamilyID:       actor.FamilyID,
		ExcludeID:      strings.TrimSpace(currentPersonID),
		Gender:         oppositeGender(currentGender),
		BornOnOrBefore: &adultsBornBy,
	}
	if mode == NEW_MEMBER {
		filter.Married = boolPtr(false)
	}

	people, err := s.store.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	candidates := make([]PersonSummary, 0, len(people))
	for _, p := range people {
		candidates = append(candidates, PersonSummary{ID: p.ID, Name: p.Name})
	}
	return candidates, nil
}

// EligibleParents lists everyone married plus the unmarried who are at least
// MIN_PARENT_AGE_YEARS old. A couple is listed once, by whichever partner
// comes first.
func (s *Service) EligibleParents(ctx context.Context, actor Actor) ([]ParentCandidate, error) {
	married, err := s.store.Find(ctx, PersonFilter{FamilyID: actor.FamilyID, Married: boolPtr(true)})
	if err != nil {
		return nil, err
	}

	singlesBornBy := yearsAgo(s.now(), MIN_PARENT_AGE_YEARS)
	singles, err := s.store.Find(ctx, PersonFilter{
		FamilyID:       actor.FamilyID,
		Married:        boolPtr(false),
		BornOnOrBefore: &singlesBornBy,
	})
	if err != nil {
		return nil, err
	}

	spouseIDs := IDSet{}
	for _, p := range married {
		spouseIDs = spouseIDs.Add(p.SpouseID)
	}

	spouses := []Person{}
	if len(spouseIDs) > 0 {
		spouses, err = s.store.Find(ctx, PersonFilter{FamilyID: actor.FamilyID, IDs: spouseIDs})
		if err != nil {
			return nil, err
		}
	}
	arena := newArena(spouses)

	seen := map[string]bool{}
	candidates := []ParentCandidate{}
	for _, p := range married {
		key := coupleKey(p.ID, p.SpouseID)
		if seen[key] {
			continue
		}
		seen[key] = true

		candidate := parentCandidate(p)
		if spouse, ok := arena[p.SpouseID]; ok {
			summary := spouse.Summary()
			candidate.Spouse = &summary
		}
		candidates = append(candidates, candidate)
	}

	for _, p := range singles {
		candidates = append(candidates, parentCandidate(p))
	}
	return candidates, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func oppositeGender(gender Gender) Gender {
	switch gender {
	case MALE:
		return FEMALE
	case FEMALE:
		return MALE
	}
	return ""
}

// coupleKey is the same for (a, b) and (b, a).
func coupleKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "-")
}

func yearsAgo(now time.Time, years int) time.Time {
	return now.AddDate(-years, 0, 0)
}

func parentCandidate(p Person) ParentCandidate {
	return ParentCandidate{ID: p.ID, Name: p.Name, Gender: p.Gender, DateOfBirth: p.DateOfBirth}
}
