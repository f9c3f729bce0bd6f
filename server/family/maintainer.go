package family

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DEFAULT_TREE_DEPTH   = 3
	MAX_OCCUPATIONS      = 10
	MIN_SPOUSE_AGE_YEARS = 18
	MIN_PARENT_AGE_YEARS = 20
)

// Service is the single writer of relationship fields. It keeps parent/child
// and spouse references mutually consistent and serves the derived views
// (eligibility lists, family trees) of a family graph.
type Service struct {
	store        PersonStore
	principals   PrincipalDirectory
	logg         *zap.SugaredLogger
	now          func() time.Time
	DefaultDepth int
}

func NewService(store PersonStore, principals PrincipalDirectory, logg *zap.SugaredLogger) *Service {
	return &Service{
		store:        store,
		principals:   principals,
		logg:         logg,
		now:          time.Now,
		DefaultDepth: DEFAULT_TREE_DEPTH,
	}
}

// CreatePerson persists a person and links it to its parents and spouse.
// Parent or spouse ids that do not resolve in the family are dropped.
func (s *Service) CreatePerson(ctx context.Context, actor Actor, in NewPerson) (*PopulatedPerson, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	familyID := actor.FamilyID
	parentIDs, err := s.resolveIDs(ctx, familyID, in.ParentIDs, "parent")
	if err != nil {
		return nil, err
	}

	spouse, err := s.resolveSpouse(ctx, familyID, in.SpouseID)
	if err != nil {
		return nil, err
	}

	person := &Person{
		FamilyID:       familyID,
		Name:           in.Name,
		Gender:         in.Gender,
		DateOfBirth:    in.DateOfBirth,
		PlaceOfBirth:   in.PlaceOfBirth,
		CurrentAddress: in.CurrentAddress,
		ContactNumber:  in.ContactNumber,
		CountryCode:    in.CountryCode,
		Email:          in.Email,
		Occupation:     in.Occupation,
		Photo:          in.Photo,
		ParentIDs:      parentIDs,
		ChildrenIDs:    IDSet{},
	}
	if spouse != nil {
		person.SpouseID = spouse.ID
	}

	uow := newPropagation("createPerson")
	err = uow.do("create person", func() error {
		return s.store.Create(ctx, person)
	})
	if err != nil {
		return nil, err
	}

	if len(parentIDs) > 0 {
		err = uow.do("add child to parents", func() error {
			return s.store.AddToSet(ctx, familyID, parentIDs, CHILDREN_IDS, person.ID)
		})
		if err != nil {
			return nil, err
		}

		err = uow.do("add parents to child", func() error {
			return s.store.AddToSet(ctx, familyID, []string{person.ID}, PARENT_IDS, parentIDs...)
		})
		if err != nil {
			return nil, err
		}
	}

	if spouse != nil {
		if err := s.linkSpouse(ctx, uow, familyID, person.ID, spouse); err != nil {
			return nil, err
		}
		if err := s.mergeSpouseChildren(ctx, uow, familyID, person.ID, spouse.ID, person.ChildrenIDs); err != nil {
			return nil, err
		}
	}

	created, err := s.store.FindOne(ctx, familyID, person.ID)
	if err != nil {
		return nil, uow.wrap("reload person", err)
	}
	return s.populate(ctx, created)
}

// UpdatePerson applies patch to a person. A present ParentIDs replaces the
// whole parent list; a present SpouseID links, relinks or (when empty) unlinks
// the spouse and propagates the person's children to the new spouse.
func (s *Service) UpdatePerson(ctx context.Context, actor Actor, id string, patch PersonPatch) (*PopulatedPerson, error) {
	familyID := actor.FamilyID

	current, err := s.store.FindOne(ctx, familyID, id)
	if err != nil {
		return nil, err
	}
	if err := patch.validate(id); err != nil {
		return nil, err
	}

	fields := attributeFields(patch)
	uow := newPropagation("updatePerson")

	if err := s.syncPrincipal(ctx, uow, actor, current, patch, fields); err != nil {
		return nil, err
	}

	if patch.ParentIDs.Set {
		parentIDs, err := s.resolveIDs(ctx, familyID, nonEmpty(patch.ParentIDs.Values), "parent")
		if err != nil {
			return nil, uow.wrap("resolve parents", err)
		}

		if len(current.ParentIDs) > 0 {
			err = uow.do("remove child from previous parents", func() error {
				return s.store.Pull(ctx, familyID, current.ParentIDs, CHILDREN_IDS, id)
			})
			if err != nil {
				return nil, err
			}
		}

		if len(parentIDs) > 0 {
			err = uow.do("add child to new parents", func() error {
				return s.store.AddToSet(ctx, familyID, parentIDs, CHILDREN_IDS, id)
			})
			if err != nil {
				return nil, err
			}
		}
		fields["parent_ids"] = parentIDs
	}

	if patch.SpouseID.Set {
		if err := s.changeSpouse(ctx, uow, current, strings.TrimSpace(patch.SpouseID.Value), fields); err != nil {
			return nil, err
		}
	}

	if len(fields) == 0 {
		return s.populate(ctx, current)
	}

	var updated *Person
	err = uow.do("update person", func() error {
		var err error
		updated, err = s.store.Update(ctx, familyID, id, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, updated)
}

// DeletePerson removes a person after clearing every back-reference to it.
// Former shared children stay with the surviving spouse.
func (s *Service) DeletePerson(ctx context.Context, actor Actor, id string) error {
	familyID := actor.FamilyID

	person, err := s.store.FindOne(ctx, familyID, id)
	if err != nil {
		return err
	}

	uow := newPropagation("deletePerson")
	if len(person.ParentIDs) > 0 {
		err = uow.do("remove child from parents", func() error {
			return s.store.Pull(ctx, familyID, person.ParentIDs, CHILDREN_IDS, id)
		})
		if err != nil {
			return err
		}
	}

	if len(person.ChildrenIDs) > 0 {
		err = uow.do("remove parent from children", func() error {
			return s.store.Pull(ctx, familyID, person.ChildrenIDs, PARENT_IDS, id)
		})
		if err != nil {
			return err
		}
	}

	if person.SpouseID != "" {
		err = uow.do("clear spouse", func() error {
			_, err := s.store.SetSpouse(ctx, familyID, person.SpouseID, "")
			return err
		})
		if err != nil {
			return err
		}
	}

	return uow.do("delete person", func() error {
		return s.store.Delete(ctx, familyID, id)
	})
}

// MergeSpouseChildren makes two spouses share the union of their children.
// Running it on an already merged pair changes nothing.
func (s *Service) MergeSpouseChildren(ctx context.Context, actor Actor, personID, spouseID string) error {
	person, err := s.store.FindOne(ctx, actor.FamilyID, personID)
	if err != nil {
		return err
	}

	uow := newPropagation("mergeSpouseChildren")
	return s.mergeSpouseChildren(ctx, uow, actor.FamilyID, person.ID, spouseID, person.ChildrenIDs)
}

func (s *Service) GetPerson(ctx context.Context, actor Actor, id string) (*PopulatedPerson, error) {
	person, err := s.store.FindOne(ctx, actor.FamilyID, id)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, person)
}

func (s *Service) ListPeople(ctx context.Context, actor Actor) ([]PopulatedPerson, error) {
	people, err := s.store.Find(ctx, PersonFilter{FamilyID: actor.FamilyID})
	if err != nil {
		return nil, err
	}

	arena := newArena(people)
	populated := make([]PopulatedPerson, 0, len(people))
	for i := range people {
		populated = append(populated, arena.populate(&people[i]))
	}
	return populated, nil
}

// Occupations suggests up to MAX_OCCUPATIONS distinct occupations, sorted.
func (s *Service) Occupations(ctx context.Context, actor Actor, search string) ([]string, error) {
	occupations, err := s.store.Occupations(ctx, actor.FamilyID, search)
	if err != nil {
		return nil, err
	}

	filtered := []string{}
	for _, occupation := range occupations {
		if strings.TrimSpace(occupation) != "" {
			filtered = append(filtered, occupation)
		}
	}
	sort.Strings(filtered)

	if len(filtered) > MAX_OCCUPATIONS {
		filtered = filtered[:MAX_OCCUPATIONS]
	}
	return filtered, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (s *Service) changeSpouse(ctx context.Context, uow *propagation, current *Person, newSpouseID string, fields map[string]interface{}) error {
	familyID := current.FamilyID
	oldSpouseID := current.SpouseID
	children := current.ChildrenIDs

	if newSpouseID == "" {
		if oldSpouseID != "" {
			if err := s.unlinkSpouse(ctx, uow, familyID, oldSpouseID, children); err != nil {
				return err
			}
		}
		fields["spouse_id"] = ""
		return nil
	}

	if newSpouseID == oldSpouseID {
		return nil
	}

	newSpouse, err := s.resolveSpouse(ctx, familyID, newSpouseID)
	if err != nil {
		return uow.wrap("resolve spouse", err)
	}
	if newSpouse == nil {
		return nil
	}

	if oldSpouseID != "" {
		if err := s.unlinkSpouse(ctx, uow, familyID, oldSpouseID, children); err != nil {
			return err
		}
	}

	if err := s.linkSpouse(ctx, uow, familyID, current.ID, newSpouse); err != nil {
		return err
	}

	if len(children) > 0 {
		err = uow.do("add new spouse to children", func() error {
			return s.store.AddToSet(ctx, familyID, children, PARENT_IDS, newSpouse.ID)
		})
		if err != nil {
			return err
		}

		err = uow.do("add children to new spouse", func() error {
			return s.store.AddToSet(ctx, familyID, []string{newSpouse.ID}, CHILDREN_IDS, children...)
		})
		if err != nil {
			return err
		}
	}

	if err := s.mergeSpouseChildren(ctx, uow, familyID, current.ID, newSpouse.ID, children); err != nil {
		return err
	}

	fields["spouse_id"] = newSpouse.ID
	return nil
}

// linkSpouse points spouse at personID. A third person still linked to spouse
// is released first so the spouse relation stays symmetric.
func (s *Service) linkSpouse(ctx context.Context, uow *propagation, familyID, personID string, spouse *Person) error {
	if spouse.SpouseID != "" && spouse.SpouseID != personID {
		previous, err := s.store.FindOne(ctx, familyID, spouse.SpouseID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return uow.wrap("find spouse's previous partner", err)
		}

		if previous != nil && previous.SpouseID == spouse.ID {
			s.logg.Warnf("releasing %s from spouse %s before linking %s", previous.ID, spouse.ID, personID)
			err = uow.do("release spouse's previous partner", func() error {
				_, err := s.store.SetSpouse(ctx, familyID, previous.ID, "")
				return err
			})
			if err != nil {
				return err
			}
		}
	}

	return uow.do("link spouse", func() error {
		_, err := s.store.SetSpouse(ctx, familyID, spouse.ID, personID)
		return err
	})
}

func (s *Service) unlinkSpouse(ctx context.Context, uow *propagation, familyID, oldSpouseID string, children IDSet) error {
	err := uow.do("clear previous spouse", func() error {
		_, err := s.store.SetSpouse(ctx, familyID, oldSpouseID, "")
		return err
	})
	if err != nil {
		return err
	}

	if len(children) == 0 {
		return nil
	}

	err = uow.do("remove previous spouse from children", func() error {
		return s.store.Pull(ctx, familyID, children, PARENT_IDS, oldSpouseID)
	})
	if err != nil {
		return err
	}

	return uow.do("remove children from previous spouse", func() error {
		return s.store.Pull(ctx, familyID, []string{oldSpouseID}, CHILDREN_IDS, children...)
	})
}

// mergeSpouseChildren unions the children of a couple. personChildren is the
// person's children as of the merge; the spouse's are read fresh.
func (s *Service) mergeSpouseChildren(ctx context.Context, uow *propagation, familyID, personID, spouseID string, personChildren IDSet) error {
	spouse, err := s.store.FindOne(ctx, familyID, spouseID)
	if err != nil {
		return uow.wrap("find spouse for merge", err)
	}

	spouseOnly := spouse.ChildrenIDs.Minus(personChildren)
	personOnly := personChildren.Minus(spouse.ChildrenIDs)

	if len(spouseOnly) > 0 {
		err = uow.do("add spouse's children to person", func() error {
			return s.store.AddToSet(ctx, familyID, []string{personID}, CHILDREN_IDS, spouseOnly...)
		})
		if err != nil {
			return err
		}

		err = uow.do("add person as parent of spouse's children", func() error {
			return s.store.AddToSet(ctx, familyID, spouseOnly, PARENT_IDS, personID)
		})
		if err != nil {
			return err
		}
	}

	if len(personOnly) > 0 {
		err = uow.do("add person's children to spouse", func() error {
			return s.store.AddToSet(ctx, familyID, []string{spouseID}, CHILDREN_IDS, personOnly...)
		})
		if err != nil {
			return err
		}

		err = uow.do("add spouse as parent of person's children", func() error {
			return s.store.AddToSet(ctx, familyID, personOnly, PARENT_IDS, spouseID)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) syncPrincipal(ctx context.Context, uow *propagation, actor Actor, current *Person, patch PersonPatch, fields map[string]interface{}) error {
	principalFields := PrincipalFields{}

	if patch.Email != nil {
		newEmail := normalizeEmail(*patch.Email)
		fields["email"] = newEmail

		if newEmail != "" && newEmail != current.Email {
			existing, err := s.principals.FindByEmail(ctx, newEmail)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.FamilyID != actor.FamilyID {
					return fmt.Errorf("%w: email already in use", ErrConflict)
				}

				// an account with the old email cannot take over another account's email
				owner, err := s.principalFor(ctx, current.Email)
				if err != nil {
					return err
				}
				if owner != nil && owner.ID != existing.ID {
					return fmt.Errorf("%w: email already in use", ErrConflict)
				}
			}
			principalFields.Email = newEmail
		}
	}

	if patch.Name != nil && strings.TrimSpace(*patch.Name) != current.Name {
		principalFields.Name = strings.TrimSpace(*patch.Name)
	}

	if current.Email == "" || (principalFields == PrincipalFields{}) {
		return nil
	}

	return uow.do("sync account", func() error {
		return s.principals.UpdateFields(ctx, actor.FamilyID, current.Email, principalFields)
	})
}

func (s *Service) principalFor(ctx context.Context, email string) (*Principal, error) {
	if email == "" {
		return nil, nil
	}
	return s.principals.FindByEmail(ctx, email)
}

// resolveIDs keeps the ids that exist in the family, in input order.
func (s *Service) resolveIDs(ctx context.Context, familyID string, ids []string, label string) (IDSet, error) {
	wanted := NewIDSet(ids...)
	if len(wanted) == 0 {
		return IDSet{}, nil
	}

	found, err := s.store.Find(ctx, PersonFilter{FamilyID: familyID, IDs: wanted})
	if err != nil {
		return nil, err
	}

	existing := IDSet{}
	for _, p := range found {
		existing = existing.Add(p.ID)
	}

	resolved := IDSet{}
	for _, id := range wanted {
		if !existing.Contains(id) {
			s.logg.Warnf("skipping %s %s: not found in family %s", label, id, familyID)
			continue
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}

func (s *Service) resolveSpouse(ctx context.Context, familyID, spouseID string) (*Person, error) {
	if spouseID == "" {
		return nil, nil
	}

	spouse, err := s.store.FindOne(ctx, familyID, spouseID)
	if errors.Is(err, ErrNotFound) {
		s.logg.Warnf("skipping spouse %s: not found in family %s", spouseID, familyID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return spouse, nil
}

func (s *Service) populate(ctx context.Context, p *Person) (*PopulatedPerson, error) {
	ids := NewIDSet(p.ParentIDs...).Add(p.ChildrenIDs...).Add(p.SpouseID)

	related := []Person{}
	if len(ids) > 0 {
		var err error
		related, err = s.store.Find(ctx, PersonFilter{FamilyID: p.FamilyID, IDs: ids})
		if err != nil {
			return nil, err
		}
	}

	populated := newArena(related).populate(p)
	return &populated, nil
}

func attributeFields(patch PersonPatch) map[string]interface{} {
	fields := map[string]interface{}{}

	if patch.Name != nil {
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Gender != nil {
		fields["gender"] = *patch.Gender
	}
	if patch.DateOfBirth != nil {
		fields["date_of_birth"] = *patch.DateOfBirth
	}
	if patch.PlaceOfBirth != nil {
		fields["place_of_birth"] = strings.TrimSpace(*patch.PlaceOfBirth)
	}
	if patch.CurrentAddress != nil {
		fields["current_address"] = *patch.CurrentAddress
	}
	if patch.ContactNumber != nil {
		fields["contact_number"] = *patch.ContactNumber
	}
	if patch.CountryCode != nil {
		fields["country_code"] = *patch.CountryCode
	}
	if patch.Occupation != nil {
		fields["occupation"] = *patch.Occupation
	}
	if patch.Photo != nil {
		fields["photo"] = *patch.Photo
	}
	return fields
}
