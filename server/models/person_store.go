package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Daskott/kinfolk/server/family"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PersonStore keeps people in the sqlite db. Relationship sets live in JSON
// text columns and are rewritten inside a transaction.
type PersonStore struct {
	db *gorm.DB
}

func NewPersonStore() *PersonStore {
	return &PersonStore{db: db}
}

func (ps *PersonStore) Create(ctx context.Context, p *family.Person) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ParentIDs == nil {
		p.ParentIDs = family.IDSet{}
	}
	if p.ChildrenIDs == nil {
		p.ChildrenIDs = family.IDSet{}
	}
	if p.CountryCode == "" {
		p.CountryCode = family.DEFAULT_COUNTRY_CODE
	}
	p.DateOfBirth = p.DateOfBirth.UTC()

	return errors.Wrap(ps.db.WithContext(ctx).Create(p).Error, "create person")
}

func (ps *PersonStore) FindOne(ctx context.Context, familyID, id string) (*family.Person, error) {
	person := family.Person{}
	err := ps.db.WithContext(ctx).Scopes(inFamily(familyID)).First(&person, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: person %s", family.ErrNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find person %s", id)
	}

	return &person, nil
}

func (ps *PersonStore) Find(ctx context.Context, filter family.PersonFilter) ([]family.Person, error) {
	people := []family.Person{}
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return people, nil
	}

	err := ps.db.WithContext(ctx).Scopes(personFilter(filter)).Find(&people).Error
	if err != nil {
		return nil, errors.Wrap(err, "find people")
	}

	return people, nil
}

func (ps *PersonStore) AddToSet(ctx context.Context, familyID string, ids []string, relation family.Relation, values ...string) error {
	return ps.updateSets(ctx, familyID, ids, relation, func(set family.IDSet) family.IDSet {
		return set.Add(values...)
	})
}

func (ps *PersonStore) Pull(ctx context.Context, familyID string, ids []string, relation family.Relation, values ...string) error {
	return ps.updateSets(ctx, familyID, ids, relation, func(set family.IDSet) family.IDSet {
		return set.Remove(values...)
	})
}

func (ps *PersonStore) SetSpouse(ctx context.Context, familyID, id, spouseID string) (bool, error) {
	res := ps.db.WithContext(ctx).Model(&family.Person{}).
		Scopes(inFamily(familyID)).
		Where("id = ?", id).
		Update("spouse_id", spouseID)

	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "set spouse of %s", id)
	}

	return res.RowsAffected > 0, nil
}

func (ps *PersonStore) Update(ctx context.Context, familyID, id string, fields map[string]interface{}) (*family.Person, error) {
	columns := []string{}
	for column := range fields {
		if !family.UpdatableFields[column] {
			return nil, fmt.Errorf("column %q is not updatable", column)
		}
		columns = append(columns, column)
	}
	if dateOfBirth, ok := fields["date_of_birth"].(time.Time); ok {
		fields["date_of_birth"] = dateOfBirth.UTC()
	}

	res := ps.db.WithContext(ctx).Model(&family.Person{}).
		Scopes(inFamily(familyID)).
		Where("id = ?", id).
		Select(columns).
		Updates(fields)

	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "update person %s", id)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: person %s", family.ErrNotFound, id)
	}

	return ps.FindOne(ctx, familyID, id)
}

func (ps *PersonStore) Delete(ctx context.Context, familyID, id string) error {
	err := ps.db.WithContext(ctx).Scopes(inFamily(familyID)).Delete(&family.Person{}, "id = ?", id).Error
	return errors.Wrapf(err, "delete person %s", id)
}

func (ps *PersonStore) Occupations(ctx context.Context, familyID, search string) ([]string, error) {
	occupations := []string{}

	query := ps.db.WithContext(ctx).Model(&family.Person{}).
		Scopes(inFamily(familyID)).
		Where("occupation IS NOT NULL AND TRIM(occupation) <> ''")

	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		query = query.Where("LOWER(occupation) LIKE ?", "%"+search+"%")
	}

	err := query.Distinct("occupation").Pluck("occupation", &occupations).Error
	if err != nil {
		return nil, errors.Wrap(err, "list occupations")
	}

	return occupations, nil
}

// FamilyIDs lists every family that has at least one person.
func (ps *PersonStore) FamilyIDs(ctx context.Context) ([]string, error) {
	familyIDs := []string{}
	err := ps.db.WithContext(ctx).Model(&family.Person{}).Distinct("family_id").Pluck("family_id", &familyIDs).Error
	return familyIDs, errors.Wrap(err, "list families")
}

// ---------------------------------------------------------------------------------//
// Scopes
// --------------------------------------------------------------------------------//

func personFilter(filter family.PersonFilter) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Scopes(inFamily(filter.FamilyID))

		if filter.IDs != nil {
			db = db.Where("id IN ?", filter.IDs)
		}
		if filter.ExcludeID != "" {
			db = db.Where("id <> ?", filter.ExcludeID)
		}
		if filter.Email != "" {
			db = db.Where("email = ?", filter.Email)
		}
		if filter.Gender != "" {
			db = db.Where("gender = ?", filter.Gender)
		}
		if filter.BornOnOrBefore != nil {
			// dates are stored as text, so compare in the zone they were written in
			db = db.Where("date_of_birth <= ?", filter.BornOnOrBefore.UTC())
		}
		if filter.Married != nil {
			if *filter.Married {
				db = db.Where("spouse_id <> ''")
			} else {
				db = db.Where("(spouse_id = '' OR spouse_id IS NULL)")
			}
		}
		if filter.RootsOnly {
			db = db.Where("(parent_ids = '[]' OR parent_ids = '' OR parent_ids IS NULL)")
		}

		if filter.OrderByBirth {
			return db.Order("date_of_birth").Order("created_at")
		}
		return db.Order("created_at")
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (ps *PersonStore) updateSets(ctx context.Context, familyID string, ids []string, relation family.Relation, apply func(family.IDSet) family.IDSet) error {
	if relation != family.PARENT_IDS && relation != family.CHILDREN_IDS {
		return fmt.Errorf("unknown relation %q", relation)
	}
	if len(ids) == 0 {
		return nil
	}

	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		people := []family.Person{}
		err := tx.Select("id", string(relation)).Scopes(inFamily(familyID)).Find(&people, "id IN ?", ids).Error
		if err != nil {
			return err
		}

		for _, p := range people {
			current := p.ParentIDs
			if relation == family.CHILDREN_IDS {
				current = p.ChildrenIDs
			}

			next := apply(current.Clone())
			if next.Equal(current) && len(next) == len(current) {
				continue
			}

			err := tx.Model(&family.Person{}).Where("id = ?", p.ID).Update(string(relation), next).Error
			if err != nil {
				return err
			}
		}
		return nil
	})

	return errors.Wrapf(err, "update %s", relation)
}
