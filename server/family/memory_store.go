package family

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a PersonStore kept in process memory. Records are copied on
// the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	people  map[string]*Person
	order   []string
	nowFunc func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{people: make(map[string]*Person), nowFunc: time.Now}
}

func (ms *MemoryStore) Create(ctx context.Context, p *Person) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := ms.people[p.ID]; ok {
		return fmt.Errorf("person %s already exists", p.ID)
	}
	if p.ParentIDs == nil {
		p.ParentIDs = IDSet{}
	}
	if p.ChildrenIDs == nil {
		p.ChildrenIDs = IDSet{}
	}
	if p.CountryCode == "" {
		p.CountryCode = DEFAULT_COUNTRY_CODE
	}
	p.CreatedAt = ms.nowFunc()
	p.UpdatedAt = p.CreatedAt

	record := p.clone()
	ms.people[p.ID] = &record
	ms.order = append(ms.order, p.ID)
	return nil
}

func (ms *MemoryStore) FindOne(ctx context.Context, familyID, id string) (*Person, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	p := ms.lookup(familyID, id)
	if p == nil {
		return nil, notFound("person %s", id)
	}

	out := p.clone()
	return &out, nil
}

func (ms *MemoryStore) Find(ctx context.Context, filter PersonFilter) ([]Person, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	people := []Person{}
	for _, id := range ms.order {
		p := ms.people[id]
		if filter.Matches(p) {
			people = append(people, p.clone())
		}
	}

	if filter.OrderByBirth {
		sort.SliceStable(people, func(i, j int) bool {
			return people[i].DateOfBirth.Before(people[j].DateOfBirth)
		})
	}
	return people, nil
}

func (ms *MemoryStore) AddToSet(ctx context.Context, familyID string, ids []string, relation Relation, values ...string) error {
	return ms.updateSets(familyID, ids, relation, func(set IDSet) IDSet { return set.Add(values...) })
}

func (ms *MemoryStore) Pull(ctx context.Context, familyID string, ids []string, relation Relation, values ...string) error {
	return ms.updateSets(familyID, ids, relation, func(set IDSet) IDSet { return set.Remove(values...) })
}

func (ms *MemoryStore) SetSpouse(ctx context.Context, familyID, id, spouseID string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	p := ms.lookup(familyID, id)
	if p == nil {
		return false, nil
	}

	p.SpouseID = spouseID
	p.UpdatedAt = ms.nowFunc()
	return true, nil
}

func (ms *MemoryStore) Update(ctx context.Context, familyID, id string, fields map[string]interface{}) (*Person, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	p := ms.lookup(familyID, id)
	if p == nil {
		return nil, notFound("person %s", id)
	}

	updated := p.clone()
	for column, value := range fields {
		if err := setColumn(&updated, column, value); err != nil {
			return nil, err
		}
	}
	updated.UpdatedAt = ms.nowFunc()
	ms.people[id] = &updated

	out := updated.clone()
	return &out, nil
}

func (ms *MemoryStore) Delete(ctx context.Context, familyID, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.lookup(familyID, id) == nil {
		return nil
	}

	delete(ms.people, id)
	for i, v := range ms.order {
		if v == id {
			ms.order = append(ms.order[:i], ms.order[i+1:]...)
			break
		}
	}
	return nil
}

func (ms *MemoryStore) Occupations(ctx context.Context, familyID, search string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	seen := map[string]bool{}
	occupations := []string{}

	for _, id := range ms.order {
		p := ms.people[id]
		if p.FamilyID != familyID || strings.TrimSpace(p.Occupation) == "" || seen[p.Occupation] {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Occupation), search) {
			continue
		}
		seen[p.Occupation] = true
		occupations = append(occupations, p.Occupation)
	}
	return occupations, nil
}

// FamilyIDs lists every family that has at least one person, sorted.
func (ms *MemoryStore) FamilyIDs(ctx context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	seen := map[string]bool{}
	familyIDs := []string{}
	for _, p := range ms.people {
		if !seen[p.FamilyID] {
			seen[p.FamilyID] = true
			familyIDs = append(familyIDs, p.FamilyID)
		}
	}
	sort.Strings(familyIDs)
	return familyIDs, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (ms *MemoryStore) lookup(familyID, id string) *Person {
	p, ok := ms.people[id]
	if !ok || p.FamilyID != familyID {
		return nil
	}
	return p
}

func (ms *MemoryStore) updateSets(familyID string, ids []string, relation Relation, apply func(IDSet) IDSet) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, id := range ids {
		p := ms.lookup(familyID, id)
		if p == nil {
			continue
		}

		switch relation {
		case PARENT_IDS:
			p.ParentIDs = apply(p.ParentIDs)
		case CHILDREN_IDS:
			p.ChildrenIDs = apply(p.ChildrenIDs)
		default:
			return fmt.Errorf("unknown relation %q", relation)
		}
		p.UpdatedAt = ms.nowFunc()
	}
	return nil
}

func setColumn(p *Person, column string, value interface{}) error {
	var ok bool

	switch column {
	case "name":
		p.Name, ok = value.(string)
	case "gender":
		p.Gender, ok = value.(Gender)
	case "date_of_birth":
		p.DateOfBirth, ok = value.(time.Time)
	case "place_of_birth":
		p.PlaceOfBirth, ok = value.(string)
	case "current_address":
		p.CurrentAddress, ok = value.(string)
	case "contact_number":
		p.ContactNumber, ok = value.(string)
	case "country_code":
		p.CountryCode, ok = value.(string)
	case "email":
		p.Email, ok = value.(string)
	case "occupation":
		p.Occupation, ok = value.(string)
	case "photo":
		p.Photo, ok = value.(string)
	case "spouse_id":
		p.SpouseID, ok = value.(string)
	case "parent_ids":
		var ids IDSet
		ids, ok = value.(IDSet)
		p.ParentIDs = ids.Clone()
	default:
		return fmt.Errorf("column %q is not updatable", column)
	}

	if !ok {
		return fmt.Errorf("column %q: unexpected value type %T", column, value)
	}
	return nil
}
