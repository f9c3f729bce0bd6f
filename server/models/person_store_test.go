package models

import (
	"context"
	"testing"
	"time"

	"github.com/Daskott/kinfolk/server/family"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFamilyID = "FAMSTORE"

func newStorePerson(name string, gender family.Gender, born time.Time) *family.Person {
	return &family.Person{
		FamilyID:     testFamilyID,
		Name:         name,
		Gender:       gender,
		DateOfBirth:  born,
		PlaceOfBirth: "Nagpur",
	}
}

func TestPersonStoreCreateAndFind(t *testing.T) {
	InitializeTestDb()
	store := NewPersonStore()
	ctx := context.Background()

	elder := newStorePerson("Elder", family.MALE, time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC))
	younger := newStorePerson("Younger", family.FEMALE, time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC))
	younger.Email = "younger@family.com"
	younger.ParentIDs = family.IDSet{}

	require.NoError(t, store.Create(ctx, younger))
	require.NoError(t, store.Create(ctx, elder))
	assert.NotEmpty(t, elder.ID)

	found, err := store.FindOne(ctx, testFamilyID, younger.ID)
	require.NoError(t, err)
	assert.Equal(t, "Younger", found.Name)
	assert.Equal(t, family.DEFAULT_COUNTRY_CODE, found.CountryCode)
	assert.Equal(t, family.IDSet{}, found.ParentIDs)

	_, err = store.FindOne(ctx, "FAMOTHER", younger.ID)
	assert.ErrorIs(t, err, family.ErrNotFound)

	roots, err := store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, RootsOnly: true, OrderByBirth: true})
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, elder.ID, roots[0].ID)

	byEmail, err := store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, Email: "younger@family.com"})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, younger.ID, byEmail[0].ID)

	none, err := store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, IDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	bornBy := time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
	old, err := store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, BornOnOrBefore: &bornBy})
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, elder.ID, old[0].ID)
}

func TestPersonStoreRelationSets(t *testing.T) {
	InitializeTestDb()
	store := NewPersonStore()
	ctx := context.Background()

	parent := newStorePerson("Parent", family.MALE, time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC))
	child := newStorePerson("Child", family.FEMALE, time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Create(ctx, parent))
	require.NoError(t, store.Create(ctx, child))

	require.NoError(t, store.AddToSet(ctx, testFamilyID, []string{parent.ID}, family.CHILDREN_IDS, child.ID, child.ID))
	require.NoError(t, store.AddToSet(ctx, testFamilyID, []string{child.ID}, family.PARENT_IDS, parent.ID))
	require.NoError(t, store.AddToSet(ctx, "FAMOTHER", []string{child.ID}, family.PARENT_IDS, "intruder"))

	found, err := store.FindOne(ctx, testFamilyID, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, family.IDSet{child.ID}, found.ChildrenIDs)

	found, err = store.FindOne(ctx, testFamilyID, child.ID)
	require.NoError(t, err)
	assert.Equal(t, family.IDSet{parent.ID}, found.ParentIDs)

	roots, err := store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, RootsOnly: true})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, parent.ID, roots[0].ID)

	require.NoError(t, store.Pull(ctx, testFamilyID, []string{parent.ID}, family.CHILDREN_IDS, child.ID))
	found, err = store.FindOne(ctx, testFamilyID, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, found.ChildrenIDs)
}

func TestPersonStoreSpouseUpdateAndDelete(t *testing.T) {
	InitializeTestDb()
	store := NewPersonStore()
	ctx := context.Background()

	a := newStorePerson("A", family.MALE, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC))
	a.Occupation = "Farmer"
	b := newStorePerson("B", family.FEMALE, time.Date(1972, 1, 1, 0, 0, 0, 0, time.UTC))
	b.Occupation = "Teacher"
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, b))

	matched, err := store.SetSpouse(ctx, testFamilyID, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = store.SetSpouse(ctx, "FAMOTHER", a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, matched)

	married, err := store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, Married: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, married, 1)
	assert.Equal(t, a.ID, married[0].ID)

	updated, err := store.Update(ctx, testFamilyID, b.ID, map[string]interface{}{
		"name":       "Bee",
		"parent_ids": family.IDSet{a.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bee", updated.Name)
	assert.Equal(t, family.IDSet{a.ID}, updated.ParentIDs)

	_, err = store.Update(ctx, testFamilyID, b.ID, map[string]interface{}{"family_id": "FAMOTHER"})
	assert.Error(t, err)

	occupations, err := store.Occupations(ctx, testFamilyID, "teach")
	require.NoError(t, err)
	assert.Equal(t, []string{"Teacher"}, occupations)

	families, err := store.FamilyIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testFamilyID}, families)

	require.NoError(t, store.Delete(ctx, testFamilyID, a.ID))
	_, err = store.FindOne(ctx, testFamilyID, a.ID)
	assert.ErrorIs(t, err, family.ErrNotFound)
}

func TestServiceOnPersonStore(t *testing.T) {
	InitializeTestDb()
	svc := family.NewService(NewPersonStore(), NewUserDirectory(), logg)
	ctx := context.Background()
	actor := family.Actor{FamilyID: testFamilyID}

	born := func(year int) time.Time { return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC) }

	dad, err := svc.CreatePerson(ctx, actor, family.NewPerson{Name: "Dad", Gender: family.MALE, DateOfBirth: born(1960), PlaceOfBirth: "Pune", Email: "dad@family.com"})
	require.NoError(t, err)
	mom, err := svc.CreatePerson(ctx, actor, family.NewPerson{Name: "Mom", Gender: family.FEMALE, DateOfBirth: born(1962), PlaceOfBirth: "Pune", SpouseID: dad.ID})
	require.NoError(t, err)
	kid, err := svc.CreatePerson(ctx, actor, family.NewPerson{Name: "Kid", Gender: family.OTHER, DateOfBirth: born(1990), PlaceOfBirth: "Pune", ParentIDs: []string{dad.ID, mom.ID}})
	require.NoError(t, err)

	report, err := svc.Audit(ctx, testFamilyID)
	require.NoError(t, err)
	assert.Empty(t, report.Violations)

	trees, err := svc.FamilyTree(ctx, actor, "dad@family.com", 0)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, dad.ID, trees[0].ID)
	require.Len(t, trees[0].Children, 1)
	assert.Equal(t, kid.ID, trees[0].Children[0].ID)

	require.NoError(t, svc.DeletePerson(ctx, actor, dad.ID))
	report, err = svc.Audit(ctx, testFamilyID)
	require.NoError(t, err)
	assert.Empty(t, report.Violations)
}

func boolPtr(b bool) *bool {
	return &b
}

func TestPersonStoreComparesBirthDatesAsInstants(t *testing.T) {
	InitializeTestDb()
	store := NewPersonStore()
	ctx := context.Background()
	ist := time.FixedZone("IST", 5*60*60+30*60)

	turnsEighteen := newStorePerson("Turns Eighteen", family.FEMALE, time.Date(2008, 10, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Create(ctx, turnsEighteen))

	// 2008-10-15 20:30 UTC
	cutoff := time.Date(2008, 10, 16, 2, 0, 0, 0, ist)
	found, err := store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, BornOnOrBefore: &cutoff})
	require.NoError(t, err)
	assert.Empty(t, found)

	memory := family.NewMemoryStore()
	require.NoError(t, memory.Create(ctx, newStorePerson("Turns Eighteen", family.FEMALE, time.Date(2008, 10, 16, 0, 0, 0, 0, time.UTC))))
	fromMemory, err := memory.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, BornOnOrBefore: &cutoff})
	require.NoError(t, err)
	assert.Equal(t, len(fromMemory), len(found))

	cutoff = time.Date(2008, 10, 16, 5, 30, 0, 0, ist)
	found, err = store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, BornOnOrBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, turnsEighteen.ID, found[0].ID)
}

func TestPersonStoreOrdersRootsAcrossOffsets(t *testing.T) {
	InitializeTestDb()
	store := NewPersonStore()
	ctx := context.Background()
	ist := time.FixedZone("IST", 5*60*60+30*60)

	// 1960-01-01 18:30 UTC
	bornFirst := newStorePerson("Born First", family.MALE, time.Date(1960, 1, 2, 0, 0, 0, 0, ist))
	bornSecond := newStorePerson("Born Second", family.FEMALE, time.Date(1960, 1, 1, 20, 0, 0, 0, time.UTC))
	require.NoError(t, store.Create(ctx, bornFirst))
	require.NoError(t, store.Create(ctx, bornSecond))

	roots, err := store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, RootsOnly: true, OrderByBirth: true})
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, []string{bornFirst.ID, bornSecond.ID}, []string{roots[0].ID, roots[1].ID})

	updated, err := store.Update(ctx, testFamilyID, bornFirst.ID, map[string]interface{}{
		"date_of_birth": time.Date(1960, 1, 2, 5, 0, 0, 0, ist),
	})
	require.NoError(t, err)
	assert.True(t, updated.DateOfBirth.Equal(time.Date(1960, 1, 1, 23, 30, 0, 0, time.UTC)))

	roots, err = store.Find(ctx, family.PersonFilter{FamilyID: testFamilyID, RootsOnly: true, OrderByBirth: true})
	require.NoError(t, err)
	assert.Equal(t, []string{bornSecond.ID, bornFirst.ID}, []string{roots[0].ID, roots[1].ID})
}
