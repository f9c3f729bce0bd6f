package family

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func violationKinds(report *AuditReport) []string {
	kinds := []string{}
	for _, v := range report.Violations {
		kinds = append(kinds, v.Kind)
	}
	return kinds
}

func TestAuditConsistentFamily(t *testing.T) {
	svc, _, _ := newTestService(t)

	a := mustCreate(t, svc, newPerson("A", MALE, 50))
	bInput := newPerson("B", FEMALE, 48)
	bInput.SpouseID = a.ID
	b := mustCreate(t, svc, bInput)
	mustCreate(t, svc, childOf(newPerson("C", FEMALE, 20), a.ID, b.ID))

	report, err := svc.Audit(context.Background(), testActor.FamilyID)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 3, report.People)
	assert.Equal(t, testActor.FamilyID, report.FamilyID)
}

func TestAuditReportsEveryViolationKind(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	familyID := testActor.FamilyID

	a := mustCreate(t, svc, newPerson("A", MALE, 50))
	b := mustCreate(t, svc, newPerson("B", FEMALE, 48))
	c := mustCreate(t, svc, newPerson("C", MALE, 20))
	d := mustCreate(t, svc, newPerson("D", FEMALE, 45))

	// c lists a as parent but a does not list c
	require.NoError(t, store.AddToSet(ctx, familyID, []string{c.ID}, PARENT_IDS, a.ID))
	// b lists c as child but c does not list b
	require.NoError(t, store.AddToSet(ctx, familyID, []string{b.ID}, CHILDREN_IDS, c.ID))
	// d points at a, a points nowhere
	_, err := store.SetSpouse(ctx, familyID, d.ID, a.ID)
	require.NoError(t, err)
	// dangling child
	require.NoError(t, store.AddToSet(ctx, familyID, []string{d.ID}, CHILDREN_IDS, uuid.NewString()))

	report, err := svc.Audit(ctx, familyID)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.ElementsMatch(t, []string{
		MISSING_CHILD_REF,
		MISSING_PARENT_REF,
		ASYMMETRIC_SPOUSE,
		DANGLING_REFERENCE,
	}, violationKinds(report))
}

func TestAuditReportsUnsharedChildrenOnce(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	familyID := testActor.FamilyID

	a := mustCreate(t, svc, newPerson("A", MALE, 50))
	b := mustCreate(t, svc, newPerson("B", FEMALE, 48))
	mustCreate(t, svc, childOf(newPerson("C", FEMALE, 20), a.ID))

	_, err := store.SetSpouse(ctx, familyID, a.ID, b.ID)
	require.NoError(t, err)
	_, err = store.SetSpouse(ctx, familyID, b.ID, a.ID)
	require.NoError(t, err)

	report, err := svc.Audit(ctx, familyID)
	require.NoError(t, err)
	assert.Equal(t, []string{UNSHARED_CHILDREN}, violationKinds(report))

	require.NoError(t, svc.MergeSpouseChildren(ctx, testActor, a.ID, b.ID))
	requireConsistent(t, svc)
}
