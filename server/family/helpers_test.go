package family

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testNow   = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	testActor = Actor{UserID: "user-1", FamilyID: "FAMTEST", Email: "owner@family.com", Role: "admin"}
)

type principalUpdate struct {
	familyID string
	email    string
	fields   PrincipalFields
}

type stubPrincipals struct {
	byEmail map[string]*Principal
	updates []principalUpdate
}

func (sp *stubPrincipals) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	return sp.byEmail[email], nil
}

func (sp *stubPrincipals) UpdateFields(ctx context.Context, familyID, email string, fields PrincipalFields) error {
	sp.updates = append(sp.updates, principalUpdate{familyID: familyID, email: email, fields: fields})
	return nil
}

// failingStore fails the AddToSet call number failOn (1-based).
type failingStore struct {
	*MemoryStore
	calls  int
	failOn int
}

var errStoreUnavailable = errors.New("store unavailable")

func (fs *failingStore) AddToSet(ctx context.Context, familyID string, ids []string, relation Relation, values ...string) error {
	fs.calls++
	if fs.calls == fs.failOn {
		return errStoreUnavailable
	}
	return fs.MemoryStore.AddToSet(ctx, familyID, ids, relation, values...)
}

func newTestService(t *testing.T) (*Service, *MemoryStore, *stubPrincipals) {
	t.Helper()

	store := NewMemoryStore()
	store.nowFunc = func() time.Time { return testNow }
	principals := &stubPrincipals{byEmail: map[string]*Principal{}}

	svc := NewService(store, principals, zap.NewNop().Sugar())
	svc.now = func() time.Time { return testNow }
	return svc, store, principals
}

func bornYearsAgo(years int) time.Time {
	return testNow.AddDate(-years, 0, 0)
}

func newPerson(name string, gender Gender, age int) NewPerson {
	return NewPerson{Name: name, Gender: gender, DateOfBirth: bornYearsAgo(age), PlaceOfBirth: "Pune"}
}

func mustCreate(t *testing.T, svc *Service, in NewPerson) *PopulatedPerson {
	t.Helper()

	p, err := svc.CreatePerson(context.Background(), testActor, in)
	require.NoError(t, err)
	return p
}

func mustFind(t *testing.T, store PersonStore, id string) *Person {
	t.Helper()

	p, err := store.FindOne(context.Background(), testActor.FamilyID, id)
	require.NoError(t, err)
	return p
}

func requireConsistent(t *testing.T, svc *Service) {
	t.Helper()

	report, err := svc.Audit(context.Background(), testActor.FamilyID)
	require.NoError(t, err)
	require.Empty(t, report.Violations)
}

func spouseIs(id string) OptionalID {
	return OptionalID{Set: true, Value: id}
}

func parentsAre(ids ...string) OptionalIDs {
	return OptionalIDs{Set: true, Values: ids}
}

func strPtr(s string) *string {
	return &s
}
