package auth

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	ADMIN_ROLE     = "admin"
	SUB_ADMIN_ROLE = "sub-admin"
	VIEWER_ROLE    = "viewer"

	FAMILY_ID_PREFIX = "FAM"
)

var (
	ErrAdminInvite   = errors.New("cannot invite another admin to an existing family")
	ErrUnknownFamily = errors.New("invalid family id")
)

// Enrollment is the outcome of a signup: the family and role the new account
// gets, and whether the family is being created.
type Enrollment struct {
	FamilyID  string
	Role      string
	NewFamily bool
}

type enrollmentRule struct {
	matches func(familyID, role string) bool
	decide  func(familyID, role string) (Enrollment, error)
}

// enrollmentTable is checked top to bottom; the first matching rule decides.
var enrollmentTable = []enrollmentRule{
	{
		matches: func(familyID, role string) bool { return familyID == "" },
		decide: func(familyID, role string) (Enrollment, error) {
			return Enrollment{FamilyID: NewFamilyID(), Role: ADMIN_ROLE, NewFamily: true}, nil
		},
	},
	{
		matches: func(familyID, role string) bool { return role == ADMIN_ROLE },
		decide: func(familyID, role string) (Enrollment, error) {
			return Enrollment{}, ErrAdminInvite
		},
	},
	{
		matches: func(familyID, role string) bool { return role == SUB_ADMIN_ROLE || role == VIEWER_ROLE },
		decide: func(familyID, role string) (Enrollment, error) {
			return Enrollment{FamilyID: familyID, Role: role}, nil
		},
	},
	{
		matches: func(familyID, role string) bool { return true },
		decide: func(familyID, role string) (Enrollment, error) {
			return Enrollment{FamilyID: familyID, Role: VIEWER_ROLE}, nil
		},
	},
}

// Enroll decides the family and role of a signup. familyExists is only
// consulted when joining an existing family.
func Enroll(familyID, role string, familyExists func(string) (bool, error)) (Enrollment, error) {
	familyID = strings.TrimSpace(familyID)
	role = strings.ToLower(strings.TrimSpace(role))

	var enrollment Enrollment
	var err error
	for _, rule := range enrollmentTable {
		if rule.matches(familyID, role) {
			enrollment, err = rule.decide(familyID, role)
			break
		}
	}
	if err != nil || enrollment.NewFamily {
		return enrollment, err
	}

	exists, err := familyExists(enrollment.FamilyID)
	if err != nil {
		return Enrollment{}, err
	}
	if !exists {
		return Enrollment{}, ErrUnknownFamily
	}

	return enrollment, nil
}

// JoinRole is the role granted when joining through the invite-only flow;
// anything but sub-admin becomes viewer.
func JoinRole(role string) string {
	if strings.ToLower(strings.TrimSpace(role)) == SUB_ADMIN_ROLE {
		return SUB_ADMIN_ROLE
	}
	return VIEWER_ROLE
}

// NewFamilyID returns FAM followed by the base36 time in milliseconds and six
// random base36 characters, upper-cased.
func NewFamilyID() string {
	timestamp := strconv.FormatInt(time.Now().UnixNano()/int64(time.Millisecond), 36)
	return strings.ToUpper(FAMILY_ID_PREFIX + timestamp + randomBase36(6))
}

// TemporaryPassword is the password handed to an invited member.
func TemporaryPassword() string {
	return randomBase36(8)
}

func randomBase36(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
