package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/Daskott/kinfolk/server/auth"
	"github.com/Daskott/kinfolk/server/family"
	"github.com/Daskott/kinfolk/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUpAndLogIn(t *testing.T) {
	resetFamilyGraph(t)
	router := newRouter()
	email := uniqueEmail("ada")

	rec, payload := doRequest(t, router, "POST", "/api/auth/signup", "", map[string]string{
		"name": "Ada", "email": email, "password": "secret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, payload.Errors)

	session := sessionData{}
	decodeData(t, payload, &session)
	assert.Equal(t, models.ADMIN_ROLE, session.Role)
	assert.True(t, strings.HasPrefix(session.FamilyID, auth.FAMILY_ID_PREFIX))
	assert.NotEmpty(t, session.Token)

	rec, _ = doRequest(t, router, "POST", "/api/auth/signup", "", map[string]string{
		"name": "Ada", "email": email, "password": "secret-pass",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, router, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, payload = doRequest(t, router, "POST", "/api/auth/login", "", map[string]string{"email": strings.ToUpper(email), "password": "secret-pass"})
	require.Equal(t, http.StatusOK, rec.Code, payload.Errors)

	login := sessionData{}
	decodeData(t, payload, &login)
	assert.Equal(t, session.ID, login.ID)
	assert.Equal(t, session.FamilyID, login.FamilyID)

	rec, payload = doRequest(t, router, "GET", "/api/dashboard", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(payload.Data), "admin")
}

func TestSignUpIntoExistingFamily(t *testing.T) {
	resetFamilyGraph(t)
	router := newRouter()
	admin := signUpAccount(t, router, "grace", "", "")

	cases := []struct {
		name     string
		familyID string
		role     string
		status   int
		wantRole string
	}{
		{"admin invite is rejected", admin.FamilyID, "admin", http.StatusBadRequest, ""},
		{"unknown family is rejected", "FAMNOPE", "viewer", http.StatusBadRequest, ""},
		{"sub-admin is kept", admin.FamilyID, "sub-admin", http.StatusCreated, models.SUB_ADMIN_ROLE},
		{"unknown role becomes viewer", admin.FamilyID, "owner", http.StatusCreated, models.VIEWER_ROLE},
	}

	for _, tcase := range cases {
		t.Run(tcase.name, func(t *testing.T) {
			rec, payload := doRequest(t, router, "POST", "/api/auth/signup", "", map[string]string{
				"name": "Member", "email": uniqueEmail("member"), "password": "secret-pass",
				"family_id": tcase.familyID, "role": tcase.role,
			})
			require.Equal(t, tcase.status, rec.Code, payload.Errors)

			if tcase.wantRole != "" {
				session := sessionData{}
				decodeData(t, payload, &session)
				assert.Equal(t, tcase.wantRole, session.Role)
				assert.Equal(t, admin.FamilyID, session.FamilyID)
			}
		})
	}
}

func TestJoinFamily(t *testing.T) {
	resetFamilyGraph(t)
	router := newRouter()
	admin := signUpAccount(t, router, "joan", "", "")

	rec, payload := doRequest(t, router, "POST", "/api/auth/join-family", "", map[string]string{
		"name": "Kid", "email": uniqueEmail("kid"), "password": "secret-pass",
		"family_id": admin.FamilyID, "role": "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, payload.Errors)

	session := sessionData{}
	decodeData(t, payload, &session)
	assert.Equal(t, models.VIEWER_ROLE, session.Role)

	rec, _ = doRequest(t, router, "POST", "/api/auth/join-family", "", map[string]string{
		"name": "Kid", "email": uniqueEmail("kid"), "password": "secret-pass",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignUpValidation(t *testing.T) {
	router := newRouter()

	rec, payload := doRequest(t, router, "POST", "/api/auth/signup", "", map[string]string{
		"name": "Short", "email": uniqueEmail("short"), "password": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, payload.Errors)

	rec, _ = doRequest(t, router, "POST", "/api/auth/signup", "", map[string]string{
		"name": "Spaces", "email": uniqueEmail("spaces"), "password": "has spaces",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, router, "POST", "/api/auth/signup", "", map[string]string{
		"name": "Bad", "email": "not-an-email", "password": "secret-pass",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangePassword(t *testing.T) {
	router := newRouter()
	user := signUpAccount(t, router, "hopper", "", "")

	rec, _ := doRequest(t, router, "PUT", "/api/auth/change-password", user.Token, map[string]string{
		"previous_password": "secret-pass", "new_password": "newer-pass", "confirm_password": "other-pass",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, router, "PUT", "/api/auth/change-password", user.Token, map[string]string{
		"previous_password": "wrong-pass", "new_password": "newer-pass", "confirm_password": "newer-pass",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, payload := doRequest(t, router, "PUT", "/api/auth/change-password", user.Token, map[string]string{
		"previous_password": "secret-pass", "new_password": "newer-pass", "confirm_password": "newer-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, payload.Errors)

	rec, _ = doRequest(t, router, "POST", "/api/auth/login", "", map[string]string{"email": user.Email, "password": "newer-pass"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangeEmailRenamesLinkedPerson(t *testing.T) {
	store := resetFamilyGraph(t)
	router := newRouter()
	user := signUpAccount(t, router, "lovelace", "", "")
	other := signUpAccount(t, router, "babbage", "", "")

	rec, payload := doRequest(t, router, "POST", "/api/persons", user.Token, map[string]interface{}{
		"name": "Lovelace", "gender": "Female", "date_of_birth": "1985-12-10",
		"place_of_birth": "London", "email": user.Email,
	})
	require.Equal(t, http.StatusCreated, rec.Code, payload.Errors)

	rec, _ = doRequest(t, router, "PUT", "/api/auth/change-email", user.Token, map[string]string{"email": other.Email})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	newEmail := uniqueEmail("countess")
	rec, payload = doRequest(t, router, "PUT", "/api/auth/change-email", user.Token, map[string]string{"email": strings.ToUpper(newEmail)})
	require.Equal(t, http.StatusOK, rec.Code, payload.Errors)

	account, err := models.FindUserBy("id", user.ID)
	require.NoError(t, err)
	assert.Equal(t, newEmail, account.Email)

	people, err := store.Find(context.Background(), family.PersonFilter{FamilyID: user.FamilyID})
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, newEmail, people[0].Email)
}

func TestFamilyMembersAndInvite(t *testing.T) {
	resetFamilyGraph(t)
	sms := &stubNotifier{}
	notifier = sms
	router := newRouter()
	admin := signUpAccount(t, router, "turing", "", "")

	rec, payload := doRequest(t, router, "POST", "/api/users/invite", admin.Token, map[string]string{
		"name": "Invitee", "email": uniqueEmail("invitee"), "role": "sub-admin",
		"contact_number": "98765 43210",
	})
	require.Equal(t, http.StatusCreated, rec.Code, payload.Errors)

	invitation := invitationData{}
	decodeData(t, payload, &invitation)
	assert.Equal(t, models.SUB_ADMIN_ROLE, invitation.Role)
	assert.Len(t, invitation.TempPassword, 8)
	assert.True(t, invitation.SmsSent)
	require.Len(t, sms.to, 1)
	assert.Equal(t, "+919876543210", sms.to[0])
	assert.Contains(t, sms.msgs[0], invitation.TempPassword)

	sms.err = errors.New("undeliverable")
	rec, payload = doRequest(t, router, "POST", "/api/users/invite", admin.Token, map[string]string{
		"name": "Second", "email": uniqueEmail("second"), "contact_number": "+1 416 555 0100",
	})
	require.Equal(t, http.StatusCreated, rec.Code, payload.Errors)
	second := invitationData{}
	decodeData(t, payload, &second)
	assert.Equal(t, models.VIEWER_ROLE, second.Role)
	assert.False(t, second.SmsSent)

	rec, payload = doRequest(t, router, "GET", "/api/users/family-members", admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, payload.Errors)
	members := struct {
		Members []models.User `json:"members"`
		Paging  models.Paging `json:"paging"`
	}{}
	decodeData(t, payload, &members)
	assert.Len(t, members.Members, 3)
	assert.EqualValues(t, 3, members.Paging.Total)
	for _, member := range members.Members {
		assert.Empty(t, member.Password)
	}

	rec, payload = doRequest(t, router, "POST", "/api/auth/login", "", map[string]string{"email": invitation.Email, "password": invitation.TempPassword})
	require.Equal(t, http.StatusOK, rec.Code, payload.Errors)
	invitee := sessionData{}
	decodeData(t, payload, &invitee)

	rec, _ = doRequest(t, router, "GET", "/api/users/family-members", invitee.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateUserRoleAndRemove(t *testing.T) {
	resetFamilyGraph(t)
	router := newRouter()
	admin := signUpAccount(t, router, "liskov", "", "")
	viewer := signUpAccount(t, router, "viewer", admin.FamilyID, "viewer")
	outsider := signUpAccount(t, router, "outsider", "", "")

	userURL := func(id uint) string { return fmt.Sprintf("/api/users/%d", id) }

	rec, _ := doRequest(t, router, "PUT", userURL(admin.ID)+"/role", admin.Token, map[string]string{"role": "viewer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "cannot change own role")

	rec, _ = doRequest(t, router, "PUT", userURL(outsider.ID)+"/role", admin.Token, map[string]string{"role": "viewer"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "other family")

	rec, _ = doRequest(t, router, "PUT", userURL(viewer.ID)+"/role", admin.Token, map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, payload := doRequest(t, router, "PUT", userURL(viewer.ID)+"/role", admin.Token, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code, payload.Errors)

	// two admins now, so the promoted one may demote the first
	rec, payload = doRequest(t, router, "PUT", userURL(admin.ID)+"/role", viewer.Token, map[string]string{"role": "sub-admin"})
	require.Equal(t, http.StatusOK, rec.Code, payload.Errors)

	rec, _ = doRequest(t, router, "DELETE", userURL(viewer.ID), viewer.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "cannot remove yourself")

	rec, payload = doRequest(t, router, "DELETE", userURL(admin.ID), viewer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, payload.Errors)

	rec, _ = doRequest(t, router, "GET", "/api/dashboard", admin.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "deleted account token")
}

func TestLastAdminIsProtected(t *testing.T) {
	resetFamilyGraph(t)
	router := newRouter()
	admin := signUpAccount(t, router, "dijkstra", "", "")
	subAdmin := signUpAccount(t, router, "sub", admin.FamilyID, "sub-admin")

	// a sub-admin cannot reach user management at all
	rec, _ := doRequest(t, router, "DELETE", fmt.Sprintf("/api/users/%d", admin.ID), subAdmin.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	count, err := models.CountUsersWithRole(admin.FamilyID, models.ADMIN_ROLE)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestJwks(t *testing.T) {
	router := newRouter()

	rec, _ := doRequest(t, router, "GET", "/jwks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kid":"kinfolk-key-id"`)
	assert.Contains(t, rec.Body.String(), `"alg":"RS256"`)
}
