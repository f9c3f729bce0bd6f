package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Daskott/kinfolk/server/auth"
	"github.com/Daskott/kinfolk/server/auth/key"
	"github.com/Daskott/kinfolk/server/family"
	"github.com/Daskott/kinfolk/server/models"
	"github.com/Daskott/kinfolk/server/twilio"
	"gorm.io/gorm"
)

type signUpRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	FamilyID string `json:"family_id"`
	Role     string `json:"role"`
}

type logInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	PreviousPassword string `json:"previous_password" validate:"required"`
	NewPassword      string `json:"new_password" validate:"required,password"`
	ConfirmPassword  string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type changeEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type inviteRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Role          string `json:"role" validate:"omitempty,oneof=admin sub-admin viewer"`
	ContactNumber string `json:"contact_number"`
	CountryCode   string `json:"country_code"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin sub-admin viewer"`
}

type sessionData struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	FamilyID string `json:"family_id"`
	Role     string `json:"role"`
	Token    string `json:"token,omitempty"`
}

type invitationData struct {
	sessionData
	TempPassword string `json:"temp_password"`
	SmsSent      bool   `json:"sms_sent"`
}

func signUp(rw http.ResponseWriter, r *http.Request) {
	data := signUpRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	enrollment, err := auth.Enroll(data.FamilyID, data.Role, models.FamilyExists)
	if errors.Is(err, auth.ErrAdminInvite) || errors.Is(err, auth.ErrUnknownFamily) {
		writeError(rw, http.StatusBadRequest, "%v", err)
		return
	}
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	createAccount(rw, data, enrollment.FamilyID, enrollment.Role)
}

// joinFamily only ever grants sub-admin or viewer.
func joinFamily(rw http.ResponseWriter, r *http.Request) {
	data := signUpRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	familyID := strings.TrimSpace(data.FamilyID)
	exists, err := models.FamilyExists(familyID)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}
	if familyID == "" || !exists {
		writeError(rw, http.StatusBadRequest, "%v", auth.ErrUnknownFamily)
		return
	}

	createAccount(rw, data, familyID, auth.JoinRole(data.Role))
}

func createAccount(rw http.ResponseWriter, data signUpRequest, familyID, role string) {
	if emailInUse(rw, data.Email) {
		return
	}

	user := models.User{Name: strings.TrimSpace(data.Name), Email: data.Email, Password: data.Password, FamilyID: familyID}
	err := models.CreateUser(&user, role)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeSession(rw, &user, http.StatusCreated)
}

func logIn(rw http.ResponseWriter, r *http.Request) {
	data := logInRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(data.Email))
	passwordHash, err := models.FindUserPassword(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	if !auth.CheckPasswordHash(data.Password, passwordHash) {
		writeError(rw, http.StatusUnauthorized, "email/password is invalid")
		return
	}

	user, err := models.FindUserBy("email", email)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeSession(rw, user, http.StatusOK)
}

func familyInfo(rw http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	page, pageSize, ok := pageParams(rw, r)
	if !ok {
		return
	}

	members, paging, err := models.UsersInFamily(user.FamilyID, page, pageSize)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeData(rw, map[string]interface{}{
		"family_id": user.FamilyID,
		"members":   members,
		"paging":    paging,
	}, http.StatusOK)
}

func changePassword(rw http.ResponseWriter, r *http.Request) {
	data := changePasswordRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	user := requestUser(r)
	passwordHash, err := models.FindUserPassword(user.Email)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	if !auth.CheckPasswordHash(data.PreviousPassword, passwordHash) {
		writeError(rw, http.StatusBadRequest, "previous password is incorrect")
		return
	}

	err = user.Update(map[string]interface{}{"password": data.NewPassword})
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// changeEmail moves the account and the person record that share the old
// email to the new one.
func changeEmail(rw http.ResponseWriter, r *http.Request) {
	data := changeEmailRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	user := requestUser(r)
	email := strings.ToLower(strings.TrimSpace(data.Email))
	if email == user.Email {
		writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
		return
	}

	if emailInUse(rw, email) {
		return
	}

	people, err := personStore.Find(r.Context(), family.PersonFilter{FamilyID: user.FamilyID, Email: user.Email})
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	// the person update also renames the account
	if len(people) > 0 {
		_, err = familyService.UpdatePerson(r.Context(), requestActor(r), people[0].ID, family.PersonPatch{Email: &email})
		if err != nil {
			writeFamilyError(rw, err)
			return
		}
		writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
		return
	}

	err = user.Update(map[string]interface{}{"email": email})
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func dashboard(rw http.ResponseWriter, r *http.Request) {
	writeData(rw, map[string]string{
		"message": fmt.Sprintf("Welcome to the dashboard, %v", requestUser(r).RoleName()),
	}, http.StatusOK)
}

func jwks(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	publicJWK, err := authKeyPair.JWK()
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeJSON(rw, key.ExportJWKAsJWKS(publicJWK), http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Family members (admin only)
// --------------------------------------------------------------------------------//

func familyMembers(rw http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pageParams(rw, r)
	if !ok {
		return
	}

	members, paging, err := models.UsersInFamily(requestUser(r).FamilyID, page, pageSize)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeData(rw, map[string]interface{}{"members": members, "paging": paging}, http.StatusOK)
}

// inviteFamilyMember creates an account with a temporary password and texts
// it to the invitee when SMS is configured and a number was given.
func inviteFamilyMember(rw http.ResponseWriter, r *http.Request) {
	data := inviteRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	if data.Role == "" {
		data.Role = models.VIEWER_ROLE
	}

	if emailInUse(rw, data.Email) {
		return
	}

	admin := requestUser(r)
	tempPassword := auth.TemporaryPassword()
	user := models.User{Name: strings.TrimSpace(data.Name), Email: data.Email, Password: tempPassword, FamilyID: admin.FamilyID}

	err := models.CreateUser(&user, data.Role)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	invitation := invitationData{sessionData: newSessionData(&user, ""), TempPassword: tempPassword}

	if notifier != nil && strings.TrimSpace(data.ContactNumber) != "" {
		countryCode := data.CountryCode
		if countryCode == "" {
			countryCode = family.DEFAULT_COUNTRY_CODE
		}

		msg := fmt.Sprintf("%v invited you to the %v family tree on Kinfolk. Log in with %v and the temporary password %v",
			admin.Name, admin.FamilyID, user.Email, tempPassword)
		err = notifier.SendMessage(twilio.PhoneNumber(countryCode, data.ContactNumber), msg)
		if err != nil {
			logg.Errorf("inviteFamilyMember: unable to text %v: %v", user.Email, err)
		}
		invitation.SmsSent = err == nil
	}

	writeData(rw, invitation, http.StatusCreated)
}

func updateUserRole(rw http.ResponseWriter, r *http.Request) {
	data := roleRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	user, ok := familyMemberFromRoute(rw, r)
	if !ok {
		return
	}

	if user.ID == requestUser(r).ID {
		writeError(rw, http.StatusBadRequest, "cannot change your own role")
		return
	}

	if user.IsAdmin() && data.Role != models.ADMIN_ROLE && lastAdmin(rw, user.FamilyID) {
		return
	}

	err := user.SetRole(data.Role)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeData(rw, newSessionData(user, ""), http.StatusOK)
}

func removeUserFromFamily(rw http.ResponseWriter, r *http.Request) {
	user, ok := familyMemberFromRoute(rw, r)
	if !ok {
		return
	}

	if user.ID == requestUser(r).ID {
		writeError(rw, http.StatusBadRequest, "cannot remove yourself from family")
		return
	}

	if user.IsAdmin() && lastAdmin(rw, user.FamilyID) {
		return
	}

	err := models.DeleteUser(user.ID)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func newSessionData(user *models.User, token string) sessionData {
	return sessionData{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		FamilyID: user.FamilyID,
		Role:     user.RoleName(),
		Token:    token,
	}
}

func writeSession(rw http.ResponseWriter, user *models.User, statusCode int) {
	token, err := issueToken(user)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeData(rw, newSessionData(user, token), statusCode)
}

// emailInUse replies 400 when an account already has email.
func emailInUse(rw http.ResponseWriter, email string) bool {
	_, err := models.FindUserBy("email", strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		writeError(rw, http.StatusBadRequest, "email already in use")
		return true
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return true
	}

	return false
}

// familyMemberFromRoute loads the {id} account, which must share the
// caller's family.
func familyMemberFromRoute(rw http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, err := strconv.ParseUint(routeVar(r, "id"), 10, 64)
	if err != nil {
		writeError(rw, http.StatusBadRequest, "invalid user id")
		return nil, false
	}

	user, err := models.FindUserBy("id", id)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && user.FamilyID != requestUser(r).FamilyID) {
		writeError(rw, http.StatusNotFound, "user not found")
		return nil, false
	}
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return nil, false
	}

	return user, true
}

// lastAdmin replies 400 when the family has a single admin left.
func lastAdmin(rw http.ResponseWriter, familyID string) bool {
	count, err := models.CountUsersWithRole(familyID, models.ADMIN_ROLE)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return true
	}

	if count <= 1 {
		writeError(rw, http.StatusBadRequest, "cannot remove or demote the last admin, promote another user first")
		return true
	}

	return false
}

func pageParams(rw http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(rw, http.StatusBadRequest, "%v", err)
		return 0, 0, false
	}

	pageSize, err := queryInt(r, "page_size", 0)
	if err != nil {
		writeError(rw, http.StatusBadRequest, "%v", err)
		return 0, 0, false
	}

	return page, pageSize, true
}
