package server

import (
	"net/http"
	"strings"

	"github.com/Daskott/kinfolk/server/family"
)

type personRequest struct {
	Name           string   `json:"name" validate:"required"`
	Gender         string   `json:"gender" validate:"required,oneof=Male Female Other"`
	DateOfBirth    string   `json:"date_of_birth" validate:"required,date"`
	PlaceOfBirth   string   `json:"place_of_birth" validate:"required"`
	CurrentAddress string   `json:"current_address"`
	ContactNumber  string   `json:"contact_number"`
	CountryCode    string   `json:"country_code"`
	Email          string   `json:"email" validate:"omitempty,email"`
	Occupation     string   `json:"occupation"`
	Photo          string   `json:"photo"`
	ParentIDs      []string `json:"parent_ids"`
	SpouseID       string   `json:"spouse_id"`
}

// personPatchRequest leaves absent fields untouched; parent_ids and spouse_id
// can be cleared with an explicit null.
type personPatchRequest struct {
	Name           *string            `json:"name" validate:"omitempty,min=1"`
	Gender         *string            `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	DateOfBirth    *string            `json:"date_of_birth" validate:"omitempty,date"`
	PlaceOfBirth   *string            `json:"place_of_birth"`
	CurrentAddress *string            `json:"current_address"`
	ContactNumber  *string            `json:"contact_number"`
	CountryCode    *string            `json:"country_code"`
	Email          *string            `json:"email" validate:"omitempty,email"`
	Occupation     *string            `json:"occupation"`
	Photo          *string            `json:"photo"`
	ParentIDs      family.OptionalIDs `json:"parent_ids"`
	SpouseID       family.OptionalID  `json:"spouse_id"`
}

type mergeRequest struct {
	SpouseID string `json:"spouse_id" validate:"required"`
}

func createPerson(rw http.ResponseWriter, r *http.Request) {
	data := personRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	dateOfBirth, err := parseDate(data.DateOfBirth)
	if err != nil {
		writeError(rw, http.StatusBadRequest, "invalid date_of_birth: %v", err)
		return
	}

	person, err := familyService.CreatePerson(r.Context(), requestActor(r), family.NewPerson{
		Name:           data.Name,
		Gender:         family.Gender(data.Gender),
		DateOfBirth:    dateOfBirth,
		PlaceOfBirth:   data.PlaceOfBirth,
		CurrentAddress: data.CurrentAddress,
		ContactNumber:  data.ContactNumber,
		CountryCode:    data.CountryCode,
		Email:          data.Email,
		Occupation:     data.Occupation,
		Photo:          data.Photo,
		ParentIDs:      data.ParentIDs,
		SpouseID:       data.SpouseID,
	})
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeData(rw, person, http.StatusCreated)
}

func listPersons(rw http.ResponseWriter, r *http.Request) {
	people, err := familyService.ListPeople(r.Context(), requestActor(r))
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeData(rw, people, http.StatusOK)
}

func findPerson(rw http.ResponseWriter, r *http.Request) {
	person, err := familyService.GetPerson(r.Context(), requestActor(r), routeVar(r, "id"))
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeData(rw, person, http.StatusOK)
}

func updatePerson(rw http.ResponseWriter, r *http.Request) {
	data := personPatchRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	patch := family.PersonPatch{
		Name:           data.Name,
		PlaceOfBirth:   data.PlaceOfBirth,
		CurrentAddress: data.CurrentAddress,
		ContactNumber:  data.ContactNumber,
		CountryCode:    data.CountryCode,
		Email:          data.Email,
		Occupation:     data.Occupation,
		Photo:          data.Photo,
		ParentIDs:      data.ParentIDs,
		SpouseID:       data.SpouseID,
	}
	if data.Gender != nil {
		gender := family.Gender(*data.Gender)
		patch.Gender = &gender
	}
	if data.DateOfBirth != nil {
		dateOfBirth, err := parseDate(*data.DateOfBirth)
		if err != nil {
			writeError(rw, http.StatusBadRequest, "invalid date_of_birth: %v", err)
			return
		}
		patch.DateOfBirth = &dateOfBirth
	}

	person, err := familyService.UpdatePerson(r.Context(), requestActor(r), routeVar(r, "id"), patch)
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeData(rw, person, http.StatusOK)
}

func deletePerson(rw http.ResponseWriter, r *http.Request) {
	err := familyService.DeletePerson(r.Context(), requestActor(r), routeVar(r, "id"))
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func mergeSpouseChildren(rw http.ResponseWriter, r *http.Request) {
	data := mergeRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	err := familyService.MergeSpouseChildren(r.Context(), requestActor(r), routeVar(r, "id"), data.SpouseID)
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func eligibleSpousesNewMember(rw http.ResponseWriter, r *http.Request) {
	eligibleSpouses(rw, r, family.NEW_MEMBER)
}

func eligibleSpousesEdit(rw http.ResponseWriter, r *http.Request) {
	eligibleSpouses(rw, r, family.EDIT)
}

func eligibleSpouses(rw http.ResponseWriter, r *http.Request, mode family.SpouseMode) {
	query := r.URL.Query()

	spouses, err := familyService.EligibleSpouses(r.Context(),
		requestActor(r),
		strings.TrimSpace(query.Get("currentPersonId")),
		family.Gender(strings.TrimSpace(query.Get("currentPersonGender"))),
		mode)
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeData(rw, spouses, http.StatusOK)
}

// eligibleParents lists married couples first, one entry per couple, then
// single adults. Each group keeps store order.
func eligibleParents(rw http.ResponseWriter, r *http.Request) {
	parents, err := familyService.EligibleParents(r.Context(), requestActor(r))
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeData(rw, parents, http.StatusOK)
}

func occupations(rw http.ResponseWriter, r *http.Request) {
	list, err := familyService.Occupations(r.Context(), requestActor(r), r.URL.Query().Get("search"))
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeData(rw, list, http.StatusOK)
}

func familyTree(rw http.ResponseWriter, r *http.Request) {
	depth, err := queryInt(r, "depth", 0)
	if err != nil {
		writeError(rw, http.StatusBadRequest, "%v", err)
		return
	}

	actor := requestActor(r)
	trees, err := familyService.FamilyTree(r.Context(), actor, actor.Email, depth)
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeData(rw, trees, http.StatusOK)
}

func auditFamily(rw http.ResponseWriter, r *http.Request) {
	report, err := familyService.Audit(r.Context(), requestActor(r).FamilyID)
	if err != nil {
		writeFamilyError(rw, err)
		return
	}

	writeData(rw, report, http.StatusOK)
}
