package family

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewPerson holds the attributes of a person being created.
type NewPerson struct {
	Name           string
	Gender         Gender
	DateOfBirth    time.Time
	PlaceOfBirth   string
	CurrentAddress string
	ContactNumber  string
	CountryCode    string
	Email          string
	Occupation     string
	Photo          string
	ParentIDs      []string
	SpouseID       string
}

// PersonPatch is a partial update. Nil attributes are left untouched; the
// relationship fields only apply when Set, so an explicit null can clear them.
type PersonPatch struct {
	Name           *string
	Gender         *Gender
	DateOfBirth    *time.Time
	PlaceOfBirth   *string
	CurrentAddress *string
	ContactNumber  *string
	CountryCode    *string
	Email          *string
	Occupation     *string
	Photo          *string
	ParentIDs      OptionalIDs
	SpouseID       OptionalID
}

// OptionalID distinguishes an absent JSON field from an explicit null.
type OptionalID struct {
	Set   bool
	Value string
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

type OptionalIDs struct {
	Set    bool
	Values []string
}

func (o *OptionalIDs) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Values = nil
		return nil
	}
	return json.Unmarshal(data, &o.Values)
}

// ---------------------------------------------------------------------------------//
// Validation
// --------------------------------------------------------------------------------//

func (in *NewPerson) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.PlaceOfBirth = strings.TrimSpace(in.PlaceOfBirth)
	in.Email = normalizeEmail(in.Email)
	in.SpouseID = strings.TrimSpace(in.SpouseID)
	in.ParentIDs = nonEmpty(in.ParentIDs)
	if strings.TrimSpace(in.CountryCode) == "" {
		in.CountryCode = DEFAULT_COUNTRY_CODE
	}
}

func (in *NewPerson) validate() error {
	switch {
	case in.Name == "":
		return invalidInput("name is required")
	case !GenderMap[in.Gender]:
		return invalidInput("gender must be one of Male, Female, Other")
	case in.DateOfBirth.IsZero():
		return invalidInput("date of birth is required")
	case in.PlaceOfBirth == "":
		return invalidInput("place of birth is required")
	}

	if err := validateIDs(in.ParentIDs...); err != nil {
		return err
	}
	if in.SpouseID != "" {
		return validateIDs(in.SpouseID)
	}
	return nil
}

func (patch *PersonPatch) validate(personID string) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return invalidInput("name cannot be empty")
	}
	if patch.Gender != nil && !GenderMap[*patch.Gender] {
		return invalidInput("gender must be one of Male, Female, Other")
	}
	if patch.DateOfBirth != nil && patch.DateOfBirth.IsZero() {
		return invalidInput("date of birth cannot be empty")
	}
	if patch.PlaceOfBirth != nil && strings.TrimSpace(*patch.PlaceOfBirth) == "" {
		return invalidInput("place of birth cannot be empty")
	}

	parentIDs := nonEmpty(patch.ParentIDs.Values)
	if err := validateIDs(parentIDs...); err != nil {
		return err
	}
	if IDSet(parentIDs).Contains(personID) {
		return invalidInput("a person cannot be their own parent")
	}

	spouseID := strings.TrimSpace(patch.SpouseID.Value)
	if spouseID == "" {
		return nil
	}
	if spouseID == personID {
		return invalidInput("a person cannot be their own spouse")
	}
	return validateIDs(spouseID)
}

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return invalidInput("malformed id %q", id)
		}
	}
	return nil
}

func nonEmpty(ids []string) []string {
	out := []string{}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
