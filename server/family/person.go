package family

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Gender string

const (
	MALE   Gender = "Male"
	FEMALE Gender = "Female"
	OTHER  Gender = "Other"

	DEFAULT_COUNTRY_CODE = "+91"
)

var GenderMap = map[Gender]bool{
	MALE:   true,
	FEMALE: true,
	OTHER:  true,
}

// Person is one node of a family graph. Relationships are stored on both
// endpoints, and only the Maintainer writes ParentIDs, ChildrenIDs or SpouseID.
type Person struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FamilyID       string    `json:"family_id" gorm:"not null;index"`
	Name           string    `json:"name" gorm:"not null"`
	Gender         Gender    `json:"gender" gorm:"not null"`
	DateOfBirth    time.Time `json:"date_of_birth" gorm:"not null;index"`
	PlaceOfBirth   string    `json:"place_of_birth" gorm:"not null"`
	CurrentAddress string    `json:"current_address,omitempty"`
	ContactNumber  string    `json:"contact_number,omitempty"`
	CountryCode    string    `json:"country_code" gorm:"default:+91"`
	Email          string    `json:"email,omitempty" gorm:"index"`
	Occupation     string    `json:"occupation,omitempty"`
	Photo          string    `json:"photo,omitempty"`
	ParentIDs      IDSet     `json:"parent_ids" gorm:"type:text;not null"`
	ChildrenIDs    IDSet     `json:"children_ids" gorm:"type:text;not null"`
	SpouseID       string    `json:"spouse_id,omitempty" gorm:"type:varchar(36);not null;default:''"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

func (p *Person) IsRoot() bool {
	return len(p.ParentIDs) == 0
}

func (p *Person) Married() bool {
	return p.SpouseID != ""
}

func (p *Person) Summary() PersonSummary {
	return PersonSummary{ID: p.ID, Name: p.Name, Gender: p.Gender, DateOfBirth: p.DateOfBirth}
}

func (p *Person) clone() Person {
	c := *p
	c.ParentIDs = p.ParentIDs.Clone()
	c.ChildrenIDs = p.ChildrenIDs.Clone()
	return c
}

// PersonSummary is the projection used when a relation is populated.
type PersonSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Gender      Gender    `json:"gender,omitempty"`
	DateOfBirth time.Time `json:"date_of_birth,omitempty"`
}

// PopulatedPerson is a Person whose relation ids have been resolved.
type PopulatedPerson struct {
	Person
	Parents  []PersonSummary `json:"parents"`
	Spouse   *PersonSummary  `json:"spouse"`
	Children []PersonSummary `json:"children"`
}

// ---------------------------------------------------------------------------------//
// IDSet
// --------------------------------------------------------------------------------//

// IDSet is an ordered set of person ids. It is persisted as a JSON array.
type IDSet []string

func NewIDSet(ids ...string) IDSet {
	set := IDSet{}
	return set.Add(ids...)
}

func (s IDSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends the ids not already present, skipping empty ones.
func (s IDSet) Add(ids ...string) IDSet {
	for _, id := range ids {
		if id == "" || s.Contains(id) {
			continue
		}
		s = append(s, id)
	}
	return s
}

func (s IDSet) Remove(ids ...string) IDSet {
	out := IDSet{}
	for _, v := range s {
		if !IDSet(ids).Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

// Minus returns the ids in s that are not in other.
func (s IDSet) Minus(other IDSet) IDSet {
	out := IDSet{}
	for _, v := range s {
		if !other.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

func (s IDSet) Equal(other IDSet) bool {
	return len(s.Minus(other)) == 0 && len(other.Minus(s)) == 0
}

func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	copy(out, s)
	return out
}

func (s IDSet) Value() (driver.Value, error) {
	if s == nil {
		s = IDSet{}
	}

	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *IDSet) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = IDSet{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("IDSet: unsupported type %T", value)
	}

	if len(raw) == 0 {
		*s = IDSet{}
		return nil
	}

	ids := []string{}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("IDSet: %v", err)
	}
	*s = NewIDSet(ids...)
	return nil
}
