package family

import (
	"context"
	"fmt"
)

const (
	MISSING_CHILD_REF  = "missing-child-reference"
	MISSING_PARENT_REF = "missing-parent-reference"
	ASYMMETRIC_SPOUSE  = "asymmetric-spouse"
	UNSHARED_CHILDREN  = "unshared-children"
	DANGLING_REFERENCE = "dangling-reference"
)

type Violation struct {
	Kind      string `json:"kind"`
	PersonID  string `json:"person_id"`
	RelatedID string `json:"related_id"`
	Detail    string `json:"detail"`
}

type AuditReport struct {
	FamilyID   string      `json:"family_id"`
	People     int         `json:"people"`
	Violations []Violation `json:"violations"`
}

func (r *AuditReport) Consistent() bool {
	return len(r.Violations) == 0
}

// Audit checks every relationship of a family against the graph invariants.
// It only reads; a partially propagated mutation shows up here.
func (s *Service) Audit(ctx context.Context, familyID string) (*AuditReport, error) {
	people, err := s.store.Find(ctx, PersonFilter{FamilyID: familyID})
	if err != nil {
		return nil, err
	}

	a := newArena(people)
	report := &AuditReport{FamilyID: familyID, People: len(people), Violations: []Violation{}}
	add := func(kind string, p *Person, relatedID, format string, args ...interface{}) {
		report.Violations = append(report.Violations, Violation{
			Kind:      kind,
			PersonID:  p.ID,
			RelatedID: relatedID,
			Detail:    fmt.Sprintf(format, args...),
		})
	}

	for i := range people {
		p := &people[i]

		for _, parentID := range p.ParentIDs {
			parent, ok := a[parentID]
			if !ok {
				add(DANGLING_REFERENCE, p, parentID, "parent %s does not exist", parentID)
				continue
			}
			if !parent.ChildrenIDs.Contains(p.ID) {
				add(MISSING_CHILD_REF, p, parentID, "parent %s does not list %s as a child", parentID, p.ID)
			}
		}

		for _, childID := range p.ChildrenIDs {
			child, ok := a[childID]
			if !ok {
				add(DANGLING_REFERENCE, p, childID, "child %s does not exist", childID)
				continue
			}
			if !child.ParentIDs.Contains(p.ID) {
				add(MISSING_PARENT_REF, p, childID, "child %s does not list %s as a parent", childID, p.ID)
			}
		}

		if p.SpouseID == "" {
			continue
		}

		spouse, ok := a[p.SpouseID]
		if !ok {
			add(DANGLING_REFERENCE, p, p.SpouseID, "spouse %s does not exist", p.SpouseID)
			continue
		}
		if spouse.SpouseID != p.ID {
			add(ASYMMETRIC_SPOUSE, p, spouse.ID, "spouse %s is linked to %q", spouse.ID, spouse.SpouseID)
			continue
		}
		// each couple is reported once
		if p.ID < spouse.ID && !p.ChildrenIDs.Equal(spouse.ChildrenIDs) {
			add(UNSHARED_CHILDREN, p, spouse.ID, "children differ from spouse %s", spouse.ID)
		}
	}

	return report, nil
}
