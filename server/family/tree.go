package family

import (
	"context"
	"time"
)

// TreeNode is one person of a family tree with the spouse folded in.
type TreeNode struct {
	PersonDetails
	SpouseID string         `json:"spouse_id,omitempty"`
	Spouse   *PersonDetails `json:"spouse"`
	Children []*TreeNode    `json:"children"`
}

type PersonDetails struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Gender         Gender    `json:"gender"`
	DateOfBirth    time.Time `json:"date_of_birth"`
	Photo          string    `json:"photo,omitempty"`
	Occupation     string    `json:"occupation,omitempty"`
	CurrentAddress string    `json:"current_address,omitempty"`
	CountryCode    string    `json:"country_code"`
	ContactNumber  string    `json:"contact_number,omitempty"`
	Email          string    `json:"email,omitempty"`
}

// FamilyTree builds the trees rooted at parentless people that contain the
// person whose email is the caller's. Roots are tried oldest first and a
// person already placed in an emitted tree is pruned from every later one.
// depth counts generations below the root; deeper descendants are left out.
func (s *Service) FamilyTree(ctx context.Context, actor Actor, email string, depth int) ([]*TreeNode, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, invalidInput("user email not available")
	}
	if depth <= 0 {
		depth = s.DefaultDepth
	}

	anchors, err := s.store.Find(ctx, PersonFilter{FamilyID: actor.FamilyID, Email: email})
	if err != nil {
		return nil, err
	}
	if len(anchors) == 0 {
		return nil, notFound("person record for %s", email)
	}
	anchorID := anchors[0].ID

	roots, err := s.store.Find(ctx, PersonFilter{FamilyID: actor.FamilyID, RootsOnly: true, OrderByBirth: true})
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, notFound("no persons without parents in family %s", actor.FamilyID)
	}

	people, err := s.store.Find(ctx, PersonFilter{FamilyID: actor.FamilyID})
	if err != nil {
		return nil, err
	}
	arena := newArena(people)

	used := map[string]bool{}
	trees := []*TreeNode{}
	for _, root := range roots {
		if used[root.ID] {
			continue
		}

		visited := map[string]*TreeNode{}
		tree := arena.buildTree(root.ID, 0, depth, visited, used)
		if tree == nil || !tree.contains(anchorID) {
			continue
		}

		trees = append(trees, tree)
		tree.markUsed(used)
	}

	if len(trees) == 0 {
		return nil, notFound("no family trees containing %s", email)
	}
	return trees, nil
}

// ---------------------------------------------------------------------------------//
// Arena
// --------------------------------------------------------------------------------//

// arena holds the people of one family keyed by id. The graph it describes
// is not guaranteed to be acyclic.
type arena map[string]*Person

func newArena(people []Person) arena {
	a := make(arena, len(people))
	for i := range people {
		a[people[i].ID] = &people[i]
	}
	return a
}

// buildTree walks children depth first. A person already visited in this
// traversal yields nil, which breaks cycles and repeated descendants, and so
// does a person used by a tree emitted earlier.
func (a arena) buildTree(id string, currentDepth, depth int, visited map[string]*TreeNode, used map[string]bool) *TreeNode {
	if currentDepth > depth || id == "" || used[id] {
		return nil
	}
	if _, ok := visited[id]; ok {
		return nil
	}

	person, ok := a[id]
	if !ok {
		return nil
	}

	node := &TreeNode{PersonDetails: details(person), Children: []*TreeNode{}}
	if spouse, ok := a[person.SpouseID]; ok {
		spouseDetails := details(spouse)
		node.SpouseID = spouse.ID
		node.Spouse = &spouseDetails
	}
	visited[id] = node

	for _, childID := range person.ChildrenIDs {
		if child := a.buildTree(childID, currentDepth+1, depth, visited, used); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

func (a arena) populate(p *Person) PopulatedPerson {
	populated := PopulatedPerson{
		Person:   *p,
		Parents:  a.summaries(p.ParentIDs),
		Children: a.summaries(p.ChildrenIDs),
	}

	if spouse, ok := a[p.SpouseID]; ok {
		summary := spouse.Summary()
		populated.Spouse = &summary
	}
	return populated
}

func (a arena) summaries(ids IDSet) []PersonSummary {
	summaries := []PersonSummary{}
	for _, id := range ids {
		if p, ok := a[id]; ok {
			summaries = append(summaries, p.Summary())
		}
	}
	return summaries
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// contains reports whether id is a node or a node's spouse, breadth first.
func (node *TreeNode) contains(id string) bool {
	queue := []*TreeNode{node}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.ID == id || (current.Spouse != nil && current.Spouse.ID == id) {
			return true
		}
		queue = append(queue, current.Children...)
	}
	return false
}

func (node *TreeNode) markUsed(used map[string]bool) {
	queue := []*TreeNode{node}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		used[current.ID] = true
		if current.Spouse != nil {
			used[current.Spouse.ID] = true
		}
		queue = append(queue, current.Children...)
	}
}

func details(p *Person) PersonDetails {
	countryCode := p.CountryCode
	if countryCode == "" {
		countryCode = DEFAULT_COUNTRY_CODE
	}

	return PersonDetails{
		ID:             p.ID,
		Name:           p.Name,
		Gender:         p.Gender,
		DateOfBirth:    p.DateOfBirth,
		Photo:          p.Photo,
		Occupation:     p.Occupation,
		CurrentAddress: p.CurrentAddress,
		CountryCode:    countryCode,
		ContactNumber:  p.ContactNumber,
		Email:          p.Email,
	}
}
