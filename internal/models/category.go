package models

import (
	"fmt"
	"sort"
	"strings"
)

// Category ids of the venue taxonomy. The set is fixed reference data;
// venue_categories in the database mirrors it.
const (
	CategoryPrivateClub        = 1
	CategoryLeisureCentre      = 2
	CategoryGym                = 3
	CategoryHotelResort        = 4
	CategoryDedicatedFacility  = 5
	CategoryDontKnow           = 6
	CategorySchool             = 7
	CategoryUniversity         = 8
	CategoryCountryClub        = 9
	CategoryBusinessComplex    = 10
	CategoryResidentialComplex = 11
	CategoryMilitary           = 12
	CategoryShoppingCentre     = 13
	CategoryCommunityCentre    = 14
	CategoryOther              = 15
	CategoryHospital           = 16
)

// Category is one entry of the venue taxonomy.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var defaultCategories = []Category{
	{CategoryPrivateClub, "Private club"},
	{CategoryLeisureCentre, "Leisure centre"},
	{CategoryGym, "Gym"},
	{CategoryHotelResort, "Hotel or resort"},
	{CategoryDedicatedFacility, "Dedicated facility"},
	{CategoryDontKnow, "Don't know"},
	{CategorySchool, "School"},
	{CategoryUniversity, "University"},
	{CategoryCountryClub, "Country club"},
	{CategoryBusinessComplex, "Business complex"},
	{CategoryResidentialComplex, "Residential complex"},
	{CategoryMilitary, "Military"},
	{CategoryShoppingCentre, "Shopping centre"},
	{CategoryCommunityCentre, "Community centre"},
	{CategoryOther, "Other"},
	{CategoryHospital, "Hospital"},
}

// Taxonomy is the immutable category enumeration shared by every component
// of a run. Build it once (DefaultTaxonomy or from venue_categories) and pass
// it down.
type Taxonomy struct {
	ordered []Category
	byID    map[int]Category
}

// DefaultTaxonomy returns the built-in 16 categories.
func DefaultTaxonomy() *Taxonomy {
	t, _ := NewTaxonomy(defaultCategories)
	return t
}

// NewTaxonomy builds a taxonomy from (id, name) pairs. The gap category must
// be present because it is the pipeline's entry condition.
func NewTaxonomy(cats []Category) (*Taxonomy, error) {
	t := &Taxonomy{byID: make(map[int]Category, len(cats))}
	for _, c := range cats {
		if c.ID <= 0 || strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("invalid category %d %q", c.ID, c.Name)
		}
		if _, dup := t.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %d", c.ID)
		}
		t.byID[c.ID] = c
		t.ordered = append(t.ordered, c)
	}
	if _, ok := t.byID[CategoryDontKnow]; !ok {
		return nil, fmt.Errorf("taxonomy is missing the gap category %d", CategoryDontKnow)
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].ID < t.ordered[j].ID })
	return t, nil
}

// All returns the categories ordered by id.
func (t *Taxonomy) All() []Category {
	out := make([]Category, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Valid reports whether id is a known category.
func (t *Taxonomy) Valid(id int) bool {
	_, ok := t.byID[id]
	return ok
}

// Name resolves a category id to its label, or "" when unknown.
func (t *Taxonomy) Name(id int) string {
	return t.byID[id].Name
}

// NameOf is Name for an optional id; nil renders as "".
func (t *Taxonomy) NameOf(id *int) string {
	if id == nil {
		return ""
	}
	return t.Name(*id)
}

// IDByName looks a category up by label, case-insensitively.
func (t *Taxonomy) IDByName(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for _, c := range t.ordered {
		if strings.EqualFold(c.Name, name) {
			return c.ID, true
		}
	}
	return 0, false
}

// IsGap reports whether id is the unresolved "Don't know" category.
func IsGap(id int) bool { return id == CategoryDontKnow }
