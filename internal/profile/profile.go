package profile

import (
	"fmt"
	"time"
)

// Profile is a user's roommate-search profile. Most fields are optional
// until the user finishes onboarding; IsComplete gates discovery.
type Profile struct {
	ID                   string         `json:"id"`
	Email                string         `json:"email,omitempty"`
	FullName             string         `json:"full_name,omitempty"`
	DisplayName          string         `json:"display_name,omitempty"`
	AvatarURL            string         `json:"avatar_url,omitempty"`
	Bio                  string         `json:"bio,omitempty"`
	Age                  int            `json:"age,omitempty"`
	Location             string         `json:"location,omitempty"`
	Latitude             float64        `json:"latitude,omitempty"`
	Longitude            float64        `json:"longitude,omitempty"`
	SearchLocation       string         `json:"search_location,omitempty"`
	SearchRadius         int            `json:"search_radius,omitempty"`
	RentBudgetMin        int            `json:"rent_budget_min,omitempty"`
	RentBudgetMax        int            `json:"rent_budget_max,omitempty"`
	MoveInDate           string         `json:"move_in_date,omitempty"`
	LifestylePreferences map[string]any `json:"lifestyle_preferences,omitempty"`
	LookingFor           []string       `json:"looking_for,omitempty"`
	AmenitiesWanted      []string       `json:"amenities_wanted,omitempty"`
	DealBreakers         []string       `json:"deal_breakers,omitempty"`
	IsComplete           bool           `json:"is_profile_complete"`
	CreatedAt            time.Time      `json:"created_at,omitempty"`
	UpdatedAt            time.Time      `json:"updated_at,omitempty"`
}

// UpdateInput is the validated mutable subset of Profile. Pointer fields
// distinguish "leave unchanged" from "set to zero".
type UpdateInput struct {
	DisplayName          *string        `json:"display_name,omitempty" validate:"omitempty,min=1,max=80"`
	AvatarURL            *string        `json:"avatar_url,omitempty" validate:"omitempty,url"`
	FullName             *string        `json:"full_name,omitempty" validate:"omitempty,max=120"`
	Bio                  *string        `json:"bio,omitempty" validate:"omitempty,max=2000"`
	Age                  *int           `json:"age,omitempty" validate:"omitempty,gte=18,lte=120"`
	Location             *string        `json:"location,omitempty" validate:"omitempty,max=200"`
	RentBudgetMin        *int           `json:"rent_budget_min,omitempty" validate:"omitempty,gte=0"`
	RentBudgetMax        *int           `json:"rent_budget_max,omitempty" validate:"omitempty,gte=0"`
	MoveInDate           *string        `json:"move_in_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	LifestylePreferences map[string]any `json:"lifestyle_preferences,omitempty"`
	LookingFor           []string       `json:"looking_for,omitempty" validate:"omitempty,dive,max=60"`
	AmenitiesWanted      []string       `json:"amenities_wanted,omitempty" validate:"omitempty,dive,max=60"`
	DealBreakers         []string       `json:"deal_breakers,omitempty" validate:"omitempty,dive,max=60"`
	IsComplete           *bool          `json:"is_profile_complete,omitempty"`
}

// Validate applies field rules plus the budget ordering constraint.
func (in *UpdateInput) Validate(v StructValidator) error {
	if err := v.Struct(in); err != nil {
		return err
	}
	if in.RentBudgetMin != nil && in.RentBudgetMax != nil && *in.RentBudgetMax < *in.RentBudgetMin {
		return fmt.Errorf("rent_budget_max %d below rent_budget_min %d", *in.RentBudgetMax, *in.RentBudgetMin)
	}
	return nil
}

// StructValidator is the slice of validator.Validate the package uses.
type StructValidator interface {
	Struct(s any) error
}

// SearchResult is a discovered profile annotated with its distance from
// the search origin, in miles.
type SearchResult struct {
	Profile
	Distance float64 `json:"distance"`
}

// SearchParams are the roommate search inputs.
type SearchParams struct {
	Latitude    float64
	Longitude   float64
	RadiusMiles float64
	Limit       int
}

func (p SearchParams) normalized() SearchParams {
	if p.RadiusMiles <= 0 {
		p.RadiusMiles = 25
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	return p
}
