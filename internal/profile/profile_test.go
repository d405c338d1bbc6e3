package profile

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateInputValidate(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name    string
		in      UpdateInput
		wantErr bool
	}{
		{"empty update", UpdateInput{}, false},
		{"valid full", UpdateInput{
			DisplayName:   ptr("Alex"),
			Age:           ptr(27),
			RentBudgetMin: ptr(800),
			RentBudgetMax: ptr(1400),
			MoveInDate:    ptr("2026-10-01"),
			LookingFor:    []string{"quiet roommate"},
		}, false},
		{"underage", UpdateInput{Age: ptr(17)}, true},
		{"blank display name", UpdateInput{DisplayName: ptr("")}, true},
		{"budget inverted", UpdateInput{RentBudgetMin: ptr(1400), RentBudgetMax: ptr(800)}, true},
		{"bad move-in date", UpdateInput{MoveInDate: ptr("October 1st")}, true},
		{"negative budget", UpdateInput{RentBudgetMin: ptr(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate(v)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSearchParamsDefaults(t *testing.T) {
	p := SearchParams{Latitude: 30.27, Longitude: -97.74}.normalized()
	assert.Equal(t, 25.0, p.RadiusMiles)
	assert.Equal(t, 20, p.Limit)

	p = SearchParams{Latitude: 30.27, Longitude: -97.74, RadiusMiles: 10, Limit: 5}.normalized()
	assert.Equal(t, 10.0, p.RadiusMiles)
	assert.Equal(t, 5, p.Limit)
}
