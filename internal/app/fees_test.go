package app

import (
	"testing"

	"github.com/meritcollege/payment-service/internal/domain"
)

func TestExpectedAmount(t *testing.T) {
	schedule := &domain.FeeSchedule{
		JAMBFee:         500000,
		ALevelFee:       750000,
		OLevelFee:       400000,
		SubscriptionFee: 150000,
	}

	tests := []struct {
		name        string
		purpose     domain.Purpose
		programType domain.ProgramType
		want        int64
	}{
		{
			name:        "jamb program fee",
			purpose:     domain.PurposeProgramFee,
			programType: domain.ProgramJAMB,
			want:        500000,
		},
		{
			name:        "a-level program fee",
			purpose:     domain.PurposeProgramFee,
			programType: domain.ProgramALevel,
			want:        750000,
		},
		{
			name:        "o-level program fee",
			purpose:     domain.PurposeProgramFee,
			programType: domain.ProgramOLevel,
			want:        400000,
		},
		{
			name:        "unregistered program falls back to the default tier",
			purpose:     domain.PurposeProgramFee,
			programType: domain.ProgramNone,
			want:        400000,
		},
		{
			name:        "unrecognized program falls back to the default tier",
			purpose:     domain.PurposeProgramFee,
			programType: domain.ProgramType("IGCSE"),
			want:        400000,
		},
		{
			name:        "subscription fee ignores the program type",
			purpose:     domain.PurposeSubscriptionPurchase,
			programType: domain.ProgramJAMB,
			want:        150000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpectedAmount(schedule, tt.purpose, tt.programType)
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
