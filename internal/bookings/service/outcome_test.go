package service

import (
	"testing"

	"booking_portal_backend/internal/bookings/domain"
)

func TestResultURLCarriesStatusAndCode(t *testing.T) {
	base := "https://portal.example.com"

	tests := []struct {
		name    string
		outcome TokenOutcome
		want    string
	}{
		{
			name:    "confirmed",
			outcome: TokenOutcome{Status: TokenConfirmed},
			want:    base + "/booking/result?status=success&code=confirmed",
		},
		{
			name:    "already processed carries the terminal status",
			outcome: TokenOutcome{Status: TokenAlreadyProcessed, Code: domain.StatusDeclined},
			want:    base + "/booking/result?status=already_processed&code=declined",
		},
		{
			name:    "expired",
			outcome: TokenOutcome{Status: TokenExpired},
			want:    base + "/booking/result?status=error&code=expired",
		},
		{
			name:    "malformed token",
			outcome: TokenOutcome{Status: TokenInvalid},
			want:    base + "/booking/result?status=error&code=invalid_token",
		},
		{
			name:    "unknown token",
			outcome: TokenOutcome{Status: TokenNotFound},
			want:    base + "/booking/result?status=error&code=not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.ResultURL(base); got != tt.want {
				t.Fatalf("url = %s, want %s", got, tt.want)
			}
		})
	}
}
