package query

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/kbroute/internal/domain"
)

func validAnalysis() Analysis {
	return Analysis{
		Category:   CategoryPayment,
		Intent:     IntentInquiry,
		Tone:       ToneNormal,
		Urgency:    UrgencyLow,
		Confidence: 0.7,
	}
}

func TestValidate_OK(t *testing.T) {
	a := validAnalysis()
	if err := a.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Analysis)
		field  string
	}{
		{"category", func(a *Analysis) { a.Category = "parking" }, "category"},
		{"intent", func(a *Analysis) { a.Intent = "change" }, "intent"},
		{"tone", func(a *Analysis) { a.Tone = "formal" }, "tone"},
		{"urgency", func(a *Analysis) { a.Urgency = "" }, "urgency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAnalysis()
			tt.mutate(&a)

			err := a.Validate()
			if !errors.Is(err, domain.ErrInvalidAnalysis) {
				t.Fatalf("expected ErrInvalidAnalysis, got %v", err)
			}
			var fe *domain.FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldError, got %T", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestCategories_AllValid(t *testing.T) {
	if len(Categories) != 11 {
		t.Fatalf("expected 11 categories, got %d", len(Categories))
	}
	for _, c := range Categories {
		if !c.IsValid() {
			t.Errorf("%q.IsValid() = false", c)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, tt := range tests {
		if got := ClampConfidence(tt.in); got != tt.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
