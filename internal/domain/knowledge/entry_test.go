package knowledge

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/kbroute/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"ok", Entry{ID: "faq-1", Title: "料金", Content: "1日1000円"}, false},
		{"title only", Entry{ID: "faq-2", Title: "営業時間"}, false},
		{"missing id", Entry{Title: "x"}, true},
		{"glob in id", Entry{ID: "faq*", Title: "x"}, true},
		{"no text", Entry{ID: "faq-3"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidRecord) {
				t.Errorf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestEmbeddingText(t *testing.T) {
	if got := (&Entry{Title: "Q", Content: "A"}).EmbeddingText(); got != "Q\nA" {
		t.Errorf("got %q", got)
	}
	if got := (&Entry{Content: "A"}).EmbeddingText(); got != "A" {
		t.Errorf("got %q", got)
	}
	if got := (&Entry{Title: "Q"}).EmbeddingText(); got != "Q" {
		t.Errorf("got %q", got)
	}
}
