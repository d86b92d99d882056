package validation

import (
	"testing"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
)

func validPlugin() *models.Plugin {
	return &models.Plugin{
		Listing: models.Listing{
			ID:             "5f0c6c7e-3c3a-4a53-9f0e-8a2c4b9d1e01",
			Name:           "Test",
			Description:    "d",
			PublisherID:    "U1",
			PublishedAt:    models.PublishedAtLayout,
			Version:        1,
			CompatibleWith: "1.0",
			Votes:          models.Votes{},
		},
		Plugin: "code",
	}
}

func TestStruct_ValidPlugin(t *testing.T) {
	violations, err := Struct(validPlugin())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if violations != nil {
		t.Errorf("expected no violations, got %+v", violations)
	}
}

func TestStruct_PluginViolations(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *models.Plugin)
		wantPath  string
		wantError string
		wantParam string
	}{
		{"short name", func(p *models.Plugin) { p.Name = "abc" }, "name", "min", "4"},
		{"empty name", func(p *models.Plugin) { p.Name = "" }, "name", "required", ""},
		{"missing description", func(p *models.Plugin) { p.Description = "" }, "description", "required", ""},
		{"missing publisher", func(p *models.Plugin) { p.PublisherID = "" }, "publisherId", "required", ""},
		{"short publishedAt", func(p *models.Plugin) { p.PublishedAt = "2024-01-01" }, "publishedAt", "len", "30"},
		{"zero version", func(p *models.Plugin) { p.Version = 0 }, "version", "gte", "1"},
		{"negative import count", func(p *models.Plugin) { p.ImportedCount = -1 }, "importedCount", "gte", "0"},
		{"empty payload", func(p *models.Plugin) { p.Plugin = "" }, "plugin", "required", ""},
		{"missing compatibleWith", func(p *models.Plugin) { p.CompatibleWith = "" }, "compatibleWith", "required", ""},
		{"bad compatibleWith", func(p *models.Plugin) { p.CompatibleWith = "latest" }, "compatibleWith", "constraint", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlugin()
			tt.mutate(p)

			violations, err := Struct(p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(violations) != 1 {
				t.Fatalf("violations = %+v, want exactly one", violations)
			}
			v := violations[0]
			if v.Path != tt.wantPath || v.Error != tt.wantError || v.Param != tt.wantParam {
				t.Errorf("violation = %+v, want {%s %s %s}", v, tt.wantPath, tt.wantError, tt.wantParam)
			}
		})
	}
}

func TestStruct_ReportsEveryViolation(t *testing.T) {
	violations, err := Struct(&models.Plugin{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	paths := map[string]bool{}
	for _, v := range violations {
		paths[v.Path] = true
	}
	for _, want := range []string{"name", "description", "publisherId", "publishedAt", "version", "plugin", "compatibleWith"} {
		if !paths[want] {
			t.Errorf("missing violation for %q in %+v", want, violations)
		}
	}
}

func TestStruct_OverlayPayload(t *testing.T) {
	o := &models.Overlay{Listing: validPlugin().Listing, Items: "[]"}
	violations, err := Struct(o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 || violations[0].Path != "data" {
		t.Errorf("violations = %+v, want only data", violations)
	}
}

func TestStruct_NonStructInput(t *testing.T) {
	if _, err := Struct("not a struct"); err == nil {
		t.Error("expected error for non-struct input")
	}
}
