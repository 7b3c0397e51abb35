package evaluation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadGoldenCases_ValidFile(t *testing.T) {
	content := `[
		{"id": "r1", "kind": "resin", "tooth_color": "A2", "completion": {"layers": []}, "expected_shades": ["A2E", "A2"], "difficulty": "easy"},
		{"id": "c1", "kind": "cementation", "ceramic_type": "e.max", "completion": "{}", "expected_alerts": ["5%"], "difficulty": "hard"}
	]`
	path := writeTempFile(t, content)

	cases, err := LoadGoldenCases(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].Kind != KindResin {
		t.Errorf("expected kind resin, got %s", cases[0].Kind)
	}
	if len(cases[0].ExpectedShades) != 2 {
		t.Errorf("expected 2 shades, got %d", len(cases[0].ExpectedShades))
	}
	if cases[1].CeramicType != "e.max" {
		t.Errorf("expected ceramic e.max, got %s", cases[1].CeramicType)
	}
}

func TestLoadGoldenCases_InvalidFile(t *testing.T) {
	_, err := LoadGoldenCases("/nonexistent/path.json")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadGoldenCases_InvalidJSON(t *testing.T) {
	path := writeTempFile(t, `not valid json`)
	_, err := LoadGoldenCases(path)
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestValidateGoldenCases(t *testing.T) {
	valid := func() GoldenCase {
		return GoldenCase{ID: "r1", Kind: KindResin, Completion: []byte(`{}`), Difficulty: "easy"}
	}

	tests := []struct {
		name    string
		mutate  func(c *GoldenCase)
		wantErr string
	}{
		{"valid", func(c *GoldenCase) {}, ""},
		{"missing id", func(c *GoldenCase) { c.ID = "" }, "missing id"},
		{"bad kind", func(c *GoldenCase) { c.Kind = "implant" }, "invalid kind"},
		{"no completion", func(c *GoldenCase) { c.Completion = nil }, "missing completion"},
		{"cementation without ceramic", func(c *GoldenCase) { c.Kind = KindCementation }, "ceramic_type"},
		{"cementation with shades", func(c *GoldenCase) {
			c.Kind = KindCementation
			c.CeramicType = "e.max"
			c.ExpectedShades = []string{"A2"}
		}, "only apply to resin"},
		{"bad difficulty", func(c *GoldenCase) { c.Difficulty = "trivial" }, "invalid difficulty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := ValidateGoldenCases([]GoldenCase{c})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		err := ValidateGoldenCases([]GoldenCase{valid(), valid()})
		if err == nil || !strings.Contains(err.Error(), "duplicate id") {
			t.Errorf("expected duplicate id error, got %v", err)
		}
	})
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "golden.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
