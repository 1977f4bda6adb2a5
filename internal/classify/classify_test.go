package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/soopfest/balloonwatch/internal/record"
)

var testMappings = []Mapping{
	{Name: "박진우", Keywords: []string{"진우", "jinwoo"}},
	{Name: "김아영", Keywords: []string{"아영"}},
	{Name: "이수민", Keywords: []string{"수민"}},
}

func TestClassify(t *testing.T) {
	c := New(testMappings)

	tests := []struct {
		name    string
		target  string
		message string
		want    string
	}{
		{"exact canonical target", "박진우", "", "박진우"},
		{"keyword in message", "", "후원 박진우 감사", "박진우"},
		{"alias keyword", "", "jinwoo fighting", "박진우"},
		{"unknown name", "", "후원 XYZ", record.Unclassified},
		{"empty text", "", "", record.Unclassified},
		{"sentinel target ignored", record.Unclassified, "", record.Unclassified},
		{"decorated keyword", "", "~~진!우!~~ 최고", "박진우"},
		{"keyword in target field", "진우님께", "", "박진우"},
		{"two candidates stays unclassified", "", "진우랑 아영 둘다 최고", record.Unclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.target, tt.message); got != tt.want {
				t.Errorf("Classify(%q, %q) = %q, want %q", tt.target, tt.message, got, tt.want)
			}
		})
	}
}

func TestClassify_EmptyRegistry(t *testing.T) {
	c := New(nil)
	if got := c.Classify("박진우", "박진우 감사"); got != record.Unclassified {
		t.Errorf("empty registry must classify nothing, got %q", got)
	}
}

func TestApply_PreservesScrapedTarget(t *testing.T) {
	c := New(testMappings)

	// A scraped target outside the registry is kept as-is, not wiped.
	d := record.Donation{TargetName: "외부인", Message: "진우 최고"}
	c.Apply(&d)
	if d.TargetName != "외부인" {
		t.Errorf("scraped target was rewritten to %q", d.TargetName)
	}
}

func TestApply_NormalizesAlias(t *testing.T) {
	c := New(testMappings)

	d := record.Donation{TargetName: "진우님", Message: ""}
	c.Apply(&d)
	if d.TargetName != "박진우" {
		t.Errorf("alias target not normalized, got %q", d.TargetName)
	}
}

func TestApply_Unclassified(t *testing.T) {
	c := New(testMappings)

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"classifiable message", "박진우 응원합니다", "박진우"},
		{"no match stays empty", "그냥 후원", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := record.Donation{Message: tt.message}
			c.Apply(&d)
			if d.TargetName != tt.want {
				t.Errorf("Apply target = %q, want %q", d.TargetName, tt.want)
			}
		})
	}
}

func TestReclassify(t *testing.T) {
	c := New(testMappings)

	data := []record.Donation{
		{TargetName: "박진우", Message: "아영 언급"},
		{TargetName: "", Message: "수민 화이팅"},
		{TargetName: "", Message: "아무도 없음"},
	}

	if got := c.Reclassify(data); got != 1 {
		t.Fatalf("Reclassify() = %d, want 1", got)
	}
	if data[0].TargetName != "박진우" {
		t.Errorf("already-classified record touched: %q", data[0].TargetName)
	}
	if data[1].TargetName != "이수민" {
		t.Errorf("record 1 target = %q, want 이수민", data[1].TargetName)
	}
	if data[2].TargetName != "" {
		t.Errorf("unmatchable record assigned %q", data[2].TargetName)
	}

	// Second pass finds nothing new.
	if got := c.Reclassify(data); got != 0 {
		t.Errorf("second Reclassify() = %d, want 0", got)
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.json")
	content := `[
  {"bjName": "박진우", "keywords": ["진우", "jinwoo"]},
  {"bjName": "김아영", "keywords": []}
]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	mappings, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(mappings))
	}
	if mappings[0].Name != "박진우" || len(mappings[0].Keywords) != 2 {
		t.Errorf("unexpected first mapping: %+v", mappings[0])
	}
}

func TestLoadRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", `[{"keywords": ["진우"]}]`},
		{"duplicate keywords", `[{"bjName": "박진우", "keywords": ["진우", "진우"]}]`},
		{"malformed json", `[{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "keywords.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRegistry(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing registry file")
	}
}
