package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const sampleRego = `# Denies plans that mention forbidden words
package solasta.policies.sample

import rego.v1

deny contains violation if {
	input.plan
	violation := {"message": "sample finding", "severity": "warning"}
}
`

func writeTempPolicy(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}
	return path
}

func TestLoadFromRegoFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPolicy(t, dir, "sample.rego", sampleRego)

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d", len(policies))
	}

	p := policies[0]
	if p.Name != "sample" {
		t.Errorf("Expected policy name 'sample', got %s", p.Name)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("Expected default warning severity, got %s", p.Severity)
	}
	if !p.Enabled {
		t.Error("Expected loaded policy to be enabled")
	}
	if p.Description == "" {
		t.Error("Expected description from leading comment")
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTempPolicy(t, dir, "one.rego", sampleRego)
	writeTempPolicy(t, dir, "two.rego", sampleRego)
	writeTempPolicy(t, dir, "ignored.txt", "not a policy")

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(policies))
	}
}

func TestLoadFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPolicy(t, dir, "custom.json", `{
		"name": "custom",
		"description": "a JSON policy",
		"severity": "error",
		"enabled": true,
		"rego": "package solasta.policies.custom\n\nimport rego.v1\n"
	}`)

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d", len(policies))
	}
	if policies[0].Severity != SeverityError {
		t.Errorf("Expected error severity, got %s", policies[0].Severity)
	}
}

func TestLoadBrokenJSONSkippedInDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTempPolicy(t, dir, "good.rego", sampleRego)
	writeTempPolicy(t, dir, "broken.json", "{not json")

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected broken file to be skipped, got %d policies", len(policies))
	}
}

func TestLoadMissingPath(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	_, err := loader.LoadFromPaths(context.Background(), []string{"/no/such/path"})
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
}

func TestLoadedPolicyEvaluates(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPolicy(t, dir, "sample.rego", sampleRego)

	eng := testEngine(t, DefaultLimits())
	if err := eng.LoadPolicies(context.Background(), []string{path}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	result, err := eng.AdmitPlan(context.Background(), admissiblePlan(1))
	if err != nil {
		t.Fatalf("AdmitPlan failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("Warning-severity finding must not deny the plan")
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected the loaded policy to produce a warning")
	}
}

func TestClearCache(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPolicy(t, dir, "sample.rego", sampleRego)

	loader := NewLoader(zerolog.Nop())
	first, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}

	// Rewrite the file; the cache still serves the old content until cleared.
	writeTempPolicy(t, dir, "sample.rego", "# rewritten description\npackage solasta.policies.sample\n\nimport rego.v1\n")
	cached, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if cached[0].Description != first[0].Description {
		t.Error("Expected cached policy before ClearCache")
	}

	loader.ClearCache()
	reloaded, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if reloaded[0].Description != "rewritten description" {
		t.Errorf("Expected reloaded description, got %q", reloaded[0].Description)
	}
}
