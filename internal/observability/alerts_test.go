package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestPolicyAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "policy.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read alert rules: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("parse alert rules: %v", err)
	}
	if len(spec.Groups) == 0 {
		t.Fatal("expected at least one alert group")
	}

	seen := make(map[string]alertRule)
	for _, group := range spec.Groups {
		for _, rule := range group.Rules {
			if rule.Alert == "" || rule.Expr == "" {
				t.Fatalf("rule in group %q missing alert name or expr", group.Name)
			}
			if rule.Labels["severity"] == "" {
				t.Fatalf("rule %q missing severity label", rule.Alert)
			}
			if rule.Annotations["summary"] == "" {
				t.Fatalf("rule %q missing summary annotation", rule.Alert)
			}
			seen[rule.Alert] = rule
		}
	}

	loadFailures, ok := seen["PolicyCacheLoadFailures"]
	if !ok {
		t.Fatal("expected PolicyCacheLoadFailures rule")
	}
	if !strings.Contains(loadFailures.Expr, "meridian_policy_cache_loads_total") {
		t.Fatalf("PolicyCacheLoadFailures should use the cache load counter, got %q", loadFailures.Expr)
	}

	denySpike, ok := seen["PolicyDenySpike"]
	if !ok {
		t.Fatal("expected PolicyDenySpike rule")
	}
	if !strings.Contains(denySpike.Expr, "meridian_policy_decisions_total") {
		t.Fatalf("PolicyDenySpike should use the decision counter, got %q", denySpike.Expr)
	}
}
