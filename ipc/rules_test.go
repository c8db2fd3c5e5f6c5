package ipc

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNetworkConstants(t *testing.T) {
	tests := []struct {
		name  string
		rules Rules
		want  uint64
	}{
		{"main", MainNetRules(), MainNetworkID},
		{"test", TestNetRules(), TestNetworkID},
		{"fake", FakeNetRules(), FakeNetworkID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rules.Name != tt.name {
				t.Errorf("Name = %q, want %q", tt.rules.Name, tt.name)
			}
			if tt.rules.NetworkID != tt.want {
				t.Errorf("NetworkID = %d, want %d", tt.rules.NetworkID, tt.want)
			}
			if err := tt.rules.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
			if tt.rules.Retention.PruneCertified || tt.rules.Retention.PruneUncertified {
				t.Errorf("presets must retain non-executed batches")
			}

			got, err := RulesByName(tt.name)
			if err != nil {
				t.Fatalf("RulesByName(%q): %v", tt.name, err)
			}
			if got != tt.rules {
				t.Errorf("RulesByName(%q) = %v, want %v", tt.name, got, tt.rules)
			}
		})
	}

	if _, err := RulesByName("unknown"); !errors.Is(err, ErrInvalidRules) {
		t.Errorf("RulesByName(unknown) = %v, want ErrInvalidRules", err)
	}
}

func TestRulesValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rules)
		ok     bool
	}{
		{"default", func(r *Rules) {}, true},
		{"half is not a majority", func(r *Rules) { r.Quorum.MajorityPercentage = 50 }, false},
		{"unanimous", func(r *Rules) { r.Quorum.MajorityPercentage = 100 }, true},
		{"over 100", func(r *Rules) { r.Quorum.MajorityPercentage = 101 }, false},
		{"no messages", func(r *Rules) { r.Batches.MaxMsgsPerBatch = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FakeNetRules()
			tt.mutate(&r)
			err := r.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidRules) {
				t.Errorf("Validate() = %v, want ErrInvalidRules", err)
			}
		})
	}
}

func TestRulesString(t *testing.T) {
	r := MainNetRules()
	var decoded Rules
	if err := json.Unmarshal([]byte(r.String()), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != r {
		t.Errorf("decoded = %v, want %v", decoded, r)
	}
}
