package merge

import (
	"strings"
	"testing"

	"github.com/qartal/kongsync/internal/entity"
)

func TestValidateMergedValid(t *testing.T) {
	merged := entity.Record{
		"name":    "api-svc",
		"host":    "api.internal",
		"port":    float64(8080),
		"enabled": true,
		"tags":    []any{"prod"},
	}

	result := ValidateMerged(merged, "service", nil, nil)
	if !result.Valid {
		t.Fatalf("valid service rejected: %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestValidateMergedMissingRequired(t *testing.T) {
	tests := []struct {
		entityType string
		record     entity.Record
		missing    string
	}{
		{"service", entity.Record{"host": "h"}, "name"},
		{"service", entity.Record{"name": "s"}, "host"},
		{"consumer", entity.Record{"custom_id": "x"}, "username"},
		{"route", entity.Record{}, "name"},
		{"upstream", entity.Record{"name": ""}, "name"},
	}

	for _, tt := range tests {
		result := ValidateMerged(tt.record, tt.entityType, nil, nil)
		if result.Valid {
			t.Errorf("%s without %s accepted", tt.entityType, tt.missing)
			continue
		}
		found := false
		for _, msg := range result.Errors {
			if strings.Contains(msg, tt.missing) {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: errors %v do not mention %s", tt.entityType, result.Errors, tt.missing)
		}
	}
}

func TestValidateMergedTypeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		record entity.Record
		valid  bool
	}{
		{"port as string", entity.Record{"name": "s", "host": "h", "port": "8080"}, false},
		{"port fractional", entity.Record{"name": "s", "host": "h", "port": 80.5}, false},
		{"port integral float", entity.Record{"name": "s", "host": "h", "port": float64(80)}, true},
		{"enabled as string", entity.Record{"name": "s", "host": "h", "enabled": "yes"}, false},
		{"tags as string", entity.Record{"name": "s", "host": "h", "tags": "prod"}, false},
		{"name as number", entity.Record{"name": float64(1), "host": "h"}, false},
		{"weight as float", entity.Record{"name": "s", "host": "h", "weight": 0.5}, true},
		{"nested timeout mismatch", entity.Record{"name": "s", "host": "h",
			"config": map[string]any{"connect_timeout": "fast"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateMerged(tt.record, "service", nil, nil)
			if result.Valid != tt.valid {
				t.Errorf("valid = %v, want %v (errors %v)", result.Valid, tt.valid, result.Errors)
			}
		})
	}
}

func TestValidateMergedNullFieldSkipsTypeCheck(t *testing.T) {
	merged := entity.Record{"name": "s", "host": "h", "port": nil}
	result := ValidateMerged(merged, "service", nil, nil)
	if !result.Valid {
		t.Errorf("explicit null flagged as type mismatch: %v", result.Errors)
	}
}

func TestValidateMergedUnknownFieldWarning(t *testing.T) {
	source := entity.Record{"name": "s", "host": "h"}
	target := entity.Record{"name": "s", "host": "g"}
	merged := entity.Record{"name": "s", "host": "h", "surprise": "x"}

	result := ValidateMerged(merged, "service", source, target)
	if !result.Valid {
		t.Fatalf("warnings must not affect validity: %v", result.Errors)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "surprise") {
		t.Errorf("warnings = %v", result.Warnings)
	}

	// Without both originals the check is skipped.
	result = ValidateMerged(merged, "service", source, nil)
	if len(result.Warnings) != 0 {
		t.Errorf("warnings without target = %v", result.Warnings)
	}
}

func TestValidateMergedUnknownEntityType(t *testing.T) {
	// Types without a required-field entry only get the shared checks.
	result := ValidateMerged(entity.Record{"anything": "goes"}, "certificate", nil, nil)
	if !result.Valid {
		t.Errorf("unknown entity type rejected: %v", result.Errors)
	}
}
