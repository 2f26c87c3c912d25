package params

import (
	"errors"
	"strings"
	"testing"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    map[string]string
		wantErr string
	}{
		{
			name:  "single pair",
			input: []string{"region=emea"},
			want:  map[string]string{"region": "emea"},
		},
		{
			name:  "multiple pairs",
			input: []string{"region=emea", "batch=2024-Q1", "owner=finance"},
			want:  map[string]string{"region": "emea", "batch": "2024-Q1", "owner": "finance"},
		},
		{
			name:  "nil input",
			input: nil,
			want:  map[string]string{},
		},
		{
			name:  "empty value",
			input: []string{"note="},
			want:  map[string]string{"note": ""},
		},
		{
			name:  "value with equals",
			input: []string{"expr=a=b"},
			want:  map[string]string{"expr": "a=b"},
		},
		{
			name:  "later pair wins",
			input: []string{"region=emea", "region=apac"},
			want:  map[string]string{"region": "apac"},
		},
		{
			name:    "missing equals",
			input:   []string{"region"},
			wantErr: "not in key=value format",
		},
		{
			name:    "empty key",
			input:   []string{" =x"},
			wantErr: "empty key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeyValuePairs(tt.input, "--set")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				if !errors.Is(err, pgstitch.ErrInvalidConfig) {
					t.Errorf("error should wrap ErrInvalidConfig: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestParseRename(t *testing.T) {
	got, err := ParseRename([]string{"Profit=profit", "Date =date"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["Profit"] != "profit" || got["Date"] != "date" {
		t.Errorf("got %v", got)
	}

	if _, err := ParseRename([]string{"a="}); !errors.Is(err, pgstitch.ErrInvalidConfig) {
		t.Errorf("empty target: err = %v", err)
	}
	if _, err := ParseRename([]string{"a=x", "b=x"}); !errors.Is(err, pgstitch.ErrInvalidConfig) {
		t.Errorf("duplicate target: err = %v", err)
	}
}
