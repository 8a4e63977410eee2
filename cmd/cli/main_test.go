package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/thisisjab/rulezilla/rule"
)

func TestRun(t *testing.T) {
	tests := map[string]struct {
		rules    []string
		data     string
		stdin    string
		printAST bool
		want     string
	}{
		"eligible": {
			rules: []string{"age > 30", "department = 'Sales'"},
			data:  `{"age": 35, "department": "Sales"}`,
			want:  "eligible: true\n",
		},
		"not eligible from stdin": {
			rules: []string{"salary > 50000"},
			data:  "-",
			stdin: `{"salary": 40000}`,
			want:  "eligible: false\n",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(strings.NewReader(tt.stdin), &out, tt.rules, tt.data, tt.printAST); err != nil {
				t.Fatalf("run returned error: %v", err)
			}
			if out.String() != tt.want {
				t.Fatalf("expected output %q, got %q", tt.want, out.String())
			}
		})
	}
}

func TestRunPrintsTree(t *testing.T) {
	var out bytes.Buffer
	if err := run(strings.NewReader(""), &out, []string{"age > 30"}, "", false); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if !strings.Contains(out.String(), `"value": "age > 30"`) {
		t.Fatalf("expected the tree to be printed, got %s", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer

	if err := run(strings.NewReader(""), &out, nil, "", false); err == nil {
		t.Fatalf("expected an error without rules")
	}

	if err := run(strings.NewReader(""), &out, []string{"age >"}, "", false); !errors.Is(err, rule.ErrInvalidRuleString) {
		t.Fatalf("expected ErrInvalidRuleString, got %v", err)
	}

	if err := run(strings.NewReader(""), &out, []string{"age > 30"}, `[1]`, false); !errors.Is(err, rule.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}

	if err := run(strings.NewReader(""), &out, []string{"age > 30"}, `{"name": "x"}`, false); !errors.Is(err, rule.ErrMissingAttribute) {
		t.Fatalf("expected ErrMissingAttribute, got %v", err)
	}
}
