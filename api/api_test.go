package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/thisisjab/rulezilla/entity"
	"github.com/thisisjab/rulezilla/fault"
	"github.com/thisisjab/rulezilla/storage"
)

type testResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s, err := NewServer(Config{
		Addr: "localhost:0",
		CORS: CORSConfig{TrustedOrigins: []string{"http://localhost:3000"}},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), storage.NewMemoryStorage())
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, testResponse) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("cannot create request: %v", err)
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer res.Body.Close()

	var out testResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("cannot decode response of %s %s: %v", method, path, err)
	}

	return res.StatusCode, out
}

func errorCode(res testResponse) any {
	ctx, _ := res.Metadata["context"].(map[string]any)
	return ctx["error"]
}

func createRule(t *testing.T, ts *httptest.Server, name, ruleString string) (string, any) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"name": name, "rule_string": ruleString})
	status, res := do(t, ts, http.MethodPost, "/api/rules", string(body))
	if status != http.StatusCreated {
		t.Fatalf("expected status %d creating rule, got %d (%+v)", http.StatusCreated, status, res)
	}

	id, _ := res.Data["rule_id"].(string)
	return id, res.Data["ast"]
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	status, res := do(t, ts, http.MethodGet, "/api/healthcheck", "")
	if status != http.StatusOK || !res.Success {
		t.Fatalf("unexpected healthcheck response: %d %+v", status, res)
	}
}

func TestCreateAndGetRule(t *testing.T) {
	ts := newTestServer(t)

	id, tree := createRule(t, ts, "senior", "age > 30")
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected a uuid rule id, got %q", id)
	}

	wantTree := map[string]any{
		"type":      "operand",
		"value":     "age > 30",
		"attribute": "age",
		"operator":  ">",
		"literal":   "30",
	}
	if diff := cmp.Diff(wantTree, tree); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%s", diff)
	}

	status, res := do(t, ts, http.MethodGet, "/api/rules/"+id, "")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}

	rl, _ := res.Data["rule"].(map[string]any)
	if rl["name"] != "senior" || rl["rule_string"] != "age > 30" {
		t.Fatalf("unexpected rule: %+v", rl)
	}
	if diff := cmp.Diff(wantTree, res.Data["ast"]); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%s", diff)
	}

	createRule(t, ts, "sales", "department = 'Sales'")

	_, res = do(t, ts, http.MethodGet, "/api/rules", "")
	rules, _ := res.Data["rules"].([]any)
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
}

func TestCreateRuleErrors(t *testing.T) {
	ts := newTestServer(t)

	status, res := do(t, ts, http.MethodPost, "/api/rules", `{"rule_string": "age > 30"}`)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d for a missing name, got %d", http.StatusUnprocessableEntity, status)
	}
	if fields, _ := res.Metadata["fields"].(map[string]any); fields["name"] == nil {
		t.Fatalf("expected a field error for name, got %+v", res.Metadata)
	}

	status, res = do(t, ts, http.MethodPost, "/api/rules", `{"name": "broken", "rule_string": "age >"}`)
	if status != http.StatusBadRequest || errorCode(res) != "invalid_rule_string" {
		t.Fatalf("expected invalid_rule_string, got %d %+v", status, res)
	}

	status, _ = do(t, ts, http.MethodPost, "/api/rules", `{"name": "x", "rule": "age > 30"}`)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d for an unknown field, got %d", http.StatusUnprocessableEntity, status)
	}

	status, _ = do(t, ts, http.MethodPost, "/api/rules", `{"name": `)
	if status != http.StatusBadRequest {
		t.Fatalf("expected status %d for badly-formed JSON, got %d", http.StatusBadRequest, status)
	}
}

func TestGetRuleNotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		status, res := do(t, ts, http.MethodGet, "/api/rules/"+id, "")
		if status != http.StatusNotFound || res.Success {
			t.Fatalf("expected status %d for id %q, got %d", http.StatusNotFound, id, status)
		}
	}
}

func TestCombineRules(t *testing.T) {
	ts := newTestServer(t)

	id, _ := createRule(t, ts, "sales", "department = 'Sales' OR department = 'Marketing'")

	body, _ := json.Marshal(map[string]any{
		"rules":    []string{"age > 30 OR salary > 50000"},
		"rule_ids": []string{id},
	})
	status, res := do(t, ts, http.MethodPost, "/api/rules/combine", string(body))
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%+v)", http.StatusOK, status, res)
	}

	if res.Data["operator"] != "OR" {
		t.Fatalf("expected OR as joining operator, got %v", res.Data["operator"])
	}

	wantString := "(age > 30 OR salary > 50000) OR (department = 'Sales' OR department = 'Marketing')"
	if res.Data["rule_string"] != wantString {
		t.Fatalf("unexpected rule string %v", res.Data["rule_string"])
	}

	tree, _ := res.Data["ast"].(map[string]any)
	if tree["type"] != "operator" || tree["value"] != "OR" {
		t.Fatalf("unexpected root node %+v", tree)
	}
}

func TestCombineRulesErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := map[string]struct {
		body   string
		status int
		code   any
	}{
		"empty":         {body: `{"rules": []}`, status: http.StatusBadRequest, code: "empty_rule_set"},
		"missing":       {body: `{}`, status: http.StatusBadRequest, code: "empty_rule_set"},
		"not a list":    {body: `{"rules": "age > 30"}`, status: http.StatusBadRequest, code: "empty_rule_set"},
		"not strings":   {body: `{"rules": [1, 2]}`, status: http.StatusBadRequest, code: "empty_rule_set"},
		"mixed items":   {body: `{"rules": ["age > 30", null]}`, status: http.StatusBadRequest, code: "empty_rule_set"},
		"invalid rule":  {body: `{"rules": ["age > 30", "salary >"]}`, status: http.StatusBadRequest, code: "combine_failed"},
		"single broken": {body: `{"rules": ["age >"]}`, status: http.StatusBadRequest, code: "invalid_rule_string"},
		"unknown id":    {body: `{"rule_ids": ["` + uuid.NewString() + `"]}`, status: http.StatusNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			status, res := do(t, ts, http.MethodPost, "/api/rules/combine", tt.body)
			if status != tt.status {
				t.Fatalf("expected status %d, got %d (%+v)", tt.status, status, res)
			}
			if tt.code != nil && errorCode(res) != tt.code {
				t.Fatalf("expected error code %v, got %v", tt.code, errorCode(res))
			}
		})
	}
}

func TestEvaluateRule(t *testing.T) {
	ts := newTestServer(t)

	_, tree := createRule(t, ts, "r", "age > 30 AND department = 'Sales'")
	encoded, _ := json.Marshal(tree)

	tests := map[string]struct {
		data   string
		status int
		want   any
		code   any
	}{
		"eligible":          {data: `{"age": 35, "department": "Sales"}`, status: http.StatusOK, want: true},
		"not eligible":      {data: `{"age": 25, "department": "Sales"}`, status: http.StatusOK, want: false},
		"missing attribute": {data: `{"age": 35}`, status: http.StatusBadRequest, code: "missing_attribute"},
		"null data":         {data: `null`, status: http.StatusBadRequest, code: "invalid_data"},
		"array data":        {data: `[1, 2]`, status: http.StatusBadRequest, code: "invalid_data"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			body := `{"ast": ` + string(encoded) + `, "data": ` + tt.data + `}`

			status, res := do(t, ts, http.MethodPost, "/api/rules/evaluate", body)
			if status != tt.status {
				t.Fatalf("expected status %d, got %d (%+v)", tt.status, status, res)
			}
			if tt.want != nil && res.Data["is_eligible"] != tt.want {
				t.Fatalf("expected is_eligible %v, got %v", tt.want, res.Data["is_eligible"])
			}
			if tt.code != nil && errorCode(res) != tt.code {
				t.Fatalf("expected error code %v, got %v", tt.code, errorCode(res))
			}
		})
	}
}

func TestEvaluateRuleInvalidAST(t *testing.T) {
	ts := newTestServer(t)

	for _, tree := range []string{
		`{"type": "bogus", "value": "x"}`,
		`{"type": "operand", "value": "age >"}`,
		`{"type": "operator", "value": "XOR", "left": {"type": "operand", "value": "a > 1"}, "right": {"type": "operand", "value": "b > 1"}}`,
		`null`,
	} {
		status, res := do(t, ts, http.MethodPost, "/api/rules/evaluate", `{"ast": `+tree+`, "data": {"age": 1}}`)
		if status != http.StatusBadRequest || errorCode(res) != "invalid_ast" {
			t.Fatalf("expected invalid_ast for %s, got %d %+v", tree, status, res)
		}
	}
}

func TestEvaluateRuleEmptyLiteral(t *testing.T) {
	ts := newTestServer(t)

	tree := `{"type": "operand", "value": "name = "}`

	status, res := do(t, ts, http.MethodPost, "/api/rules/evaluate", `{"ast": `+tree+`, "data": {"name": ""}}`)
	if status != http.StatusOK || res.Data["is_eligible"] != true {
		t.Fatalf("expected an empty name to match, got %d %+v", status, res)
	}

	status, res = do(t, ts, http.MethodPost, "/api/rules/evaluate", `{"ast": `+tree+`, "data": {"name": "bob"}}`)
	if status != http.StatusOK || res.Data["is_eligible"] != false {
		t.Fatalf("expected a non-empty name not to match, got %d %+v", status, res)
	}
}

func TestEvaluateStoredRule(t *testing.T) {
	ts := newTestServer(t)

	id, _ := createRule(t, ts, "r", "salary > 50000")

	status, res := do(t, ts, http.MethodPost, "/api/rules/"+id+"/evaluate", `{"data": {"salary": 60000.5}}`)
	if status != http.StatusOK || res.Data["is_eligible"] != true {
		t.Fatalf("expected an eligible result, got %d %+v", status, res)
	}

	status, _ = do(t, ts, http.MethodPost, "/api/rules/"+uuid.NewString()+"/evaluate", `{"data": {}}`)
	if status != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, status)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/rules", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight request failed: %v", err)
	}
	res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, res.StatusCode)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allowed origin %q", got)
	}
}

func TestNewServerValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewServer(Config{}, logger, storage.NewMemoryStorage()); err == nil {
		t.Fatalf("expected an error for a missing address")
	}
	if _, err := NewServer(Config{Addr: ":8000", CertFile: "cert.pem"}, logger, storage.NewMemoryStorage()); err == nil {
		t.Fatalf("expected an error for a cert file without a key file")
	}
	if _, err := NewServer(Config{Addr: ":8000"}, logger, nil); err == nil {
		t.Fatalf("expected an error for a missing rule store")
	}
}

type failingStore struct{}

func (failingStore) CreateRule(context.Context, entity.Rule) error { return errors.New("disk full") }
func (failingStore) GetRule(context.Context, uuid.UUID) (entity.Rule, error) {
	return entity.Rule{}, fault.New(fault.PermissionDeniedCode, "")
}
func (failingStore) ListRules(context.Context) ([]entity.Rule, error) {
	return nil, fmt.Errorf("cannot list: %w", errors.New("connection reset"))
}

func TestStoreFailures(t *testing.T) {
	s, err := NewServer(Config{Addr: "localhost:0"}, slog.New(slog.NewTextHandler(io.Discard, nil)), failingStore{})
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)

	status, res := do(t, ts, http.MethodGet, "/api/rules", "")
	if status != http.StatusInternalServerError || res.Message != "Internal server error" {
		t.Fatalf("expected an internal server error, got %d %+v", status, res)
	}

	status, _ = do(t, ts, http.MethodPost, "/api/rules", `{"name": "r", "rule_string": "age > 30"}`)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, status)
	}

	status, res = do(t, ts, http.MethodGet, "/api/rules/"+uuid.NewString(), "")
	if status != http.StatusForbidden || res.Message != "Permission denied." {
		t.Fatalf("expected a permission denied response, got %d %+v", status, res)
	}
}
