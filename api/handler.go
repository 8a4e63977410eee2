package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thisisjab/rulezilla/entity"
	"github.com/thisisjab/rulezilla/fault"
	"github.com/thisisjab/rulezilla/rule"
	"github.com/thisisjab/rulezilla/rule/ast"
)

func (s *server) createRuleHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name       string `json:"name"`
		RuleString string `json:"rule_string"`
	}
	if s.returnOnError(w, r, s.readJson(w, r, &input)) {
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		s.handleError(w, r, fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{
			"name": []string{"This field is required."},
		}))
		return
	}

	node, err := rule.Create(input.RuleString)
	if s.returnOnError(w, r, ruleFault(err)) {
		return
	}

	rl := entity.Rule{
		ID:         uuid.New(),
		Name:       input.Name,
		RuleString: input.RuleString,
		CreatedAt:  time.Now().UTC(),
	}
	if s.returnOnError(w, r, s.rules.CreateRule(r.Context(), rl)) {
		return
	}

	s.writeJson(w, http.StatusCreated, apiResponse{ //nolint:errcheck
		Success: true,
		Data: map[string]any{
			"rule_id": rl.ID,
			"ast":     node,
		},
	}, nil)
}

func (s *server) listRulesHandler(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.ListRules(r.Context())
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data:    map[string]any{"rules": rules},
	}, nil)
}

func (s *server) getRuleHandler(w http.ResponseWriter, r *http.Request) {
	rl, node, ok := s.loadRule(w, r)
	if !ok {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data: map[string]any{
			"rule": rl,
			"ast":  node,
		},
	}, nil)
}

func (s *server) combineRulesHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Rules   json.RawMessage `json:"rules"`
		RuleIds []string        `json:"rule_ids"`
	}
	if s.returnOnError(w, r, s.readJson(w, r, &input)) {
		return
	}

	ruleStrings, err := decodeRuleStrings(input.Rules)
	if s.returnOnError(w, r, ruleFault(err)) {
		return
	}

	for _, raw := range input.RuleIds {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.handleError(w, r, fault.NotFound("Rule", raw))
			return
		}

		rl, err := s.rules.GetRule(r.Context(), id)
		if s.returnOnError(w, r, err) {
			return
		}

		ruleStrings = append(ruleStrings, rl.RuleString)
	}

	node, err := rule.Combine(ruleStrings)
	if s.returnOnError(w, r, ruleFault(err)) {
		return
	}

	ruleString, op := ruleStrings[0], ast.LogicalOperator("")
	if len(ruleStrings) > 1 {
		ruleString, op = rule.CombineString(ruleStrings)
	}

	data := map[string]any{
		"ast":         node,
		"rule_string": ruleString,
	}
	if op != "" {
		data["operator"] = op
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data:    data,
	}, nil)
}

// decodeRuleStrings reads the `rules` field of a combine request. Anything
// but a list of strings is rejected like an empty rule set.
func decodeRuleStrings(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: rules is not a list", rule.ErrEmptyRuleSet)
	}

	rules := make([]string, len(items))
	for i, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: rule %d is not a string", rule.ErrEmptyRuleSet, i)
		}
		rules[i] = str
	}

	return rules, nil
}

func (s *server) evaluateRuleHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		AST  json.RawMessage `json:"ast"`
		Data any             `json:"data"`
	}
	if s.returnOnError(w, r, s.readJson(w, r, &input)) {
		return
	}

	node, err := ast.Unmarshal(input.AST)
	if s.returnOnError(w, r, ruleFault(err)) {
		return
	}

	s.evaluate(w, r, node, input.Data)
}

func (s *server) evaluateStoredRuleHandler(w http.ResponseWriter, r *http.Request) {
	_, node, ok := s.loadRule(w, r)
	if !ok {
		return
	}

	var input struct {
		Data any `json:"data"`
	}
	if s.returnOnError(w, r, s.readJson(w, r, &input)) {
		return
	}

	s.evaluate(w, r, node, input.Data)
}

func (s *server) evaluate(w http.ResponseWriter, r *http.Request, node ast.Node, data any) {
	// Anything but a JSON object is rejected as invalid data by Evaluate.
	record, _ := data.(map[string]any)

	eligible, err := rule.Evaluate(node, record)
	if s.returnOnError(w, r, ruleFault(err)) {
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data:    map[string]any{"is_eligible": eligible},
	}, nil)
}

// loadRule fetches the rule named by the `id` path value and parses its rule
// string. It writes the error response itself and reports whether the caller
// can continue.
func (s *server) loadRule(w http.ResponseWriter, r *http.Request) (entity.Rule, ast.Node, bool) {
	id, err := s.readRuleId(r)
	if s.returnOnError(w, r, err) {
		return entity.Rule{}, nil, false
	}

	rl, err := s.rules.GetRule(r.Context(), id)
	if s.returnOnError(w, r, err) {
		return entity.Rule{}, nil, false
	}

	node, err := rule.Create(rl.RuleString)
	if err != nil {
		// Stored rules were validated on creation.
		s.internalServerError(w, r, err)
		return entity.Rule{}, nil, false
	}

	return rl, node, true
}
