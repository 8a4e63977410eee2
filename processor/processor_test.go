package processor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/thisisjab/rulezilla/entity"
)

func TestJsonRecordProcessor(t *testing.T) {
	p, err := NewJsonRecordProcessor(JsonRecordProcessorConfig{Name: "json"})
	if err != nil {
		t.Fatalf("NewJsonRecordProcessor returned error: %v", err)
	}

	in := entity.Record{
		Source:  "people",
		RawData: []byte(`{"age": 31, "salary": 50000.50, "department": "Sales", "active": true, "manager": null, "tags": ["a", 1], "address": {"city": "Oslo"}}`),
	}

	out, err := p.Process(in)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	want := map[string]any{
		"age":        json.Number("31"),
		"salary":     json.Number("50000.50"),
		"department": "Sales",
		"active":     true,
		"manager":    nil,
		"tags":       []any{"a", json.Number("1")},
		"address":    map[string]any{"city": "Oslo"},
	}

	if diff := cmp.Diff(want, out.Data); diff != "" {
		t.Fatalf("unexpected data (-want +got):\n%s", diff)
	}

	if out.Source != "people" {
		t.Fatalf("expected record metadata to be kept, got source %q", out.Source)
	}
}

func TestJsonRecordProcessorDataField(t *testing.T) {
	p, _ := NewJsonRecordProcessor(JsonRecordProcessorConfig{Name: "json", DataField: "payload"})

	out, err := p.Process(entity.Record{RawData: []byte(`{"id": 1, "payload": {"age": 40}}`)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if diff := cmp.Diff(map[string]any{"age": json.Number("40")}, out.Data); diff != "" {
		t.Fatalf("unexpected data (-want +got):\n%s", diff)
	}

	if _, err := p.Process(entity.Record{RawData: []byte(`{"id": 1}`)}); err == nil {
		t.Fatalf("expected an error for a missing data field")
	}
}

func TestJsonRecordProcessorErrors(t *testing.T) {
	p, _ := NewJsonRecordProcessor(JsonRecordProcessorConfig{Name: "json"})

	for _, input := range []string{``, `{"age":`, `[1, 2]`, `"text"`} {
		if _, err := p.Process(entity.Record{RawData: []byte(input)}); err == nil {
			t.Fatalf("Process(%q) expected an error", input)
		}
	}
}

func writeScript(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatalf("cannot write lua script: %v", err)
	}
	return path
}

func TestLuaRecordProcessor(t *testing.T) {
	path := writeScript(t, `
local json = require("json")

function process_record(record)
	record.yearly_salary = record.salary * 12
	record.is_senior = record.age > 60
	record.encoded = json.encode({ok = true})
	record.salary = nil
	return record
end
`)

	p, err := NewLuaRecordProcessor(LuaRecordProcessorConfig{Name: "lua", ScriptPath: path})
	if err != nil {
		t.Fatalf("NewLuaRecordProcessor returned error: %v", err)
	}

	out, err := p.Process(entity.Record{
		Source: "people",
		Data:   map[string]any{"age": json.Number("65"), "salary": 1000, "name": "Ada"},
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	want := map[string]any{
		"age":           float64(65),
		"name":          "Ada",
		"yearly_salary": float64(12000),
		"is_senior":     true,
		"encoded":       `{"ok":true}`,
	}

	if diff := cmp.Diff(want, out.Data); diff != "" {
		t.Fatalf("unexpected data (-want +got):\n%s", diff)
	}

	// States are pooled; a second call must see a clean stack.
	if _, err := p.Process(entity.Record{Data: map[string]any{"age": 1, "salary": 2}}); err != nil {
		t.Fatalf("second Process returned error: %v", err)
	}
}

func TestLuaRecordProcessorNilData(t *testing.T) {
	path := writeScript(t, `function process_record(record) record.seen = true return record end`)

	p, err := NewLuaRecordProcessor(LuaRecordProcessorConfig{Name: "lua", ScriptPath: path})
	if err != nil {
		t.Fatalf("NewLuaRecordProcessor returned error: %v", err)
	}

	out, err := p.Process(entity.Record{})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if diff := cmp.Diff(map[string]any{"seen": true}, out.Data); diff != "" {
		t.Fatalf("unexpected data (-want +got):\n%s", diff)
	}
}

func TestLuaRecordProcessorErrors(t *testing.T) {
	if _, err := NewLuaRecordProcessor(LuaRecordProcessorConfig{Name: "lua"}); err == nil {
		t.Fatalf("expected an error for a missing script path")
	}

	if _, err := NewLuaRecordProcessor(LuaRecordProcessorConfig{ScriptPath: writeScript(t, `this is not lua`)}); err == nil {
		t.Fatalf("expected an error for a broken script")
	}

	if _, err := NewLuaRecordProcessor(LuaRecordProcessorConfig{ScriptPath: writeScript(t, `x = 1`)}); err == nil {
		t.Fatalf("expected an error for a script without process_record")
	}

	p, err := NewLuaRecordProcessor(LuaRecordProcessorConfig{ScriptPath: writeScript(t, `function process_record(r) return 42 end`)})
	if err != nil {
		t.Fatalf("NewLuaRecordProcessor returned error: %v", err)
	}
	if _, err := p.Process(entity.Record{Data: map[string]any{}}); err == nil {
		t.Fatalf("expected an error when process_record does not return a table")
	}

	p, err = NewLuaRecordProcessor(LuaRecordProcessorConfig{ScriptPath: writeScript(t, `function process_record(r) error("boom") end`)})
	if err != nil {
		t.Fatalf("NewLuaRecordProcessor returned error: %v", err)
	}
	if _, err := p.Process(entity.Record{Data: map[string]any{}}); err == nil {
		t.Fatalf("expected the lua error to be returned")
	}
}
