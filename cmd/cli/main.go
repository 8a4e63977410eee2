package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/thisisjab/rulezilla/rule"
)

type ruleFlags []string

func (r *ruleFlags) String() string {
	return strings.Join(*r, ", ")
}

func (r *ruleFlags) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func main() {
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		}),
	)

	var rules ruleFlags
	flag.Var(&rules, "rule", "rule string, repeat to combine several rules")
	data := flag.String("data", "", "JSON object to evaluate the rule against, - reads it from stdin")
	printAST := flag.Bool("ast", false, "print the rule tree as JSON")
	flag.Parse()

	if err := run(os.Stdin, os.Stdout, rules, *data, *printAST); err != nil {
		logger.Error("rule error.", "error", err)
		os.Exit(1)
	}
}

func run(stdin io.Reader, stdout io.Writer, rules []string, data string, printAST bool) error {
	if len(rules) == 0 {
		return errors.New("at least one -rule is required")
	}

	node, err := rule.Combine(rules)
	if err != nil {
		return err
	}

	if printAST || data == "" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(node); err != nil {
			return fmt.Errorf("cannot encode rule tree: %w", err)
		}
	}

	if data == "" {
		return nil
	}

	var input io.Reader = strings.NewReader(data)
	if data == "-" {
		input = stdin
	}

	record, err := decodeData(input)
	if err != nil {
		return err
	}

	eligible, err := rule.Evaluate(node, record)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "eligible: %t\n", eligible)
	return nil
}

// decodeData reads a single JSON value. Anything but an object yields nil,
// which Evaluate rejects as invalid data.
func decodeData(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("cannot decode data: %w", err)
	}

	record, _ := v.(map[string]any)
	return record, nil
}
