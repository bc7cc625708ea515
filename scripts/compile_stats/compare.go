package main

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// ignoredFields differ between any two compilations of the same input.
var ignoredFields = map[string]struct{}{"compiledAt": {}}

// compareStats lists the top-level fields whose values differ between two
// stats documents.
func compareStats(actual, expected []byte) ([]string, error) {
	var a, e map[string]interface{}
	if err := json.Unmarshal(actual, &a); err != nil {
		return nil, fmt.Errorf("decode actual: %w", err)
	}
	if err := json.Unmarshal(expected, &e); err != nil {
		return nil, fmt.Errorf("decode expected: %w", err)
	}

	keys := make(map[string]struct{}, len(a)+len(e))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range e {
		keys[k] = struct{}{}
	}

	var diffs []string
	for k := range keys {
		if _, skip := ignoredFields[k]; skip {
			continue
		}
		av, ev := normalize(a[k]), normalize(e[k])
		if !reflect.DeepEqual(av, ev) {
			diffs = append(diffs, fmt.Sprintf("%s: got %s, want %s", k, render(a[k]), render(e[k])))
		}
	}
	sort.Strings(diffs)
	return diffs, nil
}

// normalize treats a null list like an empty one.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return []interface{}{}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return val
	}
}

func render(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
