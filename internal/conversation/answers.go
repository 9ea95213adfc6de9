package conversation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/bytedance/sonic"
)

// Answer is one validated value stored under a step key
type Answer struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Answers keeps validated values in the order their keys were first written.
// Writing an existing key replaces its value in place.
type Answers struct {
	items []Answer
	index map[string]int
}

// Set stores value under key
func (a *Answers) Set(key string, value any) {
	if a.index == nil {
		a.index = make(map[string]int)
	}
	if i, ok := a.index[key]; ok {
		a.items[i].Value = value
		return
	}
	a.index[key] = len(a.items)
	a.items = append(a.items, Answer{Key: key, Value: value})
}

// Get returns the value stored under key
func (a Answers) Get(key string) (any, bool) {
	i, ok := a.index[key]
	if !ok {
		return nil, false
	}
	return a.items[i].Value, true
}

// String returns the value under key formatted as text, or "" when missing
func (a Answers) String(key string) string {
	v, ok := a.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the value under key as an int.
// Values that went through JSON come back as float64 and are converted.
func (a Answers) Int(key string) (int, bool) {
	v, ok := a.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// Float returns the value under key as a float64
func (a Answers) Float(key string) (float64, bool) {
	v, ok := a.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Keys returns the keys in insertion order
func (a Answers) Keys() []string {
	keys := make([]string, len(a.items))
	for i, item := range a.items {
		keys[i] = item.Key
	}
	return keys
}

// Items returns a copy of the ordered key/value pairs
func (a Answers) Items() []Answer {
	out := make([]Answer, len(a.items))
	copy(out, a.items)
	return out
}

// Len returns the number of stored keys
func (a Answers) Len() int {
	return len(a.items)
}

// Map returns the answers as a plain map, losing order
func (a Answers) Map() map[string]any {
	m := make(map[string]any, len(a.items))
	for _, item := range a.items {
		m[item.Key] = item.Value
	}
	return m
}

// Clone returns a deep copy of the container; values are copied shallowly
func (a Answers) Clone() Answers {
	var c Answers
	for _, item := range a.items {
		c.Set(item.Key, item.Value)
	}
	return c
}

// MarshalJSON encodes the answers as an ordered list of pairs
func (a Answers) MarshalJSON() ([]byte, error) {
	if a.items == nil {
		return []byte("[]"), nil
	}
	return sonic.Marshal(a.items)
}

// UnmarshalJSON decodes an ordered list of pairs
func (a *Answers) UnmarshalJSON(data []byte) error {
	var items []Answer
	if err := sonic.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to decode answers: %w", err)
	}
	*a = Answers{}
	for _, item := range items {
		a.Set(item.Key, item.Value)
	}
	return nil
}
