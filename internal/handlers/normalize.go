package handlers

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Старые имена полей, которые ещё присылают клиенты.
var keyAliases = map[string]string{
	"preferredDistricts": "districts",
	"workCategories":     "categories",
	"businessAddress":    "address",
	"zipCode":            "zip",
	"description":        "businessDescription",
}

// Приоритет написания ключа: каноническое имя, его snake_case, алиас,
// snake_case алиаса. Меньше значит важнее.
const (
	fromSnake = 1
	fromAlias = 2
)

type candidate struct {
	rank  int
	value json.RawMessage
}

// normalizeKeys переводит ключи верхнего уровня JSON-объекта из snake_case
// в camelCase и заменяет устаревшие имена. Если одно поле пришло в
// нескольких написаниях, берётся непустое значение с наивысшим приоритетом.
// Тело, не являющееся объектом, возвращается как есть.
func normalizeKeys(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []byte("{}"), nil
	}
	if trimmed[0] != '{' {
		return body, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	chosen := make(map[string]candidate, len(fields))
	for _, key := range keys {
		value := fields[key]
		name := snakeToCamel(key)
		rank := 0
		if name != key {
			rank += fromSnake
		}
		if canonical, ok := keyAliases[name]; ok {
			name = canonical
			rank += fromAlias
		}

		cur, ok := chosen[name]
		if !ok || better(candidate{rank, value}, cur) {
			chosen[name] = candidate{rank, value}
		}
	}

	out := make(map[string]json.RawMessage, len(chosen))
	for name, c := range chosen {
		out[name] = c.value
	}
	return json.Marshal(out)
}

// better: непустое значение важнее пустого, при равенстве решает приоритет.
func better(next, cur candidate) bool {
	nextEmpty, curEmpty := isEmptyJSON(next.value), isEmptyJSON(cur.value)
	if nextEmpty != curEmpty {
		return curEmpty
	}
	return next.rank < cur.rank
}

func snakeToCamel(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}
	parts := strings.Split(key, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

func isEmptyJSON(v json.RawMessage) bool {
	s := string(bytes.TrimSpace(v))
	return s == "" || s == "null" || s == `""`
}
