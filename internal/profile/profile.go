// Package profile нормализует поля профиля, которые исторически хранились
// в разных формах: списки районов и категорий бывают JSON-массивом,
// одиночной строкой или пустыми.
package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ListField принимает из JSON либо список, либо строку.
// Список сериализуется в JSON-строку, строка сохраняется как есть.
type ListField struct {
	raw *string
}

func (f *ListField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		f.raw = nil
		return nil
	}

	switch b[0] {
	case '[':
		var items []any
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		s, err := marshal(items)
		if err != nil {
			return err
		}
		f.raw = &s
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			f.raw = nil
			return nil
		}
		f.raw = &s
	default:
		// число сохраняется своим текстом, как одиночное значение
		n, err := number(b)
		if err != nil {
			return errors.New("must be a list, a string or a number")
		}
		f.raw = &n
	}
	return nil
}

// Value: значение для записи в БД, nil если поле не передано.
func (f ListField) Value() *string {
	return f.raw
}

// NewListField собирает поле из готового списка.
func NewListField(items []string) ListField {
	s := EncodeList(items)
	return ListField{raw: &s}
}

// EncodeList сериализует список в JSON-строку.
func EncodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	s, _ := marshal(items)
	return s
}

// marshal кодирует JSON без экранирования &, < и >, чтобы сохранённый
// текст совпадал с тем, что ищет LIKE.
func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func number(b []byte) (string, error) {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// ParseList восстанавливает список из сохранённого значения.
// Строка, начинающаяся с "[", разбирается как JSON; любая другая непустая
// строка становится списком из одного элемента. Ошибки разбора не
// возвращаются: значение трактуется как одиночная строка.
func ParseList(raw *string) []string {
	if raw == nil || *raw == "" {
		return []string{}
	}
	s := *raw
	if !strings.HasPrefix(s, "[") {
		return []string{s}
	}

	var items []any
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return []string{s}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case nil:
			continue
		case float64:
			out = append(out, fmt.Sprintf("%g", v))
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

// Text: текстовое поле профиля. Колонки текстовые, поэтому число из JSON
// принимается и хранится своим текстом.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	n, err := number(b)
	if err != nil {
		return errors.New("must be a string or a number")
	}
	*t = Text(n)
	return nil
}

// Truthy отбрасывает пустые значения: они не должны затирать сохранённое.
func Truthy(t *Text) *string {
	if t == nil || *t == "" {
		return nil
	}
	s := string(*t)
	return &s
}
