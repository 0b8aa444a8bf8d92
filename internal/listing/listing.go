// Package listing фильтрует опубликованные возможности для поставщиков
// и вычисляет отображаемые признаки сроков.
package listing

import (
	"math"
	"strings"
	"time"

	"bizconnect/models"
)

// NotSpecified: подпись для отсутствующей или нераспознанной даты.
const NotSpecified = "Not specified"

// DueSoonDays: порог признака "скоро срок".
const DueSoonDays = 7

var dueDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// Criteria: условия фильтра. Пустое поле условия не применяется.
type Criteria struct {
	District  string
	Category  string
	DueWithin *int
	Keyword   string
}

// IsZero: true, если фильтр ничего не отсекает.
func (c Criteria) IsZero() bool {
	return c.District == "" && c.Category == "" && c.DueWithin == nil && c.Keyword == ""
}

// Item: возможность с производными полями для отображения.
type Item struct {
	models.Opportunity
	DaysUntilDue *int   `json:"daysUntilDue"`
	DueDateLabel string `json:"dueDateLabel"`
	DueSoon      bool   `json:"dueSoon"`
	Closed       bool   `json:"closed"`
}

// ParseDueDate разбирает срок подачи. Дата без времени: полночь UTC.
func ParseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysUntilDue = ceil((due - now) / 24h).
func DaysUntilDue(due *string, now time.Time) (int, bool) {
	if due == nil {
		return 0, false
	}
	t, ok := ParseDueDate(*due)
	if !ok {
		return 0, false
	}
	days := math.Ceil(float64(t.Sub(now)) / float64(24*time.Hour))
	return int(days), true
}

// Match проверяет одну возможность. Условия применяются по порядку:
// район, категория, срок, ключевое слово.
func Match(o models.Opportunity, c Criteria, now time.Time) bool {
	if c.District != "" && o.District != c.District {
		return false
	}
	if c.Category != "" && o.Category != c.Category {
		return false
	}
	if c.DueWithin != nil {
		days, ok := DaysUntilDue(o.DueDate, now)
		if !ok || days > *c.DueWithin {
			return false
		}
	}
	// ключевое слово сравнивается как есть, без обрезки пробелов
	if kw := strings.ToLower(c.Keyword); kw != "" {
		if !strings.Contains(searchableText(o), kw) {
			return false
		}
	}
	return true
}

// Filter возвращает подходящие возможности в исходном порядке.
func Filter(opps []models.Opportunity, c Criteria, now time.Time) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(opps))
	for _, o := range opps {
		if Match(o, c, now) {
			out = append(out, o)
		}
	}
	return out
}

// Decorate добавляет признаки сроков.
func Decorate(o models.Opportunity, now time.Time) Item {
	item := Item{Opportunity: o, DueDateLabel: NotSpecified}
	if days, ok := DaysUntilDue(o.DueDate, now); ok {
		item.DaysUntilDue = &days
		item.DueSoon = days >= 0 && days <= DueSoonDays
		item.Closed = days < 0
		t, _ := ParseDueDate(*o.DueDate)
		item.DueDateLabel = t.Format("January 2, 2006")
	}
	return item
}

// Build фильтрует и оформляет список для выдачи.
func Build(opps []models.Opportunity, c Criteria, now time.Time) []Item {
	filtered := Filter(opps, c, now)
	items := make([]Item, 0, len(filtered))
	for _, o := range filtered {
		items = append(items, Decorate(o, now))
	}
	return items
}

func searchableText(o models.Opportunity) string {
	sub := ""
	if o.Subcategory != nil {
		sub = *o.Subcategory
	}
	return strings.ToLower(strings.Join([]string{o.Title, o.ScopeSummary, o.DistrictName, o.CategoryName, sub}, " "))
}
