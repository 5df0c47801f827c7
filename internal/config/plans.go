package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// PlanCatalog фиксированный каталог премиум-планов: идентификатор плана -> план.
//
// В переменной окружения задаётся списком "id:price:days" через запятую,
// например "month:100:30,quarter:250:90".
type PlanCatalog map[string]models.Plan

// SetValue разбирает каталог из строки, реализует cleanenv.Setter.
func (c *PlanCatalog) SetValue(s string) error {
	catalog := make(PlanCatalog)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return fmt.Errorf("plan %q: want id:price:days", item)
		}
		price, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("plan %q: price: %w", item, err)
		}
		days, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Errorf("plan %q: days: %w", item, err)
		}
		id := strings.TrimSpace(parts[0])
		if _, dup := catalog[id]; dup {
			return fmt.Errorf("plan %q declared twice", id)
		}
		catalog[id] = models.Plan{ID: id, Price: price, DurationDays: days}
	}
	*c = catalog
	return nil
}

// Get возвращает план по идентификатору.
func (c PlanCatalog) Get(id string) (models.Plan, bool) {
	p, ok := c[id]
	return p, ok
}

// Sorted возвращает планы по возрастанию длительности.
func (c PlanCatalog) Sorted() []models.Plan {
	plans := make([]models.Plan, 0, len(c))
	for _, p := range c {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].DurationDays == plans[j].DurationDays {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].DurationDays < plans[j].DurationDays
	})
	return plans
}

func (c PlanCatalog) String() string {
	parts := make([]string, 0, len(c))
	for _, p := range c.Sorted() {
		parts = append(parts, fmt.Sprintf("%s:%d:%d", p.ID, p.Price, p.DurationDays))
	}
	return strings.Join(parts, ",")
}
