// Package simulate генерирует зашумленные варианты названий товаров и поставщиков
// для демонстраций и нагрузочных тестов курирования.
package simulate

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"orderly/normalization"
)

var (
	brands      = []string{"TechFlow", "Logix", "OfficePro", "Northwind", "Acme", "Vertex", "Stellar", "Kinetic"}
	descriptors = []string{"Wireless", "Ergonomic", "Bluetooth", "Mechanical", "Portable", "Compact", "Heavy Duty", "USB-C"}
	products    = []string{"Keyboard", "Mouse", "Monitor", "Headset", "Webcam", "Docking Station", "Charger", "Desk Lamp", "Stapler", "Notebook"}
	colors      = []string{"Black", "White", "Silver", "Grey", "Blue"}
	fillers     = []string{"brand new", "for office", "the", "genuine", "original", "pack of 1"}
	vendorForms = []string{"Inc", "Inc.", "LLC", "Ltd", "Corp", "Corporation", "Co."}
)

// Generator детерминированный генератор при фиксированном seed
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator создает генератор с заданным seed
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// ProductName базовое название товара: бренд, характеристика, товар, цвет
func (g *Generator) ProductName() string {
	parts := []string{
		g.faker.RandomString(brands),
		g.faker.RandomString(descriptors),
		g.faker.RandomString(products),
	}
	if g.faker.Bool() {
		parts = append(parts, g.faker.RandomString(colors))
	}
	return strings.Join(parts, " ")
}

// VendorName базовое название поставщика
func (g *Generator) VendorName() string {
	name := g.faker.Company()
	// Company иногда уже содержит юридическую форму, отрезаем ее
	for _, form := range vendorForms {
		name = strings.TrimSuffix(name, " "+form)
	}
	return name
}

// Variant вносит в название один или несколько видов шума
func (g *Generator) Variant(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return name
	}

	// Опечатка в одном длинном слове
	if g.faker.Number(0, 2) > 0 {
		idx := g.faker.Number(0, len(words)-1)
		words[idx] = g.typo(words[idx])
	}

	// Перестановка слов
	if len(words) > 1 && g.faker.Bool() {
		i := g.faker.Number(0, len(words)-1)
		j := g.faker.Number(0, len(words)-1)
		words[i], words[j] = words[j], words[i]
	}

	// Служебные слова и лишние описания
	if g.faker.Number(0, 3) == 0 {
		words = append([]string{g.faker.RandomString(fillers)}, words...)
	}

	text := strings.Join(words, " ")

	switch g.faker.Number(0, 5) {
	case 0:
		text = strings.ToUpper(text)
	case 1:
		text = strings.ToLower(text)
	case 2:
		text = "<b>" + text + "</b>"
	case 3:
		text = strings.Replace(text, " ", " &amp; ", 1)
	case 4:
		text = text + ", " + g.faker.Numerify("#pcs")
	}

	return text
}

// VendorVariant вариант названия поставщика с юридической формой
func (g *Generator) VendorVariant(name string) string {
	text := name
	if g.faker.Bool() {
		text = g.Variant(name)
	}
	if g.faker.Number(0, 2) > 0 {
		text += " " + g.faker.RandomString(vendorForms)
	}
	return text
}

// typo удаляет, заменяет или переставляет один символ в слове длиннее четырех букв
func (g *Generator) typo(word string) string {
	runes := []rune(word)
	if len(runes) < 5 {
		return word
	}
	pos := g.faker.Number(1, len(runes)-2)
	switch g.faker.Number(0, 2) {
	case 0:
		return string(append(runes[:pos:pos], runes[pos+1:]...))
	case 1:
		runes[pos] = rune(g.faker.Letter()[0])
		return string(runes)
	default:
		runes[pos], runes[pos+1] = runes[pos+1], runes[pos]
		return string(runes)
	}
}

// EntityGroup группа с базовым названием и variants зашумленными вариантами.
// Базовое название встречается чаще любого варианта.
func (g *Generator) EntityGroup(entityID string, kind normalization.EntityKind, base string, variants int) normalization.EntityGroup {
	group := normalization.EntityGroup{EntityID: entityID, Kind: kind}
	group.Observations = append(group.Observations, normalization.AliasObservation{
		RawText:         base,
		OccurrenceCount: g.faker.Number(variants+2, variants+10),
	})

	for range variants {
		text := g.Variant(base)
		if kind == normalization.EntityKindVendor {
			text = g.VendorVariant(base)
		}
		group.Observations = append(group.Observations, normalization.AliasObservation{
			RawText:         text,
			OccurrenceCount: g.faker.Number(1, variants+1),
		})
	}
	return group
}

// SKUGroups генерирует n групп товаров с идентификаторами SKU0001, SKU0002, ...
func (g *Generator) SKUGroups(n int) []normalization.EntityGroup {
	groups := make([]normalization.EntityGroup, 0, n)
	for i := 1; i <= n; i++ {
		groups = append(groups, g.EntityGroup(fmt.Sprintf("SKU%04d", i), normalization.EntityKindSKU, g.ProductName(), g.faker.Number(1, 6)))
	}
	return groups
}

// VendorGroups генерирует n групп поставщиков с идентификаторами V0001, V0002, ...
func (g *Generator) VendorGroups(n int) []normalization.EntityGroup {
	groups := make([]normalization.EntityGroup, 0, n)
	for i := 1; i <= n; i++ {
		groups = append(groups, g.EntityGroup(fmt.Sprintf("V%04d", i), normalization.EntityKindVendor, g.VendorName(), g.faker.Number(1, 4)))
	}
	return groups
}

// LineItem одна строка заказа
type LineItem struct {
	EntityID string
	Kind     normalization.EntityKind
	RawText  string
}

// LineItems разворачивает группы в отдельные строки заказов по числу вхождений
func LineItems(groups []normalization.EntityGroup) []LineItem {
	var items []LineItem
	for _, group := range groups {
		for _, obs := range group.Observations {
			for range obs.OccurrenceCount {
				items = append(items, LineItem{EntityID: group.EntityID, Kind: group.Kind, RawText: obs.RawText})
			}
		}
	}
	return items
}

// GroundTruth эталонные имена: базовое название каждой группы
func GroundTruth(groups []normalization.EntityGroup, effectiveFrom string) []normalization.SeedRow {
	rows := make([]normalization.SeedRow, 0, len(groups))
	for _, group := range groups {
		if len(group.Observations) == 0 {
			continue
		}
		rows = append(rows, normalization.SeedRow{
			EntityID:      group.EntityID,
			CanonicalName: group.Observations[0].RawText,
			Source:        normalization.SeedSourceApproved,
			EffectiveFrom: effectiveFrom,
			Version:       "truth",
		})
	}
	return rows
}
