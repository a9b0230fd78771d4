// Package catalog содержит неизменяемый каталог пакетов пополнения кредитов.
package catalog

import (
	"errors"
	"sort"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

// ErrPackageNotFound возвращается, если пакет с указанным идентификатором отсутствует в каталоге.
var ErrPackageNotFound = errors.New("package not found")

// Catalog хранит пакеты, заданные при запуске сервиса. После создания не изменяется.
type Catalog struct {
	packages map[string]model.Package
	order    []string
}

// New создаёт каталог из списка пакетов. Порядок списка сохраняется при перечислении.
func New(packages ...model.Package) (*Catalog, error) {
	c := &Catalog{packages: make(map[string]model.Package, len(packages))}
	for _, p := range packages {
		if p.ID == "" {
			return nil, errors.New("package id is empty")
		}
		if _, dup := c.packages[p.ID]; dup {
			return nil, errors.New("duplicate package id: " + p.ID)
		}
		if p.PriceMinorUnits < 0 || p.CreditsGranted <= 0 {
			return nil, errors.New("invalid price or credits for package " + p.ID)
		}
		p.Features = append([]string(nil), p.Features...)
		c.packages[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Default возвращает каталог пакетов, используемый в продакшене.
func Default() *Catalog {
	c, err := New(
		model.Package{
			ID:              "starter",
			DisplayName:     "Starter Refill",
			PriceMinorUnits: 1000,
			CreditsGranted:  1000,
			Features:        []string{"1 Text-only Campaign", "Basic Email Support"},
		},
		model.Package{
			ID:              "growth",
			DisplayName:     "Growth Refill",
			PriceMinorUnits: 2500,
			CreditsGranted:  3000,
			Features:        []string{"Ideal for Image Gen", "Priority Queue", "Email Support"},
			IsFeatured:      true,
		},
		model.Package{
			ID:              "pro",
			DisplayName:     "Pro Bulk",
			PriceMinorUnits: 5000,
			CreditsGranted:  7500,
			Features:        []string{"Maximum Margin", "Dedicated Rep", "24/7 Support"},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Get возвращает пакет по идентификатору.
func (c *Catalog) Get(id string) (model.Package, error) {
	p, ok := c.packages[id]
	if !ok {
		return model.Package{}, ErrPackageNotFound
	}
	p.Features = append([]string(nil), p.Features...)
	return p, nil
}

// List возвращает все пакеты в порядке их объявления.
func (c *Catalog) List() []model.Package {
	res := make([]model.Package, 0, len(c.order))
	for _, id := range c.order {
		p, _ := c.Get(id)
		res = append(res, p)
	}
	return res
}

// IDs возвращает отсортированный список идентификаторов пакетов.
func (c *Catalog) IDs() []string {
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}
