// Package models defines the domain types for Muninn.
package models

import (
	"fmt"
	"strings"

	"github.com/halvard/muninn/internal/apperr"
)

// Category identifies one of the governance corpus families.
type Category string

const (
	CategoryRisk       Category = "risk"
	CategoryMitigation Category = "mitigation"
	CategoryFramework  Category = "framework"
)

// Categories returns all known categories in canonical order.
func Categories() []Category {
	return []Category{CategoryRisk, CategoryMitigation, CategoryFramework}
}

// ParseCategory resolves user input to a Category. Both singular and
// plural spellings are accepted.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "risk", "risks":
		return CategoryRisk, nil
	case "mitigation", "mitigations":
		return CategoryMitigation, nil
	case "framework", "frameworks":
		return CategoryFramework, nil
	}
	return "", fmt.Errorf("%q: %w", s, apperr.ErrInvalidCategory)
}

// Prefix returns the filename prefix documents of this category carry.
func (c Category) Prefix() string {
	switch c {
	case CategoryRisk:
		return "ri-"
	case CategoryMitigation:
		return "mi-"
	case CategoryFramework:
		return "fw-"
	}
	return ""
}

// DefaultDir returns the repository directory conventionally holding
// this category. Deployments can override it in configuration.
func (c Category) DefaultDir() string {
	switch c {
	case CategoryRisk:
		return "risks"
	case CategoryMitigation:
		return "mitigations"
	case CategoryFramework:
		return "frameworks"
	}
	return ""
}

func (c Category) String() string { return string(c) }
