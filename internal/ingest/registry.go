// Package ingest fetches project documents from carbon registries: it
// resolves a registry project page, scrapes its PDF links, and downloads
// them politely (robots.txt, per-domain rate limits, bounded concurrency).
package ingest

import (
	"fmt"
	"strings"
)

// Registry identifies a supported carbon registry.
type Registry string

const (
	RegistryVerra        Registry = "verra"
	RegistryGoldStandard Registry = "gs"
)

// ParseRegistry validates a registry name from user input.
func ParseRegistry(s string) (Registry, error) {
	switch Registry(strings.ToLower(strings.TrimSpace(s))) {
	case RegistryVerra:
		return RegistryVerra, nil
	case RegistryGoldStandard:
		return RegistryGoldStandard, nil
	default:
		return "", fmt.Errorf("unknown registry %q (want verra or gs)", s)
	}
}

// ProjectID returns the canonical project folder name for a registry id,
// e.g. VCS_1566 or GS_1795.
func (r Registry) ProjectID(id string) string {
	switch r {
	case RegistryVerra:
		return "VCS_" + id
	case RegistryGoldStandard:
		return "GS_" + id
	}
	return id
}

// DetailURL returns the public project detail page for a registry id.
func (r Registry) DetailURL(id string) string {
	switch r {
	case RegistryVerra:
		return "https://registry.verra.org/app/projectDetail/VCS/" + id
	case RegistryGoldStandard:
		return "https://registry.goldstandard.org/projects/details/" + id
	}
	return ""
}
