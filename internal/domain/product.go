package domain

import (
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ValidReferenceURL reports whether raw names a fetchable reference image.
// Providers resolve the reference themselves, so only absolute http(s) URLs
// qualify.
func ValidReferenceURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// DeriveProductName returns name trimmed, or a title-cased name derived from
// the reference URL's file stem when name is blank ("black-denim.png" becomes
// "Black Denim").
func DeriveProductName(name, referenceURL string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	parsed, err := url.Parse(strings.TrimSpace(referenceURL))
	if err != nil {
		return "Untitled product"
	}
	stem := path.Base(parsed.Path)
	stem = strings.TrimSuffix(stem, path.Ext(stem))
	stem = strings.NewReplacer("-", " ", "_", " ", "%20", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" || stem == "/" || stem == "." {
		return "Untitled product"
	}
	return cases.Title(language.Und).String(stem)
}

// Product is a reference asset registered for generation runs: a name plus
// the URL of the photo every prompt in a run is applied to.
type Product struct {
	ID           string
	Name         string
	ReferenceURL string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PromptSet is a saved list of prompts attached to a product, reusable as a
// run batch.
type PromptSet struct {
	ID        string
	ProductID string
	Name      string
	Prompts   []string
	CreatedAt time.Time
}
