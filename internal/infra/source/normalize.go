package source

import (
	"fmt"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"product-content-ai/internal/domain/model"
)

// Normalize cleans a scraped record in place: trims fields, drops empty
// vehicle types and converts the scraped HTML block to markdown notes.
func Normalize(p *model.Product) error {
	p.Slug = strings.TrimSpace(p.Slug)
	p.ModelName = strings.TrimSpace(p.ModelName)
	p.Brand = strings.TrimSpace(p.Brand)
	p.Season = strings.ToLower(strings.TrimSpace(p.Season))

	types := p.VehicleTypes[:0]
	for _, v := range p.VehicleTypes {
		if v = strings.TrimSpace(v); v != "" {
			types = append(types, v)
		}
	}
	p.VehicleTypes = types

	if strings.TrimSpace(p.DescriptionHTML) == "" {
		return nil
	}
	conv := md.NewConverter("", true, nil)
	text, err := conv.ConvertString(p.DescriptionHTML)
	if err != nil {
		return fmt.Errorf("%s: convert description html: %w", p.Slug, err)
	}
	text = strings.TrimSpace(text)
	switch {
	case text == "":
	case p.Notes == "":
		p.Notes = text
	default:
		p.Notes = strings.TrimSpace(p.Notes) + "\n\n" + text
	}
	p.DescriptionHTML = ""
	return nil
}

// SortedKeys keeps List output stable.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
