package model

import "unicode/utf8"

// Product is one scraped record from the raw input source, keyed by slug.
type Product struct {
	Slug            string            `yaml:"slug" json:"slug"`
	ModelName       string            `yaml:"model_name" json:"model_name"`
	Brand           string            `yaml:"brand" json:"brand,omitempty"`
	Season          string            `yaml:"season" json:"season"`
	VehicleTypes    []string          `yaml:"vehicle_types" json:"vehicle_types"`
	LabelRatings    map[string]string `yaml:"label_ratings" json:"label_ratings,omitempty"`
	Notes           string            `yaml:"notes" json:"notes,omitempty"`
	DescriptionHTML string            `yaml:"description_html" json:"description_html,omitempty"`
	GenerateFAQ     bool              `yaml:"generate_faq" json:"generate_faq"`
}

// DisplayName is the name used in prompts.
func (p Product) DisplayName() string {
	if p.Brand == "" {
		return p.ModelName
	}
	return p.Brand + " " + p.ModelName
}

func (p Product) DescriptionRequest() GenerationRequest {
	return GenerationRequest{
		TaskType: TaskDescription,
		Description: &DescriptionInput{
			ModelName:    p.ModelName,
			Brand:        p.Brand,
			Season:       p.Season,
			VehicleTypes: p.VehicleTypes,
			LabelRatings: p.LabelRatings,
			Notes:        p.Notes,
		},
	}
}

// ContentBundle is what the publisher receives for one item.
type ContentBundle struct {
	Slug             string     `json:"slug"`
	ShortDescription string     `json:"short_description"`
	FullDescription  string     `json:"full_description"`
	Benefits         []string   `json:"benefits"`
	SEOTitle         string     `json:"seo_title"`
	SEODescription   string     `json:"seo_description"`
	FAQ              []FAQEntry `json:"faq,omitempty"`
}

// Truncate returns the longest prefix of s holding at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
