package model

import (
	"fmt"
	"strings"
	"time"

	"product-content-ai/internal/domain"
)

// DescriptionInput is built from the scraped product record.
type DescriptionInput struct {
	ModelName    string            `json:"model_name"`
	Brand        string            `json:"brand,omitempty"`
	Season       string            `json:"season"`
	VehicleTypes []string          `json:"vehicle_types"`
	LabelRatings map[string]string `json:"label_ratings,omitempty"`
	Notes        string            `json:"notes,omitempty"`
}

// SEOInput is read straight from a finished description result.
type SEOInput struct {
	ProductName      string   `json:"product_name"`
	ShortDescription string   `json:"short_description"`
	Highlights       []string `json:"highlights"`
}

type FAQInput struct {
	ProductName      string   `json:"product_name"`
	ShortDescription string   `json:"short_description"`
	FullDescription  string   `json:"full_description"`
	Highlights       []string `json:"highlights"`
}

type ArticleInput struct {
	Topic    string   `json:"topic"`
	Keywords []string `json:"keywords,omitempty"`
	Context  string   `json:"context,omitempty"`
}

type ImageInput struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// GenerationRequest carries exactly one payload matching TaskType.
type GenerationRequest struct {
	TaskType         TaskType          `json:"task_type"`
	Description      *DescriptionInput `json:"description,omitempty"`
	SEO              *SEOInput         `json:"seo,omitempty"`
	FAQ              *FAQInput         `json:"faq,omitempty"`
	Article          *ArticleInput     `json:"article,omitempty"`
	Image            *ImageInput       `json:"image,omitempty"`
	ProviderOverride string            `json:"provider_override,omitempty"`
}

// Validate checks the payload fields the task needs. Errors wrap domain.ErrInvalidRequest.
func (r GenerationRequest) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%s request: missing %s: %w", r.TaskType, field, domain.ErrInvalidRequest)
	}
	switch r.TaskType {
	case TaskDescription:
		if r.Description == nil {
			return missing("description payload")
		}
		if strings.TrimSpace(r.Description.ModelName) == "" {
			return missing("model name")
		}
		if strings.TrimSpace(r.Description.Season) == "" {
			return missing("season")
		}
		if len(r.Description.VehicleTypes) == 0 {
			return missing("vehicle types")
		}
	case TaskSEO:
		if r.SEO == nil {
			return missing("seo payload")
		}
		if strings.TrimSpace(r.SEO.ShortDescription) == "" {
			return missing("short description")
		}
		if len(r.SEO.Highlights) == 0 {
			return missing("highlights")
		}
	case TaskFAQ:
		if r.FAQ == nil {
			return missing("faq payload")
		}
		if strings.TrimSpace(r.FAQ.ShortDescription) == "" && strings.TrimSpace(r.FAQ.FullDescription) == "" {
			return missing("description text")
		}
	case TaskArticle:
		if r.Article == nil || strings.TrimSpace(r.Article.Topic) == "" {
			return missing("topic")
		}
	case TaskImage:
		if r.Image == nil || strings.TrimSpace(r.Image.Prompt) == "" {
			return missing("prompt")
		}
	default:
		return fmt.Errorf("unsupported task %q: %w", r.TaskType, domain.ErrInvalidRequest)
	}
	return nil
}

type DescriptionOutput struct {
	ShortDescription string   `json:"short_description"`
	FullDescription  string   `json:"full_description"`
	Highlights       []string `json:"highlights"`
}

type SEOOutput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type FAQOutput struct {
	Entries []FAQEntry `json:"entries"`
}

type ArticleOutput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type ImageOutput struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// GenerationOutput holds the task-specific structured fields; one member is set.
type GenerationOutput struct {
	Description *DescriptionOutput `json:"description,omitempty"`
	SEO         *SEOOutput         `json:"seo,omitempty"`
	FAQ         *FAQOutput         `json:"faq,omitempty"`
	Article     *ArticleOutput     `json:"article,omitempty"`
	Image       *ImageOutput       `json:"image,omitempty"`
}

// Usage as reported by the backend. Reported=false means the backend returned no counts.
type Usage struct {
	InputUnits  int  `json:"input_units"`
	OutputUnits int  `json:"output_units"`
	Reported    bool `json:"reported"`
}

type GenerationResult struct {
	Output       GenerationOutput `json:"output"`
	ProviderUsed string           `json:"provider_used"`
	Usage        Usage            `json:"usage"`
	CostMicros   int64            `json:"cost_micros"`
	Latency      time.Duration    `json:"latency"`
	RetryCount   int              `json:"retry_count"`
}
