package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
)

// Prompt is the text pair sent to chat-style backends.
type Prompt struct {
	System string
	User   string
}

const systemBase = "You are a product copywriter for an online tyre shop. " +
	"Answer with a single JSON object and nothing else."

// BuildPrompt renders req into a prompt. The request must already be valid.
func BuildPrompt(req model.GenerationRequest) (Prompt, error) {
	var b strings.Builder
	switch req.TaskType {
	case model.TaskDescription:
		in := req.Description
		fmt.Fprintf(&b, "Write marketing copy for the tyre model %q", in.ModelName)
		if in.Brand != "" {
			fmt.Fprintf(&b, " by %s", in.Brand)
		}
		fmt.Fprintf(&b, ".\nSeason: %s\nVehicle types: %s\n", in.Season, strings.Join(in.VehicleTypes, ", "))
		if len(in.LabelRatings) > 0 {
			keys := make([]string, 0, len(in.LabelRatings))
			for k := range in.LabelRatings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			b.WriteString("EU label:\n")
			for _, k := range keys {
				fmt.Fprintf(&b, "- %s: %s\n", k, in.LabelRatings[k])
			}
		}
		if in.Notes != "" {
			fmt.Fprintf(&b, "Notes from the manufacturer:\n%s\n", in.Notes)
		}
		b.WriteString(`Return {"short_description": string, "full_description": markdown string, "highlights": [string]} with 3 to 6 highlights.`)
	case model.TaskSEO:
		in := req.SEO
		fmt.Fprintf(&b, "Write SEO metadata for %q.\nSummary: %s\nHighlights:\n", in.ProductName, in.ShortDescription)
		for _, h := range in.Highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString(`Return {"title": string, "description": string}. Keep the title under 70 characters and the description under 170.`)
	case model.TaskFAQ:
		in := req.FAQ
		fmt.Fprintf(&b, "Write a short FAQ for %q.\nSummary: %s\n", in.ProductName, in.ShortDescription)
		if in.FullDescription != "" {
			fmt.Fprintf(&b, "Details:\n%s\n", in.FullDescription)
		}
		for _, h := range in.Highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString(`Return {"entries": [{"question": string, "answer": string}]} with 3 to 5 entries.`)
	case model.TaskArticle:
		in := req.Article
		fmt.Fprintf(&b, "Write a blog article about %s.\n", in.Topic)
		if len(in.Keywords) > 0 {
			fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(in.Keywords, ", "))
		}
		if in.Context != "" {
			fmt.Fprintf(&b, "Context:\n%s\n", in.Context)
		}
		b.WriteString(`Return {"title": string, "body": markdown string}.`)
	case model.TaskImage:
		return Prompt{User: req.Image.Prompt}, nil
	default:
		return Prompt{}, fmt.Errorf("no prompt for task %q: %w", req.TaskType, domain.ErrInvalidRequest)
	}
	return Prompt{System: systemBase, User: b.String()}, nil
}

var errNoJSON = errors.New("no json object in reply")

// extractJSON trims code fences and chatter around the first JSON object.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}

// ParseOutput decodes a text reply into the structured output for task.
// Malformed replies are classified Unknown so they get one more attempt.
func ParseOutput(provider string, task model.TaskType, text string) (model.GenerationOutput, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return model.GenerationOutput{}, domain.NewProviderError(provider, domain.KindUnknown, 0, err)
	}
	var out model.GenerationOutput
	switch task {
	case model.TaskDescription:
		var d model.DescriptionOutput
		if err = json.Unmarshal([]byte(raw), &d); err == nil && d.ShortDescription == "" {
			err = errors.New("empty short_description")
		}
		out.Description = &d
	case model.TaskSEO:
		var s model.SEOOutput
		if err = json.Unmarshal([]byte(raw), &s); err == nil && s.Title == "" {
			err = errors.New("empty title")
		}
		out.SEO = &s
	case model.TaskFAQ:
		var f model.FAQOutput
		if err = json.Unmarshal([]byte(raw), &f); err == nil && len(f.Entries) == 0 {
			err = errors.New("no faq entries")
		}
		out.FAQ = &f
	case model.TaskArticle:
		var a model.ArticleOutput
		if err = json.Unmarshal([]byte(raw), &a); err == nil && a.Body == "" {
			err = errors.New("empty body")
		}
		out.Article = &a
	default:
		err = fmt.Errorf("task %q has no text output", task)
	}
	if err != nil {
		return model.GenerationOutput{}, domain.NewProviderError(provider, domain.KindUnknown, 0, fmt.Errorf("decode %s reply: %w", task, err))
	}
	return out, nil
}
