package model

import (
	"fmt"
	"strings"

	"product-content-ai/internal/domain"
)

type TaskType string

const (
	TaskDescription TaskType = "description"
	TaskSEO         TaskType = "seo"
	TaskFAQ         TaskType = "faq"
	TaskArticle     TaskType = "article"
	TaskImage       TaskType = "image"
)

// AllTaskTypes lists every task in a stable order.
var AllTaskTypes = []TaskType{TaskDescription, TaskSEO, TaskFAQ, TaskArticle, TaskImage}

// Category returns the single provider category able to serve the task.
func (t TaskType) Category() Category {
	if t == TaskImage {
		return CategoryImage
	}
	return CategoryText
}

func (t TaskType) Valid() bool {
	for _, k := range AllTaskTypes {
		if k == t {
			return true
		}
	}
	return false
}

func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("task type %q: %w", s, domain.ErrInvalidArgument)
	}
	return t, nil
}
