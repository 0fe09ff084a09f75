package handlers

import (
	"regexp"
	"strings"

	"github.com/kanbanflow/kanbanflow/pkg/models"
	apierrors "github.com/kanbanflow/kanbanflow/internal/api/errors"
)

// Field length limits.
const (
	maxBoardTitleLen  = 100
	maxBoardDescLen   = 500
	maxListTitleLen   = 100
	maxCardTitleLen   = 200
	maxCardDescLen    = 2000
	maxLabelNameLen   = 50
	maxCommentLen     = 1000
	minPasswordLen    = 8
)

var (
	hexColorRe = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func validateBoardInput(title, description, color string) apierrors.ValidationErrors {
	var v apierrors.ValidationErrors
	title = strings.TrimSpace(title)
	if title == "" {
		v.Add("title", "Title is required")
	} else if len(title) > maxBoardTitleLen {
		v.Add("title", "Title must be at most 100 characters")
	}
	if len(description) > maxBoardDescLen {
		v.Add("description", "Description must be at most 500 characters")
	}
	if color != "" && !hexColorRe.MatchString(color) {
		v.Add("color", "Color must be a hex value like #0066cc")
	}
	return v
}

func validateListTitle(title string) apierrors.ValidationErrors {
	var v apierrors.ValidationErrors
	title = strings.TrimSpace(title)
	if title == "" {
		v.Add("title", "Title is required")
	} else if len(title) > maxListTitleLen {
		v.Add("title", "Title must be at most 100 characters")
	}
	return v
}

func validateCardInput(title, description string, labels []models.Label) apierrors.ValidationErrors {
	var v apierrors.ValidationErrors
	title = strings.TrimSpace(title)
	if title == "" {
		v.Add("title", "Title is required")
	} else if len(title) > maxCardTitleLen {
		v.Add("title", "Title must be at most 200 characters")
	}
	if len(description) > maxCardDescLen {
		v.Add("description", "Description must be at most 2000 characters")
	}
	for _, label := range labels {
		if label.Name == "" || len(label.Name) > maxLabelNameLen {
			v.Add("labels", "Label names must be 1 to 50 characters")
			break
		}
		if label.Color != "" && !hexColorRe.MatchString(label.Color) {
			v.Add("labels", "Label colors must be hex values")
			break
		}
	}
	return v
}

func validateCommentContent(content string) apierrors.ValidationErrors {
	var v apierrors.ValidationErrors
	content = strings.TrimSpace(content)
	if content == "" {
		v.Add("content", "Content is required")
	} else if len(content) > maxCommentLen {
		v.Add("content", "Content must be at most 1000 characters")
	}
	return v
}

func validEmail(email string) bool {
	return emailRe.MatchString(strings.TrimSpace(email))
}
