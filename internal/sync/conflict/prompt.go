package conflict

import (
	"fmt"
	"strings"

	"github.com/kshitijomkar/ledger/internal/models"
)

// Option is one answer offered to the user.
type Option struct {
	Label string        `json:"label" yaml:"label"`
	Value models.Choice `json:"value" yaml:"value"`
}

// Prompt asks the user which side of a conflict to keep.
type Prompt struct {
	Title   string   `json:"title" yaml:"title"`
	Message string   `json:"message" yaml:"message"`
	Options []Option `json:"options" yaml:"options"`
}

// NewPrompt builds the user prompt naming the conflicting fields.
func NewPrompt(fields []string) *Prompt {
	return &Prompt{
		Title:   "Data Conflict",
		Message: fmt.Sprintf("Fields changed on both devices: %s. Which version should be saved?", strings.Join(fields, ", ")),
		Options: []Option{
			{Label: "Keep server version", Value: models.ChoiceServer},
			{Label: "Keep local version", Value: models.ChoiceLocal},
		},
	}
}

// Prompt builds the user prompt for r.
func (r *Resolution) Prompt() *Prompt {
	return NewPrompt(r.ConflictFields)
}

// PromptFor builds the user prompt for a logged conflict.
func PromptFor(c *models.ConflictLog) *Prompt {
	if c.Kind == models.ConflictDelete {
		return &Prompt{
			Title:   "Data Conflict",
			Message: fmt.Sprintf("This %s record was deleted on another device but changed here. Which version should be saved?", strings.TrimSuffix(string(c.Table), "s")),
			Options: []Option{
				{Label: "Keep server version", Value: models.ChoiceServer},
				{Label: "Keep local version", Value: models.ChoiceLocal},
			},
		}
	}
	return NewPrompt(c.ConflictFields)
}

// String renders the prompt as plain text.
func (p *Prompt) String() string {
	var b strings.Builder
	b.WriteString(p.Title)
	b.WriteString("\n")
	b.WriteString(p.Message)
	for i, o := range p.Options {
		fmt.Fprintf(&b, "\n  %d) %s [%s]", i+1, o.Label, o.Value)
	}
	return b.String()
}
