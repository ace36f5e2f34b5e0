package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"deepresearch/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	gradeStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)
)

// gradeBadge renders a quality grade with a grade-appropriate background.
func gradeBadge(grade types.Grade) string {
	color := "196" // F
	switch grade {
	case types.GradeA:
		color = "42"
	case types.GradeB:
		color = "76"
	case types.GradeC:
		color = "220"
	case types.GradeD:
		color = "208"
	}
	return gradeStyle.Background(lipgloss.Color(color)).Foreground(lipgloss.Color("232")).Render(string(grade))
}

// renderMarkdown pretty-prints a markdown report for the terminal, falling
// back to the raw text when the renderer is unavailable.
func renderMarkdown(text string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return out
}

// heading prints a styled section heading.
func heading(text string) {
	fmt.Println(titleStyle.Render(text))
}
