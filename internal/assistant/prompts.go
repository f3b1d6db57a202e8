// internal/assistant/prompts.go
package assistant

import (
	"fmt"
	"librarydesk/internal/catalog"
	"strings"
)

func bookLine(b *catalog.Book) string {
	line := fmt.Sprintf("%q by %s", b.Title, b.Author)
	if b.PublishedYear > 0 {
		line += fmt.Sprintf(" (%d)", b.PublishedYear)
	}
	if b.Genre != "" {
		line += ", " + b.Genre
	}
	return line
}

func descriptionPrompt(b *catalog.Book) string {
	return "Write an engaging two-paragraph description for a library catalog of the book " +
		bookLine(b) + ". Do not reveal the ending."
}

func summaryPrompt(b *catalog.Book) string {
	prompt := "Summarize the book " + bookLine(b) + " for a student in five bullet points."
	if b.Description != "" {
		prompt += "\nCatalog description: " + b.Description
	}
	return prompt
}

func recommendationPrompt(recent []*catalog.Book) string {
	if len(recent) == 0 {
		return "Recommend five widely loved books for a university library reader, one line each with a reason."
	}
	lines := make([]string, len(recent))
	for i, b := range recent {
		lines[i] = "- " + bookLine(b)
	}
	return "A library reader recently borrowed:\n" + strings.Join(lines, "\n") +
		"\nRecommend five other books they may enjoy, one line each with a reason."
}
