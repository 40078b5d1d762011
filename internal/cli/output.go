package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rcliao/agent-knowledge/internal/model"
	"github.com/rcliao/agent-knowledge/internal/vector"
)

// Styles for --format text.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("86"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("219"))

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

var out = os.Stdout

func textOutput() bool {
	return formatFlag == "text"
}

// emit prints v as indented JSON, or calls text when --format text is set.
func emit(v any, text func()) {
	if textOutput() {
		text()
		return
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitErr("encode output", err)
	}
	fmt.Fprintln(out, string(b))
}

func line(a ...any) {
	fmt.Fprintln(out, a...)
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

func printEntryHeader(e *model.KnowledgeEntry) {
	head := idStyle.Render(fmt.Sprintf("#%d", e.ID)) + " " + titleStyle.Render(e.Title)
	if len(e.Tags) > 0 {
		head += " " + tagStyle.Render("["+strings.Join(e.Tags, ", ")+"]")
	}
	line(head)
	meta := "created " + stamp(e.CreatedAt) + ", updated " + stamp(e.UpdatedAt)
	if e.Source != nil {
		meta = "source " + *e.Source + ", " + meta
	}
	line("  " + dimStyle.Render(meta))
}

func printEntry(e *model.KnowledgeEntry) {
	printEntryHeader(e)
	line()
	line(e.Content)
}

func printEntries(entries []model.KnowledgeEntry) {
	if len(entries) == 0 {
		line(dimStyle.Render("no entries"))
		return
	}
	for i := range entries {
		printEntryHeader(&entries[i])
	}
}

func printHits(hits []vector.Hit) {
	if len(hits) == 0 {
		line(dimStyle.Render("no results"))
		return
	}
	for _, h := range hits {
		line(scoreStyle.Render(fmt.Sprintf("%.3f", h.Score)) + " " +
			idStyle.Render(fmt.Sprintf("%s #%d", h.Kind, h.SourceID)) + " " +
			titleStyle.Render(h.Title))
		line("  " + h.Preview)
	}
}

func printKV(key string, value any) {
	line("  " + dimStyle.Render(fmt.Sprintf("%-16s", key+":")) + " " + fmt.Sprint(value))
}
