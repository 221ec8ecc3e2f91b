package main

import (
	"encoding/json"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
