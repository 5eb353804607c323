package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// cell is a table value with an optional style.
type cell struct {
	text  string
	style *lipgloss.Style
}

func plain(s string) cell {
	return cell{text: s}
}

func styled(s string, style lipgloss.Style) cell {
	return cell{text: s, style: &style}
}

// printTable writes a header row, a rule and the rows with columns padded to
// the widest value.
func printTable(headers []string, rows [][]cell) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, c := range row {
			if w := lipgloss.Width(c.text); w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := 0

	parts := make([]string, len(headers))
	for i, h := range headers {
		parts[i] = headerStyle.Render(padRight(h, widths[i]))
		total += widths[i] + 2
	}

	_, _ = fmt.Fprintln(os.Stdout)
	_, _ = fmt.Fprintln(os.Stdout, strings.Join(parts, "  "))
	_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("-", max(total-2, 0)))

	for _, row := range rows {
		for i, c := range row {
			text := padRight(c.text, widths[i])
			if c.style != nil {
				text = c.style.Render(text)
			}

			parts[i] = text
		}

		_, _ = fmt.Fprintln(os.Stdout, strings.Join(parts[:len(row)], "  "))
	}

	_, _ = fmt.Fprintln(os.Stdout)
}

func addJSONFlag(fs *pflag.FlagSet) {
	fs.Bool("json", false, "Output as JSON")
}

// printField prints one "label: value" line.
func printField(label, value string) {
	_, _ = fmt.Fprintf(os.Stdout, "%s %s\n", labelStyle.Render(padRight(label+":", 16)), value)
}

// padRight pads s with spaces to width
func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}

	return s
}

// truncateString truncates a string to the specified length with ellipsis
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	if maxLen <= 3 {
		return s[:maxLen]
	}

	return s[:maxLen-3] + "..."
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}

	return t.Local().Format("2006-01-02 15:04:05")
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}

	return *s
}

func shortHash(s *string) string {
	h := deref(s, "-")
	if len(h) > 10 {
		return h[:10]
	}

	return h
}

// promptConfirm asks the user for confirmation and returns true if they confirm
func promptConfirm(prompt string) bool {
	_, _ = fmt.Fprint(os.Stdout, prompt)

	var response string

	_, _ = fmt.Scanln(&response)

	return response == "y" || response == "Y"
}

// readPassword reads a secret from the terminal without echoing, or a line
// from piped input.
func readPassword(prompt string) (string, error) {
	_, _ = fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(os.Stderr)

		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		return string(password), nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}

	return "", fmt.Errorf("failed to read password")
}

// readNewPassword prompts twice and requires both entries to match.
func readNewPassword() (string, error) {
	first, err := readPassword("Password: ")
	if err != nil {
		return "", err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return first, nil
	}

	second, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}

	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}

	return first, nil
}

// expandPath expands ~ to the user's home directory and returns an absolute path
func expandPath(path string) (string, error) {
	if len(path) == 0 {
		return "", fmt.Errorf("path is empty")
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}

		path = filepath.Join(home, path[1:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	return absPath, nil
}
