package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/debuck1718/smartstudent/internal/dashboard"
)

func printHeader(title string) {
	fmt.Println(color.CyanString(title))
	fmt.Println("─────────────────────")
}

func printList(title string, lines []string, empty string) {
	fmt.Println(color.New(color.Bold).Sprint(title))
	if len(lines) == 0 {
		fmt.Println("  " + empty)
		return
	}
	for _, l := range lines {
		fmt.Println("  " + l)
	}
}

func warn(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.YellowString("warning: "+format, args...))
}

// consoleToaster prints toasts in green, or red for errors.
type consoleToaster struct{}

func (consoleToaster) Toast(msg string, kind dashboard.ToastKind) {
	if kind == dashboard.ToastError {
		fmt.Println(color.RedString(msg))
		return
	}
	fmt.Println(color.GreenString(msg))
}

// prompt asks yes/no questions on a terminal; assumeYes skips the question.
type prompt struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func newPrompt(assumeYes bool) *prompt {
	return &prompt{in: bufio.NewReader(os.Stdin), out: os.Stdout, assumeYes: assumeYes}
}

func (p *prompt) Confirm(question string) bool {
	if p.assumeYes {
		return true
	}
	fmt.Fprintf(p.out, "%s [y/N] ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (p *prompt) Alert(msg string) {
	fmt.Fprintln(p.out, color.YellowString(msg))
}
