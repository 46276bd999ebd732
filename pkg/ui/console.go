// Copyright 2025 The aks-agent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ui renders agent output on the terminal: section banners, status
// lines and streamed model responses with optional markdown rendering.
package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"k8s.io/klog/v2"
)

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Console writes agent output to a terminal.
type Console struct {
	out io.Writer

	markdownRenderer *glamour.TermRenderer
	renderMarkdown   bool

	// streamBuf accumulates streamed fragments so that a complete markdown
	// document can be rendered once streaming finishes.
	streamBuf strings.Builder

	rlInstance *readline.Instance
}

// NewConsole creates a Console writing to out. Markdown rendering is enabled
// only when out is a terminal; plain fragments are echoed as-is otherwise.
func NewConsole(out io.Writer) (*Console, error) {
	c := &Console{out: out}

	if isTerminal(out) {
		options := []glamour.TermRendererOption{
			glamour.WithAutoStyle(),
			glamour.WithPreservedNewLines(),
			glamour.WithEmoji(),
		}
		if width := customTerminalWidth(); width > 0 {
			options = append(options, glamour.WithWordWrap(width))
		}
		mdRenderer, err := glamour.NewTermRenderer(options...)
		if err != nil {
			return nil, fmt.Errorf("initializing the markdown renderer: %w", err)
		}
		c.markdownRenderer = mdRenderer
		c.renderMarkdown = true
	}

	return c, nil
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func customTerminalWidth() int {
	// Check for user-configured width via environment variable
	if widthStr := os.Getenv("AKS_AGENT_TERM_WIDTH"); widthStr != "" {
		if width, err := strconv.Atoi(widthStr); err == nil && width > 0 {
			return width
		}
		klog.Warningf("Invalid AKS_AGENT_TERM_WIDTH value %q, using default", widthStr)
	}
	return 0
}

// Banner prints a section header surrounded by rules, matching the layout of
// the scenario transcript.
func (c *Console) Banner(title string) {
	rule := ruleStyle.Render(strings.Repeat("=", 70))
	fmt.Fprintf(c.out, "\n%s\n%s\n%s\n", rule, bannerStyle.Render(title), rule)
}

// Infof prints an unstyled status line.
func (c *Console) Infof(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Successf prints a green status line.
func (c *Console) Successf(format string, args ...any) {
	fmt.Fprintln(c.out, successStyle.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints a red status line.
func (c *Console) Errorf(format string, args ...any) {
	fmt.Fprintln(c.out, errorStyle.Render(fmt.Sprintf(format, args...)))
}

// Warningf prints a yellow status line.
func (c *Console) Warningf(format string, args ...any) {
	fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf(format, args...)))
}

// StreamText writes one fragment of a streamed model response. When markdown
// rendering is enabled the fragment is held back until EndStream because
// markdown cannot be rendered incrementally.
func (c *Console) StreamText(fragment string) {
	c.streamBuf.WriteString(fragment)
	if !c.renderMarkdown {
		fmt.Fprint(c.out, fragment)
	}
}

// EndStream finishes the current streamed response, rendering the held-back
// markdown when enabled. It returns the full accumulated text.
func (c *Console) EndStream() string {
	text := c.streamBuf.String()
	c.streamBuf.Reset()

	if c.renderMarkdown && text != "" {
		out, err := c.markdownRenderer.Render(text)
		if err != nil {
			klog.Errorf("Error rendering markdown: %v", err)
			fmt.Fprint(c.out, text)
		} else {
			fmt.Fprint(c.out, out)
		}
	} else if !c.renderMarkdown {
		fmt.Fprintln(c.out)
	}

	return text
}

// ReadLine prompts for one line of input using readline with history.
func (c *Console) ReadLine(prompt string) (string, error) {
	rl, err := c.readlineInstance()
	if err != nil {
		return "", err
	}
	rl.SetPrompt(prompt)
	line, err := rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}
	return line, nil
}

func (c *Console) readlineInstance() (*readline.Instance, error) {
	if c.rlInstance != nil {
		return c.rlInstance, nil
	}
	historyPath := filepath.Join(os.TempDir(), "aks-agent-history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      ">>> ",
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		HistoryFile: historyPath,
	})
	if err != nil {
		return nil, fmt.Errorf("creating readline instance: %w", err)
	}
	c.rlInstance = rl
	return c.rlInstance, nil
}

// Close releases input resources.
func (c *Console) Close() error {
	if c.rlInstance != nil {
		return c.rlInstance.Close()
	}
	return nil
}
