package chat

import (
	"context"
	"fmt"
	"strings"
)

// EchoProvider answers offline by quoting the prompt back. It lets the CLI
// and tests drive a full session without network access.
type EchoProvider struct{}

func NewEchoProvider() *EchoProvider { return &EchoProvider{} }

func (EchoProvider) Name() string { return "echo" }

func (EchoProvider) Reply(ctx context.Context, history []Message, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## 回复 %d\n\n", len(history)/2+1)
	for _, line := range strings.Split(strings.TrimSpace(prompt), "\n") {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), nil
}
