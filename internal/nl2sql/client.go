package nl2sql

import (
	"context"
	"fmt"
	"strings"
)

// Client produces candidate SQL statements for cricket questions.
type Client struct {
	generator   TextGenerator
	temperature float64
}

func NewClient(generator TextGenerator, temperature float64) *Client {
	return &Client{generator: generator, temperature: temperature}
}

// Configured reports whether a generator with credentials is available.
func (c *Client) Configured() bool {
	return c != nil && c.generator != nil
}

func (c *Client) GenerateSQL(ctx context.Context, question string) ([]string, error) {
	if !c.Configured() {
		return nil, ErrGeneratorNotConfigured
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	text, err := c.generator.Generate(ctx, BuildPrompt(question, c.temperature))
	if err != nil {
		return nil, fmt.Errorf("generate sql: %w", err)
	}
	return ParseStatements(text)
}
