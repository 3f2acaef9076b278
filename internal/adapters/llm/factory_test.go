package llm

import (
	"context"
	"testing"

	"github.com/chuckie/autopr/internal/adapters/llm/mock"
	"github.com/chuckie/autopr/internal/adapters/llm/openai"
	"github.com/chuckie/autopr/internal/ports"
)

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		provider string
		apiKey   string
		wantErr  bool
	}{
		{"openai", "sk-test", false},
		{"openai", "", true},
		{"groq", "gsk-test", false},
		{"ollama", "", false},
		{"mock", "", false},
		{"anthropic", "key", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.apiKey, func(t *testing.T) {
			got, err := NewFromConfig(tt.provider, tt.apiKey, "", "http://localhost:11434/")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch tt.provider {
			case "mock":
				if _, ok := got.(*mock.Client); !ok {
					t.Errorf("got %T, want *mock.Client", got)
				}
			default:
				if _, ok := got.(*openai.Client); !ok {
					t.Errorf("got %T, want *openai.Client", got)
				}
			}
		})
	}
}

func TestMockIsDeterministic(t *testing.T) {
	llm, _ := NewFromConfig("mock", "", "", "")
	in := ports.NamingInput{Diff: "diff --git a/x b/x", Files: []string{"x"}}

	a, err := llm.SuggestNaming(context.Background(), in)
	if err != nil {
		t.Fatalf("SuggestNaming() error = %v", err)
	}
	b, _ := llm.SuggestNaming(context.Background(), in)
	if a != b {
		t.Errorf("mock namings differ: %+v vs %+v", a, b)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("mock naming invalid: %v", err)
	}
	if _, ok := a.CommitType(); !ok {
		t.Errorf("mock title %q is not a conventional commit", a.CommitTitle)
	}
}
