package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/chuckie/autopr/internal/adapters/cache"
	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/ports"
	"github.com/chuckie/autopr/internal/security"
)

const truncatedMarker = "\n[... truncated ...]\n"

// Hints are the user's own words about the change.
type Hints struct {
	What          string
	Why           string
	BiggerPicture string
}

// NamingService turns a diff into a branch name and commit message, asking
// the language model at most once per DiffKey.
type NamingService struct {
	llm      ports.LLM
	cache    *cache.PatchCache
	redactor ports.Redactor
	settings Settings
	backoff  time.Duration
	calls    atomic.Int64
	log      zerolog.Logger
}

// NewNamingService wires a naming service.
func NewNamingService(llm ports.LLM, c *cache.PatchCache, redactor ports.Redactor, settings Settings) *NamingService {
	return &NamingService{
		llm:      llm,
		cache:    c,
		redactor: redactor,
		settings: settings,
		backoff:  time.Second,
		log:      observability.Component("naming"),
	}
}

// Calls reports how many requests reached the model.
func (s *NamingService) Calls() int {
	return int(s.calls.Load())
}

// Name returns the naming for diff. hit is true when no request was made.
// Every call goes through the memo, so a key costs at most one request per
// session.
func (s *NamingService) Name(ctx context.Context, diff domain.CachedDiff, hints Hints, issues string) (domain.Naming, bool, error) {
	return s.cache.GetOrComputeNaming(ctx, diff.Key, func(ctx context.Context) (domain.Naming, error) {
		return s.request(ctx, diff, hints, issues)
	})
}

func (s *NamingService) request(ctx context.Context, diff domain.CachedDiff, hints Hints, issues string) (domain.Naming, error) {
	text := capUTF8(diff.Text, s.settings.DiffCap)
	if s.settings.Redact {
		redacted := s.redactor.Redact(text)
		if redacted != text {
			s.log.Debug().Str("key", diff.Key.String()).Msg(security.SummarizeRedactions(text, redacted))
		}
		text = redacted
	}
	input := ports.NamingInput{
		Diff:          text,
		Files:         diff.Files,
		Issues:        capUTF8(issues, s.settings.IssuesCap),
		What:          hints.What,
		Why:           hints.Why,
		BiggerPicture: hints.BiggerPicture,
		Model:         s.settings.Model,
		Temperature:   s.settings.Temperature,
	}

	var err error
	for attempt := 0; attempt <= s.settings.Retries; attempt++ {
		if attempt > 0 {
			s.log.Warn().Err(err).Int("attempt", attempt+1).Str("key", diff.Key.String()).Msg("retrying transient LLM failure")
			select {
			case <-ctx.Done():
				return domain.Naming{}, domain.Wrap(domain.ErrCancelled, "naming", ctx.Err())
			case <-time.After(s.backoff):
			}
		}
		s.calls.Add(1)
		var naming domain.Naming
		naming, err = s.llm.SuggestNaming(ctx, input)
		if err == nil {
			naming.Normalize()
			if verr := naming.Validate(); verr != nil {
				return domain.Naming{}, domain.Wrap(domain.ErrLLMRequest, "validate naming", verr)
			}
			s.log.Info().Str("key", diff.Key.String()).Str("branch", naming.BranchName).Msg("naming received")
			return naming, nil
		}
		if !errors.Is(err, domain.ErrTransient) || ctx.Err() != nil {
			break
		}
	}
	if ctx.Err() != nil {
		return domain.Naming{}, domain.Wrap(domain.ErrCancelled, "naming", err)
	}
	return domain.Naming{}, domain.Wrap(domain.ErrLLMRequest, fmt.Sprintf("naming %s", diff.Key), err)
}

// capUTF8 cuts s to at most max bytes without splitting a rune. A negative or
// zero max leaves s alone.
func capUTF8(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedMarker
}
