package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
)

const (
	// DefaultModel is the model used for summaries.
	DefaultModel = "gemini-2.0-flash-lite"

	apiVersion     = "v1beta"
	maxWords       = 5
	maxBodyChars   = 500
	maxTokens      = 20
	temperature    = 0.3
	requestTimeout = 10 * time.Second

	prompt = "Generate a very short summary (3-5 words max) for this email. " +
		"Focus on the key action or information, keeping it brief and to the point:\n\n"
)

// Sources of a Summary.
const (
	SourceGemini = "gemini"
	SourceRules  = "rules"
)

// Email is the part of a message a summary is built from.
type Email struct {
	Subject string `json:"subject"`
	From    string `json:"from,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Summary is a summary of at most five words.
type Summary struct {
	Text   string `json:"summary"`
	Source string `json:"source"`
}

// Config configures a Summarizer.
type Config struct {
	// APIKey enables Gemini. Empty means rule-based summaries only.
	APIKey string
	// Endpoint overrides the Gemini API base URL.
	Endpoint string
	Model    string

	HTTPClient *http.Client
	Metrics    *instrumentation.Metrics
	Logger     *slog.Logger
}

// Summarizer summarizes emails.
type Summarizer struct {
	client  *genai.Client
	model   string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// New returns a Summarizer. Without an API key it never calls Gemini.
func New(ctx context.Context, cfg Config) (*Summarizer, error) {
	s := &Summarizer{
		model:   cfg.Model,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = logging.WithComponent(s.logger, "summarize")

	if cfg.APIKey == "" {
		return s, nil
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.Endpoint,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	s.client = client
	return s, nil
}

// Summarize returns a summary of e. It only fails when ctx is done; Gemini
// errors fall back to the rule-based summary.
func (s *Summarizer) Summarize(ctx context.Context, e Email) (Summary, error) {
	if s.client != nil {
		text, err := s.generate(ctx, e)
		if err == nil {
			s.metrics.RecordSummary(ctx, SourceGemini)
			return Summary{Text: text, Source: SourceGemini}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Summary{}, ctxErr
		}
		s.logger.Warn("gemini summary failed, using rules", logging.Err(err))
	}
	s.metrics.RecordSummary(ctx, SourceRules)
	return Summary{Text: Rules(e), Source: SourceRules}, nil
}

func (s *Summarizer) generate(ctx context.Context, e Email) (string, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGemini, instrumentation.OperationGenerate)
	defer span.End()

	start := time.Now()
	summary, err := s.generateContent(ctx, e)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGemini, instrumentation.OperationGenerate, status, time.Since(start))
	return summary, err
}

func (s *Summarizer) generateContent(ctx context.Context, e Email) (string, error) {
	text := fmt.Sprintf("Subject: %s\nFrom: %s\nSnippet: %s\nBody: %s\n",
		e.Subject, e.From, e.Snippet, truncateRunes(e.Body, maxBodyChars))

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt+text), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	summary := e.Subject
	if t := strings.TrimSpace(firstText(resp)); t != "" {
		summary = t
	}
	summary = truncateWords(summary, maxWords)
	if summary == "" {
		return "", fmt.Errorf("gemini returned an empty summary")
	}
	return summary, nil
}

// firstText returns the text of the first candidate.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// truncateRunes keeps at most n characters of s.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
