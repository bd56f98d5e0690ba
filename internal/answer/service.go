package answer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/ports"
	"medrag/internal/retrieval"
)

// Service turns a question into a grounded answer: retrieve, build the
// source context, ask the model. A model failure degrades to a
// deterministic fallback instead of an error.
type Service struct {
	retriever *retrieval.Service
	generator ports.Generator
	maxTokens int
	cfg       config.SearchConfig
}

// NewService wires the answer pipeline.
func NewService(retriever *retrieval.Service, generator ports.Generator, llmCfg config.LLMConfig, searchCfg config.SearchConfig) *Service {
	return &Service{
		retriever: retriever,
		generator: generator,
		maxTokens: llmCfg.MaxTokens,
		cfg:       searchCfg,
	}
}

// Response is the answer payload for one question.
type Response struct {
	Question string                `json:"question"`
	Answer   string                `json:"answer"`
	Sources  []domain.RankedResult `json:"sources"`
	Fallback bool                  `json:"fallback"`
	Degraded bool                  `json:"vector_degraded"`
}

// Ask answers a question against the index. Retrieval failures are
// returned as errors; generation failures are not.
func (s *Service) Ask(ctx context.Context, question string, opts retrieval.Options) (*Response, error) {
	search, err := s.retriever.Search(ctx, question, opts)
	if err != nil {
		return nil, fmt.Errorf("retrieve sources: %w", err)
	}

	sources := search.Results
	if len(sources) > s.cfg.MaxSources {
		sources = sources[:s.cfg.MaxSources]
	}

	promptContext := BuildContext(sources, s.cfg.MaxSources, s.cfg.SourceCharBudget)

	if len(sources) == 0 {
		return &Response{
			Question: question,
			Answer:   NoSourcesMarker,
			Sources:  []domain.RankedResult{},
			Degraded: search.Metadata.VectorDegraded,
		}, nil
	}

	answer, err := s.generator.Complete(ctx, buildPrompt(question, promptContext), s.maxTokens)
	if err != nil {
		logrus.WithError(err).WithField("question", question).Warn("generation failed, returning fallback answer")
		return &Response{
			Question: question,
			Answer:   fallbackAnswer(question, sources),
			Sources:  sources,
			Fallback: true,
			Degraded: search.Metadata.VectorDegraded,
		}, nil
	}

	return &Response{
		Question: question,
		Answer:   answer,
		Sources:  sources,
		Degraded: search.Metadata.VectorDegraded,
	}, nil
}

// fallbackAnswer is the deterministic answer used when the model is
// unavailable: it names the question and lists the retrieved sources.
func fallbackAnswer(question string, sources []domain.RankedResult) string {
	out := fmt.Sprintf("The answer service is currently unavailable. %d relevant article(s) were found for %q:\n", len(sources), question)
	for i, src := range sources {
		out += fmt.Sprintf("%d. %s", i+1, src.Title)
		if src.Year > 0 {
			out += fmt.Sprintf(" (%d)", src.Year)
		}
		if src.DOI != "" {
			out += fmt.Sprintf(" - DOI: %s", src.DOI)
		}
		out += "\n"
	}
	return out
}
