package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
	"github.com/datapeek/backend/internal/repository"
)

// LanguageModel is the narrow surface the chat service needs from a
// hosted model. Implementations live outside internal/.
type LanguageModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type chatService struct {
	datasets repository.DatasetRepository
	model    LanguageModel // nil when no model is configured
}

// NewChatService creates a new chat service. model may be nil; the
// deterministic path works without one.
func NewChatService(datasets repository.DatasetRepository, model LanguageModel) ChatService {
	return &chatService{datasets: datasets, model: model}
}

// Ask answers a question about the dataset. The deterministic parser
// always runs first so any question it understands is answered from
// the data with a citation; the language model only ever sees
// questions the parser could not resolve, and its answers are labeled
// uncited.
func (s *chatService) Ask(ctx context.Context, datasetID, question string) (*models.ChatAnswer, error) {
	ds, err := readyDataset(ctx, s.datasets, datasetID)
	if err != nil {
		return nil, err
	}
	t, analysis := ds.Table, ds.Analysis

	answer, err := AnswerQuestion(t, analysis.Types, analysis.Profile, question)
	if err != nil {
		return nil, err
	}
	if answer != nil {
		return answer, nil
	}

	if s.model == nil {
		return fallbackHelp(t, analysis), nil
	}

	text, err := s.model.Complete(ctx, chatSystemPrompt(analysis), question)
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}
	return &models.ChatAnswer{
		Type: "text",
		Text: text,
		// No citation: this text was not computed from the data.
	}, nil
}

// fallbackHelp is returned when no rule matched and no model is
// configured: it tells the user what the parser can answer.
func fallbackHelp(t *dataset.Table, analysis *models.Analysis) *models.ChatAnswer {
	var b strings.Builder
	b.WriteString("I couldn't match that question to the data. Try one of these:\n")
	if analysis.Overview != nil {
		for _, q := range analysis.Overview.SuggestedQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	} else {
		b.WriteString("- How many rows are there?\n")
	}
	fmt.Fprintf(&b, "Available columns: %s.", strings.Join(t.Columns(), ", "))
	return &models.ChatAnswer{Type: "text", Text: b.String()}
}

// chatSystemPrompt grounds the model in the dataset's shape without
// shipping raw rows.
func chatSystemPrompt(analysis *models.Analysis) string {
	var b strings.Builder
	b.WriteString("You are a data analyst answering questions about an uploaded tabular dataset. ")
	b.WriteString("Answer from the column summary below; say so when the summary cannot answer the question. ")
	fmt.Fprintf(&b, "The dataset has %d rows and %d columns.\n",
		analysis.Profile.RowCount, analysis.Profile.ColumnCount)
	for _, c := range analysis.Profile.Columns {
		fmt.Fprintf(&b, "- %s (%s, %.0f%% missing, %d distinct)\n",
			c.Name, c.Type, 100*c.MissingPct, c.Distinct)
	}
	return b.String()
}
