package retrain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
	"github.com/mikey/mail-threat-engine/internal/utils"
)

const classifierPrompt = "Classify the email as spam or ham. Answer with one word."

// OpenAIConfig holds the fine-tuning settings
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	BaseModel   string
	Suffix      string
	MaxBodySize int
}

// OpenAIRetrainer uploads each batch as a JSONL training file and starts a
// fine-tuning job on it. The job ID is the reported model version.
type OpenAIRetrainer struct {
	client        *openai.Client
	baseModel     string
	suffix        string
	maxBodySize   int
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewOpenAIRetrainer creates a new OpenAIRetrainer
func NewOpenAIRetrainer(cfg OpenAIConfig, textProcessor *utils.TextProcessor, logger *zap.Logger) *OpenAIRetrainer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.BaseModel == "" {
		cfg.BaseModel = "gpt-4o-mini-2024-07-18"
	}
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(logger)
	}

	return &OpenAIRetrainer{
		client:        openai.NewClientWithConfig(clientCfg),
		baseModel:     cfg.BaseModel,
		suffix:        cfg.Suffix,
		maxBodySize:   cfg.MaxBodySize,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

type trainingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type trainingExample struct {
	Messages []trainingMessage `json:"messages"`
}

// Retrain uploads the batch and returns the fine-tuning job ID
func (r *OpenAIRetrainer) Retrain(ctx context.Context, tenantID string, batch []core.LabeledEmail) (string, error) {
	data, err := r.buildTrainingFile(batch)
	if err != nil {
		return "", err
	}

	startTime := time.Now()
	file, err := r.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    fmt.Sprintf("%s-%d.jsonl", tenantID, startTime.Unix()),
		Bytes:   data,
		Purpose: openai.PurposeFineTune,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload training file: %w", err)
	}

	job, err := r.client.CreateFineTuningJob(ctx, openai.FineTuningJobRequest{
		TrainingFile: file.ID,
		Model:        r.baseModel,
		Suffix:       r.suffix,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start fine-tuning job: %w", err)
	}

	r.logger.Info("Started fine-tuning job",
		zap.String("tenant_id", tenantID),
		zap.String("file_id", file.ID),
		zap.String("job_id", job.ID),
		zap.Int("items", len(batch)),
		zap.Duration("duration", time.Since(startTime)))

	return job.ID, nil
}

func (r *OpenAIRetrainer) buildTrainingFile(batch []core.LabeledEmail) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, item := range batch {
		label := "ham"
		if item.IsSpam {
			label = "spam"
		}

		var content strings.Builder
		fmt.Fprintf(&content, "From: %s\nSubject: %s\n\n", item.FromEmail, r.textProcessor.Normalize(item.Subject))
		content.WriteString(r.textProcessor.ProcessText(item.Body, r.maxBodySize))

		example := trainingExample{Messages: []trainingMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierPrompt},
			{Role: openai.ChatMessageRoleUser, Content: content.String()},
			{Role: openai.ChatMessageRoleAssistant, Content: label},
		}}
		if err := enc.Encode(example); err != nil {
			return nil, fmt.Errorf("failed to encode training example: %w", err)
		}
	}
	return buf.Bytes(), nil
}
