package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vatbq/lia/pkg/config"
)

// OpenAIClient is a minimal client for the OpenAI chat completions API, used
// for objective clarification and transcript analysis.
type OpenAIClient struct {
	apiKey        string
	baseURL       string
	clarifyModel  string
	analysisModel string
	client        *http.Client
}

// NewOpenAIClient creates an OpenAI client using values from the provided
// config. Pass a nil config to fall back to environment variables.
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	var apiKey string
	if cfg != nil {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	var base string
	if cfg != nil && cfg.BaseURL != "" {
		base = cfg.BaseURL
	} else {
		base = os.Getenv("OPENAI_BASE_URL")
		if base == "" {
			base = "https://api.openai.com"
		}
	}

	clarifyModel := "gpt-4.1-mini"
	analysisModel := "gpt-4.1-nano"
	if cfg != nil {
		if cfg.ClarifyModel != "" {
			clarifyModel = cfg.ClarifyModel
		}
		if cfg.AnalysisModel != "" {
			analysisModel = cfg.AnalysisModel
		}
	}

	return &OpenAIClient{
		apiKey:        apiKey,
		baseURL:       base,
		clarifyModel:  clarifyModel,
		analysisModel: analysisModel,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model          string      `json:"model,omitempty"`
	Messages       interface{} `json:"messages,omitempty"`
	Temperature    float64     `json:"temperature,omitempty"`
	MaxTokens      int         `json:"max_tokens,omitempty"`
	ResponseFormat interface{} `json:"response_format,omitempty"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ClarifiedObjective is one item of the AI-rewritten objective checklist
type ClarifiedObjective struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// ClarifiedPlan is the structured result of objective clarification
type ClarifiedPlan struct {
	Objectives  []ClarifiedObjective `json:"objectives"`
	Constraints []string             `json:"constraints"`
	Risks       []string             `json:"risks"`
}

// TaskRef identifies one incomplete objective in an analysis request
type TaskRef struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// TaskStatus is the per-objective verdict in an analysis response
type TaskStatus struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
	Message   string `json:"message,omitempty"`
}

// ActionItemPayload is the wire shape for action items exchanged with the
// analysis endpoint. Timestamps travel as RFC3339 strings and may be empty.
type ActionItemPayload struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Completed   bool   `json:"completed"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// InsightPayload is the wire shape for insights exchanged with the analysis
// endpoint.
type InsightPayload struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// AnalysisRequest carries the incomplete objectives, the full accumulated
// transcript, and the items already known so the endpoint can avoid
// re-emitting equivalents.
type AnalysisRequest struct {
	Tasks               []TaskRef           `json:"tasks"`
	Transcription       string              `json:"transcription"`
	ExistingActionItems []ActionItemPayload `json:"existingActionItems"`
	ExistingInsights    []InsightPayload    `json:"existingInsights"`
}

// AnalysisResult is the complete-list response shape: allActionItems and
// allInsights contain existing items unchanged plus any new ones.
type AnalysisResult struct {
	Tasks          []TaskStatus        `json:"tasks"`
	AllActionItems []ActionItemPayload `json:"allActionItems"`
	AllInsights    []InsightPayload    `json:"allInsights"`
}

// ClarifyObjectives rewrites free-text context + objectives into a clear,
// prioritized checklist plus extracted constraints and risks.
func (o *OpenAIClient) ClarifyObjectives(ctx context.Context, callContext, objectives string) (*ClarifiedPlan, error) {
	prompt := fmt.Sprintf(`You are an assistant helping to prepare a call. Given the user's context and raw objectives, rewrite the objectives as a clear, concise, prioritized checklist. Each item should be actionable and unambiguous. Also extract key constraints and risks.

Context:
%s

Raw Objectives:
%s

Respond with a JSON object with keys: "objectives" (array of {"name","description","priority"} with priority as an integer starting at 1), "constraints" (array of strings), "risks" (array of strings).`, callContext, objectives)

	content, err := o.complete(ctx, o.clarifyModel, prompt)
	if err != nil {
		return nil, err
	}

	var plan ClarifiedPlan
	if err := json.Unmarshal([]byte(extractJSON(content)), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse clarification response: %w", err)
	}
	if len(plan.Objectives) == 0 {
		return nil, fmt.Errorf("clarification returned no objectives")
	}
	return &plan, nil
}

// AnalyzeTranscript asks the model to judge objective completion against the
// transcript and to return the complete action item and insight lists.
func (o *OpenAIClient) AnalyzeTranscript(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	var tasks strings.Builder
	for _, t := range req.Tasks {
		tasks.WriteString(fmt.Sprintf("- PENDING %s: %s", t.ID, t.Title))
		if t.Description != "" {
			tasks.WriteString(" - " + t.Description)
		}
		tasks.WriteString("\n")
	}

	existingActions, _ := json.Marshal(req.ExistingActionItems)
	existingInsights, _ := json.Marshal(req.ExistingInsights)

	prompt := fmt.Sprintf(`Analyze the following conversation against the pending task list. Determine the status of each task based on the conversation, extract action items, and surface insights.

CONVERSATION:
%s

PENDING TASKS:
%s
EXISTING ACTION ITEMS (do not re-emit equivalents; include them unchanged in your complete list):
%s

EXISTING INSIGHTS (do not re-emit equivalents; include them unchanged in your complete list):
%s

For each pending task decide whether the conversation shows it was completed, with a short explanatory message when completed. Every task id listed above MUST appear in your "tasks" array.

Respond with a JSON object:
{
  "tasks": [{"id": "...", "completed": bool, "message": "why, if completed"}],
  "allActionItems": [existing plus new {"id","title","description","priority":"high|medium|low","completed","timestamp"}],
  "allInsights": [existing plus new {"id","title","description","type":"positive|negative|neutral|warning","timestamp"}]
}`, req.Transcription, tasks.String(), existingActions, existingInsights)

	content, err := o.complete(ctx, o.analysisModel, prompt)
	if err != nil {
		return nil, err
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if result.Tasks == nil {
		return nil, fmt.Errorf("analysis response missing tasks")
	}
	return &result, nil
}

// complete performs one chat completion call and returns the assistant content
func (o *OpenAIClient) complete(ctx context.Context, model, prompt string) (string, error) {
	reqBody := ChatRequest{
		Model:          model,
		Messages:       []map[string]string{{"role": "user", "content": prompt}},
		Temperature:    0.3,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := o.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("openai returned status %d", resp.StatusCode)
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}
	return cr.Choices[0].Message.Content, nil
}

// extractJSON strips markdown code fences the model sometimes wraps around
// JSON output.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
