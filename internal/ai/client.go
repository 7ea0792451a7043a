package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type Action string

const (
	ActionCreateReminder Action = "create_reminder"
	ActionListReminders  Action = "list_reminders"
	ActionNextDose       Action = "next_dose"
	ActionHistory        Action = "history"
	ActionCancelReminder Action = "cancel_reminder"
	ActionTaken          Action = "taken"
	ActionSnooze         Action = "snooze"
	ActionSkip           Action = "skip"
	ActionPlan           Action = "plan"
	ActionWelcome        Action = "welcome"
	ActionUnknown        Action = "unknown"
)

// Intent is the structured reading of one free-text message. Cached intents
// are shared between callers and must not be modified.
type Intent struct {
	Action      Action  `json:"action"`
	Medication  string  `json:"medication"`
	Dosage      string  `json:"dosage"`
	RRule       string  `json:"rrule"`
	PatientName string  `json:"patient_name"`
	Confidence  float64 `json:"confidence"`
	AIMessage   string  `json:"ai_message"`
	RawResponse string  `json:"-"`
}

// Classifier turns a message into an Intent.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Intent, error)
}

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Client) SetModel(model string) {
	c.model = model
}

// The prompt carries no clock so that identical texts classify identically.
const systemPrompt = `You are MedLine, a medication reminder assistant. Read the user's message and
return the structured intent.

Available actions:
- create_reminder: schedule a recurring medication reminder
- list_reminders: show the active reminders
- next_dose: ask when the next dose is
- history: show which doses were taken
- cancel_reminder: stop a reminder for a medication
- taken: the user took the dose they were reminded about
- snooze: the user wants to be reminded again later
- skip: the user will not take the current dose
- plan: ask about the subscription plan or reminder limit
- welcome: greetings
- unknown: anything else

Fields:
- medication: the medication name, without the dosage
- dosage: free text such as "500mg" or "2 pills"
- patient_name: who takes the medication when it is someone other than the user, otherwise ""
- rrule: only for create_reminder. Use this exact grammar and nothing else:
  FREQ=HOURLY|DAILY;INTERVAL=n;BYHOUR=h1,h2;BYMINUTE=m;BYSECOND=s;UNTIL=YYYYMMDDTHHMMSS
  Only FREQ is mandatory. Examples:
  "every 8 hours" -> FREQ=HOURLY;INTERVAL=8
  "every day at 8 and 20" -> FREQ=DAILY;BYHOUR=8,20;BYMINUTE=0;BYSECOND=0
  "every other day at 9:30" -> FREQ=DAILY;INTERVAL=2;BYHOUR=9;BYMINUTE=30;BYSECOND=0
- ai_message: a short friendly reply, used for unknown messages or to ask for missing details

If create_reminder lacks a medication or a schedule, still return create_reminder with the
missing fields empty and ask for them in ai_message.`

var intentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"action": {
			"type": "string",
			"enum": ["create_reminder", "list_reminders", "next_dose", "history", "cancel_reminder", "taken", "snooze", "skip", "plan", "welcome", "unknown"],
			"description": "The action to perform"
		},
		"medication": {
			"type": "string",
			"description": "Medication name"
		},
		"dosage": {
			"type": "string",
			"description": "Dosage as free text"
		},
		"rrule": {
			"type": "string",
			"description": "Bounded recurrence rule for create_reminder"
		},
		"patient_name": {
			"type": "string",
			"description": "Patient when it is not the user"
		},
		"confidence": {
			"type": "number",
			"minimum": 0,
			"maximum": 1,
			"description": "Confidence score between 0 and 1"
		},
		"ai_message": {
			"type": "string",
			"description": "Friendly message to show the user"
		}
	},
	"required": ["action", "medication", "dosage", "rrule", "patient_name", "confidence", "ai_message"],
	"additionalProperties": false
}`)

func (c *Client) Classify(ctx context.Context, text string) (*Intent, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "intent",
				Schema: intentSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	return parseIntent(resp.Choices[0].Message.Content)
}

func parseIntent(content string) (*Intent, error) {
	intent := &Intent{RawResponse: content}
	if err := json.Unmarshal([]byte(content), intent); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	intent.Medication = strings.TrimSpace(intent.Medication)
	intent.Dosage = strings.TrimSpace(intent.Dosage)
	intent.RRule = strings.TrimSpace(intent.RRule)
	intent.PatientName = strings.TrimSpace(intent.PatientName)
	if intent.Action == "" {
		intent.Action = ActionUnknown
	}
	return intent, nil
}
