package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/deptdesk/deskline/internal/record"
)

// Result is the structured outcome of analyzing one transcript.
type Result struct {
	Summary     string           `json:"summary"`
	QueryType   record.QueryType `json:"queryType"`
	PhoneNumber string           `json:"phoneNumber,omitempty"`
	RollNumber  string           `json:"rollNumber,omitempty"`
	CallerName  string           `json:"callerName,omitempty"`
	CallerRole  string           `json:"callerRole,omitempty"`
}

// Alert is one trend surfaced from recent call summaries for HOD attention.
type Alert struct {
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

func fallbackResult() Result {
	return Result{Summary: "Call completed.", QueryType: record.QueryOther}
}

func emptyResult() Result {
	return Result{Summary: "Call ended without a conversation.", QueryType: record.QueryOther}
}

// Pipeline runs post-call analysis. Failures never propagate to the caller
// of Analyze: a fallback record is always produced so the call log stays
// complete even when the analysis API is down.
type Pipeline struct {
	client *Client
	model  string
	log    *zap.SugaredLogger
}

func NewPipeline(client *Client, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{client: client, model: defaultFlashModel, log: log}
}

var analysisSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "summary": {"type": "STRING"},
    "queryType": {"type": "STRING", "enum": ["Exam", "Fee", "Attendance", "Admission", "Emergency", "Other"]},
    "phoneNumber": {"type": "STRING", "description": "Extract the 10-digit mobile number if mentioned"},
    "rollNumber": {"type": "STRING", "description": "Extract the university roll number if mentioned (e.g., CS2024-005)"},
    "callerName": {"type": "STRING"},
    "callerRole": {"type": "STRING"}
  },
  "required": ["summary", "queryType"]
}`)

var alertsSchema = json.RawMessage(`{
  "type": "ARRAY",
  "items": {
    "type": "OBJECT",
    "properties": {
      "title": {"type": "STRING"},
      "severity": {"type": "STRING", "enum": ["high", "medium", "low"]},
      "description": {"type": "STRING"}
    },
    "required": ["title", "severity", "description"]
  }
}`)

func renderTranscript(t record.Transcript) string {
	lines := make([]string, 0, len(t))
	for _, u := range t {
		lines = append(lines, fmt.Sprintf("%s: %s", u.Speaker, u.Text))
	}
	return strings.Join(lines, "\n")
}

// Analyze extracts a summary, query classification and caller details from
// the transcript. An empty transcript skips the API entirely; an emergency
// transfer during the call overrides whatever classification the model
// returns.
func (p *Pipeline) Analyze(ctx context.Context, transcript record.Transcript, emergency bool) Result {
	var res Result
	if len(transcript) == 0 {
		res = emptyResult()
	} else {
		var err error
		res, err = p.analyzeOnce(ctx, transcript)
		if err != nil {
			p.log.Warnw("call analysis failed, writing fallback record", "error", err)
			res = fallbackResult()
		}
	}
	if emergency {
		res.QueryType = record.QueryEmergency
	}
	return res
}

func (p *Pipeline) analyzeOnce(ctx context.Context, transcript record.Transcript) (Result, error) {
	prompt := fmt.Sprintf(`Analyze the following transcript from a University Department AI Receptionist and provide:
1. A professional 1-sentence summary.
2. Classify the query into one of these categories: Exam, Fee, Attendance, Admission, Emergency, Other.
3. Extract the caller's name, role, and university roll number (if mentioned, especially for students) or phone number (for non-students).

Transcript:
%s`, renderTranscript(transcript))

	text, err := p.client.GenerateText(ctx, p.model, prompt, &generationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
	})
	if err != nil {
		return Result{}, err
	}

	var raw struct {
		Summary     string `json:"summary"`
		QueryType   string `json:"queryType"`
		PhoneNumber string `json:"phoneNumber"`
		RollNumber  string `json:"rollNumber"`
		CallerName  string `json:"callerName"`
		CallerRole  string `json:"callerRole"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Result{}, fmt.Errorf("%w: malformed analysis payload: %v", ErrAnalysisFailed, err)
	}
	if raw.Summary == "" {
		return Result{}, fmt.Errorf("%w: analysis payload missing summary", ErrAnalysisFailed)
	}
	return Result{
		Summary:     raw.Summary,
		QueryType:   record.ParseQueryType(raw.QueryType),
		PhoneNumber: raw.PhoneNumber,
		RollNumber:  raw.RollNumber,
		CallerName:  raw.CallerName,
		CallerRole:  raw.CallerRole,
	}, nil
}

const maxAlertLogs = 10

// SmartAlerts reviews recent call summaries and returns up to three trends
// worth escalating. An empty log yields no alerts and no API call.
func (p *Pipeline) SmartAlerts(ctx context.Context, logs []record.CallRecord) ([]Alert, error) {
	if len(logs) == 0 {
		return nil, nil
	}
	if len(logs) > maxAlertLogs {
		logs = logs[:maxAlertLogs]
	}

	lines := make([]string, 0, len(logs))
	for _, l := range logs {
		lines = append(lines, fmt.Sprintf("[%s] %s", l.QueryType, l.Summary))
	}
	prompt := fmt.Sprintf(`Act as a Department Head's Strategy Assistant. Review these recent call summaries and identify up to 3 critical trends or issues that need HOD attention. Return a list of alerts.

LOG SUMMARIES:
%s`, strings.Join(lines, "\n"))

	text, err := p.client.GenerateText(ctx, p.model, prompt, &generationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   alertsSchema,
	})
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	if err := json.Unmarshal([]byte(text), &alerts); err != nil {
		return nil, fmt.Errorf("%w: malformed alerts payload: %v", ErrAnalysisFailed, err)
	}
	if len(alerts) > 3 {
		alerts = alerts[:3]
	}
	return alerts, nil
}

// RefinePrompt asks the pro model to tighten an agent script while keeping
// its load-bearing instructions. On failure the original script is returned
// alongside the error so callers can keep operating.
func (p *Pipeline) RefinePrompt(ctx context.Context, script, emergencyNumber string) (string, error) {
	prompt := fmt.Sprintf(`Act as an expert prompt engineer. Refine this HOD AI Receptionist prompt to be more efficient, professional, and clear. Keep the instructions for handling Student ID lookups, Emergency forwarding (%s), and multi-language support (English, Hindi, Telugu):

%s`, emergencyNumber, script)

	text, err := p.client.GenerateText(ctx, defaultProModel, prompt, nil)
	if err != nil {
		return script, err
	}
	if strings.TrimSpace(text) == "" {
		return script, nil
	}
	return text, nil
}
