// Package knowledge holds the department knowledge base and assembles the
// system prompt handed to the live speech session.
package knowledge

import (
	"fmt"
	"strings"
	"sync"
)

// StudentRecord is one row of the department register.
type StudentRecord struct {
	Roll       string  `json:"roll"`
	Name       string  `json:"name"`
	Attendance float64 `json:"attendance"`
}

// Event is an upcoming department event.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// FAQ is a question and its canonical answer.
type FAQ struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

// Contact is a department directory entry.
type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email,omitempty"`
	Building    string `json:"building,omitempty"`
}

// AgentConfig controls the persona and escalation behaviour of the agent.
// PromptScript may contain the {{EMERGENCY_CONTACT_NUMBER}} placeholder,
// replaced at session start with EmergencyContactNumber.
type AgentConfig struct {
	DepartmentName         string   `json:"department_name"`
	HODName                string   `json:"hod_name"`
	EmergencyContactNumber string   `json:"emergency_contact_number"`
	PromptScript           string   `json:"prompt_script"`
	Languages              []string `json:"languages"`
	Active                 bool     `json:"active"`
	GoogleSearchEnabled    bool     `json:"google_search_enabled"`
}

const emergencyContactPlaceholder = "{{EMERGENCY_CONTACT_NUMBER}}"

// Base is the mutable knowledge base. All accessors copy, so callers never
// observe concurrent mutation through the HTTP API.
type Base struct {
	mu       sync.RWMutex
	students []StudentRecord
	events   []Event
	faqs     []FAQ
	contacts []Contact
	agent    AgentConfig
}

func NewBase(agent AgentConfig) *Base {
	return &Base{agent: agent}
}

// NewDefaultBase seeds the base with the stock department data.
func NewDefaultBase() *Base {
	b := NewBase(DefaultAgentConfig())
	b.SetEvents(defaultEvents())
	b.SetFAQs(defaultFAQs())
	b.SetContacts(defaultContacts())
	return b
}

func (b *Base) Students() []StudentRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]StudentRecord, len(b.students))
	copy(out, b.students)
	return out
}

func (b *Base) SetStudents(s []StudentRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.students = append([]StudentRecord(nil), s...)
}

func (b *Base) Events() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b *Base) SetEvents(e []Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append([]Event(nil), e...)
}

func (b *Base) FAQs() []FAQ {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]FAQ, len(b.faqs))
	copy(out, b.faqs)
	return out
}

func (b *Base) SetFAQs(f []FAQ) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faqs = append([]FAQ(nil), f...)
}

func (b *Base) Contacts() []Contact {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}

func (b *Base) SetContacts(c []Contact) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contacts = append([]Contact(nil), c...)
}

func (b *Base) Agent() AgentConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a := b.agent
	a.Languages = append([]string(nil), b.agent.Languages...)
	return a
}

func (b *Base) SetAgent(a AgentConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a.Languages = append([]string(nil), a.Languages...)
	b.agent = a
}

// SystemPrompt renders the full instruction text for a session: the agent
// script with the emergency contact substituted, followed by the serialized
// knowledge base sections.
func (b *Base) SystemPrompt() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	script := strings.ReplaceAll(b.agent.PromptScript, emergencyContactPlaceholder, b.agent.EmergencyContactNumber)

	var sb strings.Builder
	sb.WriteString(script)
	sb.WriteString("\n\nKNOWLEDGE BASE:\n[STUDENT RECORDS]\n")
	sb.WriteString(serializeStudents(b.students))
	sb.WriteString("\n\n[EVENTS]\n")
	sb.WriteString(serializeEvents(b.events))
	sb.WriteString("\n\n[FAQs]\n")
	sb.WriteString(serializeFAQs(b.faqs))
	sb.WriteString("\n\n[DIRECTORY]\n")
	sb.WriteString(serializeContacts(b.contacts))
	return sb.String()
}

func serializeStudents(rs []StudentRecord) string {
	lines := make([]string, 0, len(rs))
	for _, r := range rs {
		lines = append(lines, fmt.Sprintf("ROLL: %s | NAME: %s | ATT: %g%%", r.Roll, r.Name, r.Attendance))
	}
	return strings.Join(lines, "\n")
}

func serializeEvents(es []Event) string {
	lines := make([]string, 0, len(es))
	for _, e := range es {
		lines = append(lines, fmt.Sprintf("DATE: %s | TITLE: %s", e.Date, e.Title))
	}
	return strings.Join(lines, "\n")
}

func serializeFAQs(fs []FAQ) string {
	lines := make([]string, 0, len(fs))
	for _, f := range fs {
		lines = append(lines, fmt.Sprintf("Q: %s | A: %s", f.Question, f.Answer))
	}
	return strings.Join(lines, "\n")
}

func serializeContacts(cs []Contact) string {
	lines := make([]string, 0, len(cs))
	for _, c := range cs {
		lines = append(lines, fmt.Sprintf("%s: %s", c.Name, c.PhoneNumber))
	}
	return strings.Join(lines, "\n")
}
