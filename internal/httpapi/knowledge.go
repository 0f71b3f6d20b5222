package httpapi

import (
	"net/http"
	"strings"

	"github.com/deptdesk/deskline/internal/knowledge"
)

func (s *Server) handleGetStudents(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"students": s.kb.Students()})
}

func (s *Server) handlePutStudents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Students []knowledge.StudentRecord `json:"students"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.kb.SetStudents(req.Students)
	respondJSON(w, http.StatusOK, map[string]any{"students": s.kb.Students()})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"events": s.kb.Events()})
}

func (s *Server) handlePutEvents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Events []knowledge.Event `json:"events"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.kb.SetEvents(req.Events)
	respondJSON(w, http.StatusOK, map[string]any{"events": s.kb.Events()})
}

func (s *Server) handleGetFAQs(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"faqs": s.kb.FAQs()})
}

func (s *Server) handlePutFAQs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FAQs []knowledge.FAQ `json:"faqs"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.kb.SetFAQs(req.FAQs)
	respondJSON(w, http.StatusOK, map[string]any{"faqs": s.kb.FAQs()})
}

func (s *Server) handleGetContacts(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"contacts": s.kb.Contacts()})
}

func (s *Server) handlePutContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contacts []knowledge.Contact `json:"contacts"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.kb.SetContacts(req.Contacts)
	respondJSON(w, http.StatusOK, map[string]any{"contacts": s.kb.Contacts()})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.kb.Agent())
}

func (s *Server) handlePutAgent(w http.ResponseWriter, r *http.Request) {
	var cfg knowledge.AgentConfig
	if err := decodeJSON(r, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(cfg.PromptScript) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "prompt_script must not be empty")
		return
	}
	if strings.TrimSpace(cfg.EmergencyContactNumber) == "" {
		cfg.EmergencyContactNumber = knowledge.DefaultEmergencyContact
	}
	s.kb.SetAgent(cfg)
	respondJSON(w, http.StatusOK, s.kb.Agent())
}

// handleRefineAgent rewrites the current prompt script through the analysis
// service. The refined script is returned but not applied; the operator
// reviews it and saves through the agent endpoint.
func (s *Server) handleRefineAgent(w http.ResponseWriter, r *http.Request) {
	agent := s.kb.Agent()
	refined, err := s.analyzer.RefinePrompt(r.Context(), agent.PromptScript, agent.EmergencyContactNumber)
	if err != nil {
		s.log.Warnw("prompt refinement failed", "error", err)
		respondError(w, http.StatusBadGateway, "analysis_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"prompt_script": refined})
}
