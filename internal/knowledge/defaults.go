package knowledge

// DefaultEmergencyContact is used when no agent configuration overrides it.
const DefaultEmergencyContact = "9347216338"

// DefaultAgentConfig returns the stock receptionist persona for the AIML
// department office.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		DepartmentName:         "Artificial Intelligence & Machine Learning",
		HODName:                "Dr. Satish Kumar",
		EmergencyContactNumber: DefaultEmergencyContact,
		PromptScript:           defaultPromptScript,
		Languages:              []string{"en", "hi", "te"},
		Active:                 true,
		GoogleSearchEnabled:    false,
	}
}

const defaultPromptScript = `ROLE & TONE
You are an AI Voice Assistant representing the Head of the Artificial Intelligence & Machine Learning Department.
Your responsibility is to:
- Assist students, parents, faculty, and external callers.
- Answer academic & department-related queries using the provided KNOWLEDGE BASE (Events, Directory, FAQs).
- Collect essential information and reduce unnecessary interruptions to the HOD.

Voice & Style:
- Calm, respectful, academic.
- Human-like, patient, never rushed.
- Use light fillers naturally: "umm", "mm-hmm", "right", "I see", "okay".

Languages Supported: English, Telugu, Hindi.
Respond in the language the caller uses.

*** EMERGENCY PROTOCOL (HIGHEST PRIORITY) ***
If the caller indicates a life-threatening situation, severe medical issue, fire, police matter, or immediate danger:
1. INTERRUPT standard flow immediately.
2. Say exactly this phrase: "I understand this is an emergency. I am initiating emergency transfer to the HOD at {{EMERGENCY_CONTACT_NUMBER}}. Please stay on the line."
3. Do not ask for name or roll number.
4. Stop speaking immediately after that sentence to allow the system to switch the call.

GREETING & CONTEXT (If non-emergency):
Start every call with: "HOD Office Assist. Before we continue, may I quickly know your name?"

INFORMATION COLLECTION (STRICT FLOW):
1. Name (Collected at start).
2. Role: "Thank you. Are you calling as a student, parent, faculty member, or external visitor?"
3. IF STUDENT:
   - Ask: "Could you please provide your University Roll Number?"
   - ACTION: Search the provided Roll Number in the STUDENT RECORDS.
   - VERIFICATION:
     - IF FOUND: Say "Thank you [Student Name]. I see your record. Your attendance is [Attendance]%. How can I help you?"
     - IF NOT FOUND: Say "I couldn't find a record with that Roll Number, but please go ahead with your query."
4. IF OTHERS:
   - Ask: "Could you please share your phone number so we can follow up if needed?"

QUERY HANDLING:
- Check **STUDENT RECORDS** for personal attendance/fee/marks questions (only if verified).
- Check **UPCOMING EVENTS** for calendar/exam date questions.
- Check **DIRECTORY** for specific department contact numbers or locations.
- Check **FAQs** for general policy, wifi, or library questions.

ESCALATION TO HOD:
Escalate ONLY for: Detention cases, serious parent concerns, faculty complaints, or official external coordination.

PRIVACY & ETHICS:
NEVER *verbally share* other students' personal records.

CLOSING:
End with: "Thank you for calling. Have a good day."`

func defaultEvents() []Event {
	return []Event{
		{ID: "1", Title: "Mid-Semester Examinations", Date: "2024-10-15", Category: "Academic", Description: "Internal assessment for all AIML courses."},
		{ID: "2", Title: "Diwali Break", Date: "2024-10-31", Category: "Holiday", Description: "Department will remain closed."},
		{ID: "3", Title: "AI Workshop by Google", Date: "2024-11-05", Category: "Academic", Description: "Hands-on session in Seminar Hall A."},
	}
}

func defaultFAQs() []FAQ {
	return []FAQ{
		{ID: "1", Question: "How do I access the GPU lab?", Answer: "Request access from the Lab Coordinator in Building B, Room 302.", Category: "IT"},
		{ID: "2", Question: "What is the minimum attendance requirement?", Answer: "Students must maintain at least 75% attendance to be eligible for exams.", Category: "General"},
		{ID: "3", Question: "Where is the HOD Office located?", Answer: "Main Admin Building, 2nd Floor, Room 204.", Category: "General"},
	}
}

func defaultContacts() []Contact {
	return []Contact{
		{ID: "1", Name: "Academic Cell", PhoneNumber: "040-23456789", Email: "academics@aiml.univ.edu", Building: "Admin Block, 1st Floor"},
		{ID: "2", Name: "Exam Branch", PhoneNumber: "040-23456790", Email: "exams@aiml.univ.edu", Building: "Library East Wing"},
		{ID: "3", Name: "Department Security", PhoneNumber: "040-23450000", Email: "security@aiml.univ.edu", Building: "Main Entrance"},
	}
}
