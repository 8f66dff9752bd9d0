package analysis

import (
	"strings"

	"github.com/clearpath-legal/riskline/internal/evidence"
	"github.com/clearpath-legal/riskline/internal/retrieval"
)

// Intents select which question catalog drives retrieval.
const (
	IntentStrictSummary = "strict_summary"
	IntentRiskTriage    = "risk_triage"
)

// Question pairs a retrieval query with the report section its hits land in.
type Question struct {
	SectionID    string
	SectionTitle string
	Owner        string
	Text         string
}

type sectionMeta struct {
	id    string
	owner string
}

var sectionIDs = map[string]sectionMeta{
	"OVERVIEW":            {id: "overview", owner: "pm"},
	"MISSION & OBJECTIVE": {id: "mission_objective", owner: "pm"},
	"SCOPE OF WORK":       {id: "scope_of_work", owner: "pm"},
	"SECURITY, COMPLIANCE & HOSTING CONSTRAINTS": {id: "security_compliance_hosting", owner: "security"},
	"ELIGIBILITY & PERSONNEL CONSTRAINTS":        {id: "eligibility_personnel", owner: "security"},
	"LEGAL & DATA RIGHTS RISKS":                  {id: "legal_data_rights", owner: "legal"},
	"FINANCIAL RISKS":                            {id: "financial_risks", owner: "finance"},
	"DELIVERABLES & TIMELINES":                   {id: "deliverables_timelines", owner: "pm"},
	"SUBMISSION INSTRUCTIONS & DEADLINES":        {id: "submission_deadlines", owner: "pm"},
	"CONTRADICTIONS & INCONSISTENCIES":           {id: "contradictions", owner: "legal"},
	"GAPS / QUESTIONS FOR THE GOVERNMENT":        {id: "gaps_questions", owner: "pm"},
	"RECOMMENDED INTERNAL ACTIONS":               {id: "recommended_actions", owner: "pm"},
}

func question(title, text string) Question {
	meta := sectionIDs[title]
	return Question{SectionID: meta.id, SectionTitle: title, Owner: meta.owner, Text: text}
}

// Questions returns the retrieval question catalog for an intent. Order is
// fixed; section order in the final report follows first appearance here.
func Questions(intent string) []Question {
	switch strings.ToLower(strings.TrimSpace(intent)) {
	case IntentRiskTriage:
		return []Question{
			question("SECURITY, COMPLIANCE & HOSTING CONSTRAINTS", "Identify cybersecurity / ATO / RMF / IL requirements and risks (encryption, logging, incident reporting, vuln mgmt)."),
			question("SECURITY, COMPLIANCE & HOSTING CONSTRAINTS", "Identify CUI handling / safeguarding requirements and risks (marking, access, transmission, storage, disposal)."),
			question("LEGAL & DATA RIGHTS RISKS", "Identify privacy / PII / data protection obligations and risks."),
			question("LEGAL & DATA RIGHTS RISKS", "Identify legal/data-rights terms and risks (IP/data rights, audit rights, GFI/GFM handling, disclosure penalties)."),
			question("ELIGIBILITY & PERSONNEL CONSTRAINTS", "Identify subcontractor / flowdown / staffing constraints and risks (citizenship, clearance, facility, export)."),
			question("DELIVERABLES & TIMELINES", "Identify delivery/acceptance gates and required approvals (CDRLs, QA, test, acceptance criteria)."),
			question("FINANCIAL RISKS", "Identify financial and invoicing risks (ceilings, overruns, payment terms, reporting cadence)."),
			question("DELIVERABLES & TIMELINES", "Identify schedule risks (IMS, milestones, reporting cadence, penalties)."),
			question("CONTRADICTIONS & INCONSISTENCIES", "Identify ambiguous/undefined terms and contradictions that require clarification."),
			question("OVERVIEW", "List top red-flag phrases/requirements with evidence and suggested internal owner (security/legal/PM/finance)."),
			question("MISSION & OBJECTIVE", "What is the mission and objective of this effort?"),
			question("SCOPE OF WORK", "What is the scope of work and required deliverables?"),
			question("SUBMISSION INSTRUCTIONS & DEADLINES", "What are submission instructions and deadlines, including required formats and delivery method?"),
			question("GAPS / QUESTIONS FOR THE GOVERNMENT", "What gaps require clarification from the Government?"),
			question("RECOMMENDED INTERNAL ACTIONS", "What internal actions should we take next (security/legal/PM/engineering/finance)?"),
		}
	default:
		return []Question{
			question("MISSION & OBJECTIVE", "What is the mission and objective of this effort?"),
			question("SCOPE OF WORK", "What is the scope of work and required deliverables?"),
			question("SECURITY, COMPLIANCE & HOSTING CONSTRAINTS", "What are the security, compliance, and hosting constraints (IL levels, NIST, DFARS, CUI, ATO/RMF, logging)?"),
			question("ELIGIBILITY & PERSONNEL CONSTRAINTS", "What are the eligibility and personnel constraints (citizenship, clearances, facility, location, export controls)?"),
			question("LEGAL & DATA RIGHTS RISKS", "What are key legal and data rights risks (IP/data rights, audit rights, flowdowns)?"),
			question("FINANCIAL RISKS", "What are key financial risks (pricing model, ceilings, invoicing systems, payment terms)?"),
			question("SUBMISSION INSTRUCTIONS & DEADLINES", "What are submission instructions and deadlines, including required formats and delivery method?"),
			question("CONTRADICTIONS & INCONSISTENCIES", "What contradictions or inconsistencies exist across documents?"),
			question("GAPS / QUESTIONS FOR THE GOVERNMENT", "What gaps require clarification from the Government?"),
			question("RECOMMENDED INTERNAL ACTIONS", "What internal actions should we take next (security/legal/PM/engineering/finance)?"),
		}
	}
}

// SectionDefs lists the distinct sections for an intent in first-appearance
// order.
func SectionDefs(intent string) []evidence.SectionDef {
	var defs []evidence.SectionDef
	seen := make(map[string]bool)
	for _, q := range Questions(intent) {
		if seen[q.SectionID] {
			continue
		}
		seen[q.SectionID] = true
		defs = append(defs, evidence.SectionDef{ID: q.SectionID, Title: q.SectionTitle, Owner: q.Owner})
	}
	return defs
}

// SectionQueries converts the question catalog into retrieval queries,
// optionally extended with targeted follow-ups.
func SectionQueries(intent string, targeted []string) []retrieval.SectionQuery {
	var queries []retrieval.SectionQuery
	for _, q := range Questions(intent) {
		queries = append(queries, retrieval.SectionQuery{SectionID: q.SectionID, Query: q.Text})
	}
	// Targeted questions deepen the overview section; they come from
	// deterministic triggers, not from the catalog.
	for _, t := range targeted {
		queries = append(queries, retrieval.SectionQuery{SectionID: "overview", Query: t})
	}
	return queries
}
