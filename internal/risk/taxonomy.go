package risk

import (
	"fmt"
	"strings"
)

// Canonical risk areas in report order.
var Areas = []string{
	"information_security",
	"privacy",
	"personnel_security",
	"physical_security",
	"finance",
	"project_level",
	"enterprise_level",
	"legal_data_rights",
}

var areaLabels = map[string]string{
	"information_security": "Information Security",
	"privacy":              "Privacy",
	"personnel_security":   "Personnel Security",
	"physical_security":    "Physical Security",
	"finance":              "Finance",
	"project_level":        "Project Execution",
	"enterprise_level":     "Enterprise Compliance",
	"legal_data_rights":    "Legal & Data Rights",
}

// Keyword triggers per area. The trigger is deterministic; it decides which
// areas get heuristic candidates and targeted retrieval questions, it never
// invents findings on its own.
var triggerKeywords = map[string][]string{
	"information_security": {
		"dfars", "7012", "cui", "cdi", "incident", "report", "cyber", "security",
		"encryption", "rmf", "nist", "800-171", "800-53", "fedramp", "ato", "hosting",
		"access", "audit", "log", "siem", "vulnerability", "scan", "stigs", "cmmc",
	},
	"privacy": {
		"pii", "phi", "privacy", "hipaa", "privacy act", "gdpr", "consent", "breach",
		"data subject", "personal information",
	},
	"personnel_security": {
		"clearance", "secret", "top secret", "ts/sci", "citizen", "citizenship",
		"background", "fingerprint", "suitability", "public trust",
	},
	"physical_security": {
		"scif", "facility", "badge", "physical", "secure area", "controlled area",
		"onsite", "on-site", "visit", "escort",
	},
	"finance": {
		"pricing", "price", "payment", "invoice", "clin", "cost", "fee",
		"firm-fixed-price", "ffp", "t&m", "time and materials",
	},
	"project_level": {
		"deliverable", "acceptance", "milestone", "schedule", "timeline", "pop",
		"period of performance", "slas", "requirements", "test event",
	},
	"enterprise_level": {
		"flowdown", "flow-down", "subcontract", "teaming", "prime", "audit rights",
		"records", "compliance", "governance",
	},
	"legal_data_rights": {
		"data rights", "rights in data", "government purpose rights", "limited rights",
		"unlimited rights", "ip", "intellectual property", "license", "indemnification",
		"termination", "dispute", "jurisdiction",
	},
}

// Targeted follow-up questions per area, issued only for triggered areas.
var targetedQuestions = map[string][]string{
	"information_security": {
		"Identify any explicit cybersecurity, CUI/CDI handling, incident reporting, or NIST/DFARS compliance requirements. Quote the relevant language.",
		"Identify any hosting/environment constraints (GovCloud, on-prem, FedRAMP, RMF/ATO, network restrictions). Quote the relevant language.",
	},
	"privacy": {
		"Identify any privacy/PII/PHI handling requirements, breach notification, consent, or privacy act language. Quote the relevant language.",
		"Identify any data retention, access control, or disclosure constraints tied to personal data. Quote the relevant language.",
	},
	"personnel_security": {
		"Identify any personnel clearance, citizenship, background checks, or access requirements. Quote the relevant language.",
		"Identify any staffing constraints that could impact delivery (on-site, escorted access, key personnel). Quote the relevant language.",
	},
	"physical_security": {
		"Identify any physical security, facility, SCIF, controlled area, or on-site access requirements. Quote the relevant language.",
		"Identify any delivery constraints driven by physical access (escorts, badging, visits, restricted areas). Quote the relevant language.",
	},
	"finance": {
		"Identify any pricing structure, contract type, CLIN structure, payment terms, or invoice requirements. Quote the relevant language.",
		"Identify any cost risk drivers (undefined scope, undefined acceptance, optional CLINs) and quote the triggering language.",
	},
	"project_level": {
		"Identify deliverables, acceptance criteria, and schedule/timeline requirements. Quote the relevant language.",
		"Identify any test event phases, success criteria, or support obligations that could create schedule risk. Quote the relevant language.",
	},
	"enterprise_level": {
		"Identify any flow-downs, subcontracting, teaming, audit rights, or governance constraints. Quote the relevant language.",
		"Identify any compliance or reporting obligations that create enterprise-level burden. Quote the relevant language.",
	},
	"legal_data_rights": {
		"Identify any data rights / IP / licensing / reuse constraints. Quote the relevant language.",
		"Identify any termination, dispute, indemnification, or liability clauses that increase legal risk. Quote the relevant language.",
	},
}

// DetectAreas returns the risk areas whose keywords appear in text, in
// canonical area order.
func DetectAreas(text string) []string {
	blob := strings.ToLower(text)
	var out []string
	for _, area := range Areas {
		for _, k := range triggerKeywords[area] {
			if strings.Contains(blob, k) {
				out = append(out, area)
				break
			}
		}
	}
	return out
}

// TargetedQuestions returns up to max follow-up questions for the triggered
// areas, in canonical area order.
func TargetedQuestions(areas []string, max int) []string {
	triggered := make(map[string]bool, len(areas))
	for _, a := range areas {
		triggered[a] = true
	}
	var out []string
	for _, area := range Areas {
		if !triggered[area] {
			continue
		}
		for _, q := range targetedQuestions[area] {
			out = append(out, q)
			if len(out) >= max {
				return out
			}
		}
	}
	return out
}

// Scan produces heuristic risk candidates for a document by keyword
// trigger. One candidate per triggered area, naming the keywords that fired.
func Scan(docName, text string) []Candidate {
	blob := strings.ToLower(text)
	var out []Candidate
	for _, area := range Areas {
		var fired []string
		for _, k := range triggerKeywords[area] {
			if strings.Contains(blob, k) {
				fired = append(fired, k)
			}
		}
		if len(fired) == 0 {
			continue
		}
		out = append(out, Candidate{
			ID:           "heuristic:" + area,
			Label:        areaLabels[area],
			Category:     area,
			Severity:     SeverityMedium,
			Scope:        "document",
			DocumentName: docName,
			Rationale:    fmt.Sprintf("keyword triggers in %s: %s", docName, strings.Join(fired, ", ")),
			RelatedFlags: fired,
			SourceType:   SourceHeuristic,
		})
	}
	return out
}
