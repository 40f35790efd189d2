package narrative

import "strings"

type sectionKind int

const (
	sectionNone sectionKind = iota
	sectionExecutiveSummary
	sectionRiskIndicators
	sectionOpportunities
	sectionRedFlags
	sectionConfidenceAssessment
	sectionOverallRecommendation
)

var sectionHeaders = []struct {
	header string
	kind   sectionKind
}{
	{"EXECUTIVE SUMMARY", sectionExecutiveSummary},
	{"RISK INDICATORS", sectionRiskIndicators},
	{"OPPORTUNITIES", sectionOpportunities},
	{"RED FLAGS", sectionRedFlags},
	{"CONFIDENCE ASSESSMENT", sectionConfidenceAssessment},
	{"OVERALL RECOMMENDATION", sectionOverallRecommendation},
}

// Parse scans the model's free-text response into a structured Report.
// It is tolerant: missing or malformed sections stay empty and the
// parser never errors.
func Parse(text string) Report {
	report := Report{
		RiskIndicators: []string{},
		Opportunities:  []string{},
		RedFlags:       []string{},
	}

	current := sectionNone
	var content []string

	flush := func() {
		saveSection(&report, current, content)
		content = content[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if kind, ok := headerKind(line); ok {
			flush()
			current = kind
			continue
		}
		if line != "" && current != sectionNone {
			content = append(content, line)
		}
	}
	flush()

	return report
}

// headerKind matches markdown headings like "### RISK INDICATORS".
func headerKind(line string) (sectionKind, bool) {
	if !strings.HasPrefix(line, "#") {
		return sectionNone, false
	}
	upper := strings.ToUpper(line)
	for _, s := range sectionHeaders {
		if strings.Contains(upper, s.header) {
			return s.kind, true
		}
	}
	return sectionNone, false
}

func saveSection(report *Report, kind sectionKind, content []string) {
	switch kind {
	case sectionExecutiveSummary:
		report.ExecutiveSummary = strings.Join(content, "\n")
	case sectionConfidenceAssessment:
		report.ConfidenceAssessment = strings.Join(content, "\n")
	case sectionOverallRecommendation:
		report.OverallRecommendation = strings.Join(content, "\n")
	case sectionRiskIndicators:
		appendItems(&report.RiskIndicators, content)
	case sectionOpportunities:
		appendItems(&report.Opportunities, content)
	case sectionRedFlags:
		appendItems(&report.RedFlags, content)
	}
}

func appendItems(dst *[]string, content []string) {
	for _, line := range content {
		item, ok := bulletItem(line)
		if !ok || item == "" {
			continue
		}
		switch strings.ToLower(item) {
		case "none", "none identified":
			continue
		}
		*dst = append(*dst, item)
	}
}

func bulletItem(line string) (string, bool) {
	for _, marker := range []string{"-", "•", "*"} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}
