package charts

import "strings"

// The model is asked for a line-oriented response with four section
// headers. The parser is tolerant: missing sections fall back to
// defaults and free-form text is never an error.

type parsedChart struct {
	Description     string
	Data            []DataPoint
	Trends          []string
	Inconsistencies []Inconsistency
}

const defaultChartDescription = "Financial chart analysis completed"

func parseChartResponse(text string) parsedChart {
	parsed := parsedChart{
		Description:     defaultChartDescription,
		Data:            []DataPoint{},
		Trends:          []string{},
		Inconsistencies: []Inconsistency{},
	}

	section := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "DESCRIPTION:"):
			section = "description"
			if content := strings.TrimSpace(strings.TrimPrefix(line, "DESCRIPTION:")); content != "" {
				parsed.Description = content
			}
			continue
		case strings.HasPrefix(line, "DATA:"):
			section = "data"
			continue
		case strings.HasPrefix(line, "TRENDS:"):
			section = "trends"
			continue
		case strings.HasPrefix(line, "INCONSISTENCIES:"):
			section = "inconsistencies"
			continue
		}

		item, isItem := listItem(line)
		switch section {
		case "description":
			if !isItem && parsed.Description == defaultChartDescription {
				parsed.Description = line
			}
		case "data":
			if isItem && item != "" {
				parsed.Data = append(parsed.Data, DataPoint{
					Description: item,
					Source:      "chart",
				})
			}
		case "trends":
			if isItem && item != "" {
				parsed.Trends = append(parsed.Trends, item)
			}
		case "inconsistencies":
			if isItem && item != "" && !isNoneMarker(item) {
				parsed.Inconsistencies = append(parsed.Inconsistencies, Inconsistency{
					Type:        "chart_verbal_mismatch",
					Description: item,
					Severity:    "medium",
				})
			}
		}
	}
	return parsed
}

func listItem(line string) (string, bool) {
	for _, marker := range []string{"-", "•", "*"} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}

func isNoneMarker(item string) bool {
	switch strings.ToLower(strings.Trim(item, ".")) {
	case "none", "none detected", "no inconsistencies":
		return true
	}
	return false
}
