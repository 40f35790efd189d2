package charts

import "testing"

func TestParseChartResponseFullSections(t *testing.T) {
	text := `DESCRIPTION: Quarterly revenue bar chart showing four quarters

DATA:
- Q1 revenue of $1.2 billion
- Q4 revenue of $1.8 billion

TRENDS:
- Steady quarter over quarter growth

INCONSISTENCIES:
- Chart shows 12% growth but transcript claims 20%
`

	parsed := parseChartResponse(text)

	if parsed.Description != "Quarterly revenue bar chart showing four quarters" {
		t.Errorf("description = %q", parsed.Description)
	}
	if len(parsed.Data) != 2 {
		t.Fatalf("data points = %d, want 2", len(parsed.Data))
	}
	if parsed.Data[0].Source != "chart" {
		t.Errorf("data source = %q, want chart", parsed.Data[0].Source)
	}
	if parsed.Data[1].Description != "Q4 revenue of $1.8 billion" {
		t.Errorf("data[1] = %q", parsed.Data[1].Description)
	}
	if len(parsed.Trends) != 1 {
		t.Errorf("trends = %d, want 1", len(parsed.Trends))
	}
	if len(parsed.Inconsistencies) != 1 {
		t.Fatalf("inconsistencies = %d, want 1", len(parsed.Inconsistencies))
	}
	inc := parsed.Inconsistencies[0]
	if inc.Type != "chart_verbal_mismatch" || inc.Severity != "medium" {
		t.Errorf("inconsistency = %+v", inc)
	}
}

func TestParseChartResponseSkipsNoneMarkers(t *testing.T) {
	for _, marker := range []string{"None", "None detected", "No inconsistencies", "none detected."} {
		text := "INCONSISTENCIES:\n- " + marker + "\n"
		parsed := parseChartResponse(text)
		if len(parsed.Inconsistencies) != 0 {
			t.Errorf("marker %q produced %d inconsistencies", marker, len(parsed.Inconsistencies))
		}
	}
}

func TestParseChartResponseDefaultsOnFreeText(t *testing.T) {
	parsed := parseChartResponse("The chart shows revenue going up.")
	if parsed.Description != defaultChartDescription {
		t.Errorf("description = %q", parsed.Description)
	}
	if len(parsed.Data) != 0 || len(parsed.Inconsistencies) != 0 {
		t.Errorf("unexpected items parsed from free text")
	}
}

func TestParseChartResponseDescriptionOnNextLine(t *testing.T) {
	text := "DESCRIPTION:\nLine chart of margin expansion\nDATA:\n- Margin at 38%\n"
	parsed := parseChartResponse(text)
	if parsed.Description != "Line chart of margin expansion" {
		t.Errorf("description = %q", parsed.Description)
	}
	if len(parsed.Data) != 1 {
		t.Errorf("data points = %d, want 1", len(parsed.Data))
	}
}

func TestMediaTypeForExtensions(t *testing.T) {
	cases := map[string]string{
		"chart.jpg":  "image/jpeg",
		"chart.jpeg": "image/jpeg",
		"chart.png":  "image/png",
		"chart.gif":  "image/gif",
		"chart.webp": "image/webp",
		"chart.bmp":  "image/jpeg",
		"chart":      "image/jpeg",
	}
	for name, want := range cases {
		if got := MediaTypeFor(name); got != want {
			t.Errorf("MediaTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}
