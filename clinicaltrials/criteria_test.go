package clinicaltrials

import (
	"strings"
	"testing"
)

const sampleCriteria = `Inclusion Criteria:

- Age 18 years or older
- Histologically confirmed melanoma
- ECOG performance status 0-1

Exclusion Criteria:

- Prior systemic therapy
- Active brain metastases`

func TestParseInclusionCriteria(t *testing.T) {
	got := parseInclusionCriteria(sampleCriteria)

	want := "1. Age 18 years or older.\n" +
		"2. Histologically confirmed melanoma.\n" +
		"3. ECOG performance status 0-1."
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestParseExclusionCriteria(t *testing.T) {
	got, ok := parseExclusionCriteria(sampleCriteria)
	if !ok {
		t.Fatal("expected exclusion section to be found")
	}

	want := "1. Prior systemic therapy.\n" +
		"2. Active brain metastases."
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestParseExclusionCriteriaMissing(t *testing.T) {
	if _, ok := parseExclusionCriteria("Inclusion Criteria:\n- Adults only"); ok {
		t.Error("expected no exclusion section")
	}
}

func TestParseCriteriaKeepsTrailingPeriod(t *testing.T) {
	got := parseInclusionCriteria("Inclusion Criteria:\n- Signed informed consent.")
	if got != "1. Signed informed consent." {
		t.Errorf("got %q", got)
	}
}

func TestParseCriteriaDropsLoneBullets(t *testing.T) {
	got := parseInclusionCriteria("Inclusion Criteria:\n-\n- Real item\n*")
	if got != "1. Real item." {
		t.Errorf("got %q", got)
	}
}

func TestTruncateResponse(t *testing.T) {
	line := strings.Repeat("x", 1024)
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(line)
		b.WriteString("\n")
	}

	got := truncateResponse(b.String())
	if len(got) > maxResponseSize {
		t.Errorf("truncated response still %d bytes", len(got))
	}
	if !strings.HasSuffix(got, truncationNotice) {
		t.Error("expected truncation notice suffix")
	}
}

func TestTruncateResponseShortTextUnchanged(t *testing.T) {
	if got := truncateResponse("short"); got != "short" {
		t.Errorf("got %q", got)
	}
}
