package service

import (
	"regexp"
	"sort"
	"strings"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

const (
	// PIISampleRows bounds how many rows per column are pattern-matched.
	PIISampleRows = 200

	// PIIMaxColumns bounds how many columns are scanned.
	PIIMaxColumns = 40

	// Column scores: name keyword hits weigh 2, an email match 3, a
	// phone match 2. Dataset risk is the max column score.
	piiNameWeight  = 2
	piiEmailWeight = 3
	piiPhoneWeight = 2

	// Risk thresholds on the top column score.
	PIIHighRiskScore   = 8
	PIIMediumRiskScore = 3

	// MaxPIIFindings bounds the report.
	MaxPIIFindings = 12
)

var piiNameKeywords = []string{
	"email", "e-mail", "phone", "mobile", "ssn", "social_security",
	"first_name", "last_name", "full_name", "surname", "dob",
	"birth", "address", "street", "zip", "postal", "passport",
	"credit_card", "iban",
}

var (
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)
)

// ScanPII runs the heuristic PII detector: column-name keywords plus
// email and phone patterns over a fixed sample of cell values. It is
// advisory only; findings are signals, not a compliance verdict.
func ScanPII(t *dataset.Table) *models.PIIReport {
	report := &models.PIIReport{Risk: "low"}

	cols := t.Columns()
	if len(cols) > PIIMaxColumns {
		cols = cols[:PIIMaxColumns]
	}

	sample := t.RowCount()
	if sample > PIISampleRows {
		sample = PIISampleRows
	}

	topScore := 0
	for _, col := range cols {
		finding := scanColumn(t, col, sample)
		if finding.Score == 0 {
			continue
		}
		if finding.Score > topScore {
			topScore = finding.Score
		}
		report.Findings = append(report.Findings, finding)
	}

	sort.Slice(report.Findings, func(i, j int) bool {
		if report.Findings[i].Score != report.Findings[j].Score {
			return report.Findings[i].Score > report.Findings[j].Score
		}
		return report.Findings[i].Column < report.Findings[j].Column
	})
	if len(report.Findings) > MaxPIIFindings {
		report.Findings = report.Findings[:MaxPIIFindings]
	}

	switch {
	case topScore >= PIIHighRiskScore:
		report.Risk = "high"
	case topScore >= PIIMediumRiskScore:
		report.Risk = "medium"
	}
	return report
}

func scanColumn(t *dataset.Table, col string, sample int) models.PIIFinding {
	finding := models.PIIFinding{Column: col}

	lower := strings.ToLower(col)
	for _, kw := range piiNameKeywords {
		if strings.Contains(lower, kw) {
			finding.Signals = append(finding.Signals, "name:"+kw)
			finding.Score += piiNameWeight
		}
	}

	for r := 0; r < sample; r++ {
		cell := t.Cell(r, col)
		if cell.IsNull() {
			continue
		}
		s := cell.AsString()
		if emailPattern.MatchString(s) {
			finding.EmailMatches++
		}
		if phonePattern.MatchString(s) {
			finding.PhoneMatches++
		}
	}
	if finding.EmailMatches > 0 {
		finding.Signals = append(finding.Signals, "pattern:email")
		finding.Score += piiEmailWeight
	}
	if finding.PhoneMatches > 0 {
		finding.Signals = append(finding.Signals, "pattern:phone")
		finding.Score += piiPhoneWeight
	}
	return finding
}
