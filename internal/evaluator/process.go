package evaluator

import (
	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// EstimateProcess derives fees and review time for the approval path implied
// by the analysis. It returns nil when there is no modeled path: missing
// rules, unknown district, or a prohibited use that would need rezoning.
func EstimateProcess(a *models.ComplianceAnalysis, j *models.Jurisdiction) *models.ProcessEstimate {
	if a == nil || j == nil {
		return nil
	}
	if a.Status != models.StatusCompliant && a.Status != models.StatusNonCompliant {
		return nil
	}

	var conditional, variance bool
	for _, v := range a.Violations {
		switch {
		case v.Severity == models.SeverityCritical:
			return nil
		case v.Type == models.ViolationUse:
			conditional = true
		case v.RequiresVariance:
			variance = true
		}
	}

	est := &models.ProcessEstimate{
		EstimatedFees:         j.Fees.Application,
		EstimatedTimelineDays: j.Timeline.ReviewDays,
		PreApplicationMeeting: j.Workflow.PreApplicationMeeting,
	}

	if conditional {
		est.EstimatedFees += j.Fees.ConditionalUse
		if j.Workflow.PublicHearingForConditional {
			est.PublicHearing = true
		}
	}
	if variance {
		est.EstimatedFees += j.Fees.Variance
		est.PublicHearing = true
	}
	if est.PublicHearing {
		est.EstimatedTimelineDays += j.Timeline.HearingDays
	}

	return est
}
