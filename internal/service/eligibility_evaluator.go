package service

import (
	"fmt"
	"strconv"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

// Evaluate scores a student against a job's criteria. It never reads the clock or
// external state, and it accumulates every violated rule except the hard placement gate.
func Evaluate(student *models.Student, job *models.Job) models.EligibilityResult {
	if student.PlacementStatus.Blocking() {
		return models.EligibilityResult{
			Eligible: false,
			Reasons:  []string{fmt.Sprintf("Student is %s", student.PlacementStatus)},
		}
	}

	criteria := job.Eligibility
	reasons := make([]string, 0, 4)

	switch variant := criteria.Criteria().(type) {
	case models.CommonCriteria:
		reasons = appendThresholdReasons(reasons, student, variant.Thresholds)
	case models.DepartmentWiseCriteria:
		if th, ok := variant.For(student.Department); ok {
			reasons = appendThresholdReasons(reasons, student, th)
		} else {
			reasons = append(reasons, fmt.Sprintf("Department %s is not listed for this job", student.Department))
		}
	}

	if !criteria.AllowArrears {
		if student.CurrentBacklogCount > 0 {
			reasons = append(reasons, fmt.Sprintf("Current backlogs %d not allowed", student.CurrentBacklogCount))
		}
		if total := student.HistoricalBacklogTotal(); total > 0 {
			reasons = append(reasons, fmt.Sprintf("Historical backlogs %d not allowed", total))
		}
	}

	if !criteria.AllowsDepartment(student.Department) {
		reasons = append(reasons, fmt.Sprintf("Department %s is not eligible", student.Department))
	}

	if rule, ok := criteria.CustomRuleFor(student.Department); ok {
		reasons = appendCustomRuleReasons(reasons, student, rule)
	}

	return models.EligibilityResult{Eligible: len(reasons) == 0, Reasons: reasons}
}

func appendThresholdReasons(reasons []string, s *models.Student, th models.Thresholds) []string {
	if th.MinTenth > 0 && s.TenthPercent < th.MinTenth {
		reasons = append(reasons, fmt.Sprintf("10th Percentage %s%% is less than required %s%%", num(s.TenthPercent), num(th.MinTenth)))
	}
	if th.MinTwelfth > 0 && s.TwelfthPercent < th.MinTwelfth {
		reasons = append(reasons, fmt.Sprintf("12th Percentage %s%% is less than required %s%%", num(s.TwelfthPercent), num(th.MinTwelfth)))
	}
	if cgpa := s.EffectiveCGPA(); th.MinCGPA > 0 && cgpa < th.MinCGPA {
		reasons = append(reasons, fmt.Sprintf("CGPA %s is less than required %s", num(cgpa), num(th.MinCGPA)))
	}
	return reasons
}

func appendCustomRuleReasons(reasons []string, s *models.Student, rule models.CustomDeptRule) []string {
	if cgpa := s.EffectiveCGPA(); rule.MinCGPA > 0 && cgpa < rule.MinCGPA {
		reasons = append(reasons, fmt.Sprintf("Department CGPA %s < %s", num(cgpa), num(rule.MinCGPA)))
	}
	if rule.MinTenthPct > 0 && s.TenthPercent < rule.MinTenthPct {
		reasons = append(reasons, fmt.Sprintf("Department 10th %% %s < %s", num(s.TenthPercent), num(rule.MinTenthPct)))
	}
	if rule.MinTwelfthPct > 0 && s.TwelfthPercent < rule.MinTwelfthPct {
		reasons = append(reasons, fmt.Sprintf("Department 12th %% %s < %s", num(s.TwelfthPercent), num(rule.MinTwelfthPct)))
	}
	if rule.AllowArrears != nil && !*rule.AllowArrears && s.CurrentBacklogCount > 0 {
		reasons = append(reasons, "Department does not allow arrears")
	}
	return reasons
}

// num renders 7.0 as "7" and 6.5 as "6.5".
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
