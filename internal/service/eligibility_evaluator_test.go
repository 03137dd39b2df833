package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func evalStudent(cgpa float64) *models.Student {
	return &models.Student{
		ID:                 "stu-1",
		UserID:             "user-1",
		CollegeID:          "college-1",
		Department:         "CSE",
		TenthPercent:       80,
		TwelfthPercent:     75,
		CGPA:               floatPtr(cgpa),
		VerificationStatus: models.VerificationVerified,
		PlacementStatus:    models.PlacementStatusNotPlaced,
	}
}

func commonJob(th models.Thresholds, allowArrears bool) *models.Job {
	return &models.Job{
		ID:       "job-1",
		Status:   models.JobStatusActive,
		IsActive: true,
		Eligibility: models.EligibilityCriteria{
			Type:         models.EligibilityCommon,
			Common:       th,
			AllowArrears: allowArrears,
		},
	}
}

func TestEvaluateCGPAShortfall(t *testing.T) {
	res := Evaluate(evalStudent(6.5), commonJob(models.Thresholds{MinCGPA: 7.0}, true))

	assert.False(t, res.Eligible)
	assert.Equal(t, []string{"CGPA 6.5 is less than required 7"}, res.Reasons)
}

func TestEvaluateCurrentBacklogs(t *testing.T) {
	student := evalStudent(7.5)
	student.CurrentBacklogCount = 1
	job := commonJob(models.Thresholds{MinCGPA: 7.0}, false)

	res := Evaluate(student, job)
	assert.False(t, res.Eligible)
	assert.Equal(t, []string{"Current backlogs 1 not allowed"}, res.Reasons)

	student.SemesterRecords = models.SemesterRecords{{Semester: 2, Backlogs: 2}}
	res = Evaluate(student, job)
	assert.Equal(t, []string{"Current backlogs 1 not allowed", "Historical backlogs 2 not allowed"}, res.Reasons)
}

func TestEvaluateHistoricalBacklogsAloneBlock(t *testing.T) {
	student := evalStudent(8)
	student.SemesterRecords = models.SemesterRecords{{Semester: 1, Backlogs: 1}, {Semester: 2, Backlogs: 0}}
	student.ArrearHistory = "cleared"

	res := Evaluate(student, commonJob(models.Thresholds{}, false))
	assert.Equal(t, []string{"Historical backlogs 1 not allowed"}, res.Reasons)

	res = Evaluate(student, commonJob(models.Thresholds{}, true))
	assert.True(t, res.Eligible)
}

func TestEvaluateHardGateStopsEverything(t *testing.T) {
	for _, status := range []models.PlacementStatus{models.PlacementStatusPlaced, models.PlacementStatusBarred, models.PlacementStatusOptedOut} {
		student := evalStudent(2)
		student.PlacementStatus = status
		student.CurrentBacklogCount = 4
		job := commonJob(models.Thresholds{MinCGPA: 9, MinTenth: 95}, false)
		job.Eligibility.Departments = []string{"ECE"}

		res := Evaluate(student, job)
		assert.False(t, res.Eligible)
		assert.Equal(t, []string{"Student is " + string(status)}, res.Reasons)
	}
}

func TestEvaluateAccumulatesEveryViolation(t *testing.T) {
	student := evalStudent(5)
	student.TenthPercent = 55
	student.TwelfthPercent = 50
	student.CurrentBacklogCount = 2
	student.SemesterRecords = models.SemesterRecords{{Semester: 3, Backlogs: 3}}
	job := commonJob(models.Thresholds{MinTenth: 60, MinTwelfth: 60, MinCGPA: 6}, false)
	job.Eligibility.Departments = []string{"ECE"}

	res := Evaluate(student, job)
	require.Len(t, res.Reasons, 6)
	assert.Equal(t, []string{
		"10th Percentage 55% is less than required 60%",
		"12th Percentage 50% is less than required 60%",
		"CGPA 5 is less than required 6",
		"Current backlogs 2 not allowed",
		"Historical backlogs 3 not allowed",
		"Department CSE is not eligible",
	}, res.Reasons)
}

func TestEvaluateZeroThresholdsAreNoRequirement(t *testing.T) {
	student := evalStudent(0)
	student.CGPA = nil
	student.TenthPercent = 0
	student.TwelfthPercent = 0

	res := Evaluate(student, commonJob(models.Thresholds{}, true))
	assert.True(t, res.Eligible)
	assert.Empty(t, res.Reasons)
}

func TestEvaluateMissingCGPAUsesGraduationFallback(t *testing.T) {
	student := evalStudent(0)
	student.CGPA = nil

	res := Evaluate(student, commonJob(models.Thresholds{MinCGPA: 6}, true))
	assert.Equal(t, []string{"CGPA 0 is less than required 6"}, res.Reasons)

	student.GraduationCGPA = floatPtr(6.4)
	res = Evaluate(student, commonJob(models.Thresholds{MinCGPA: 6}, true))
	assert.True(t, res.Eligible)
}

func TestEvaluateDepartmentWise(t *testing.T) {
	job := &models.Job{Eligibility: models.EligibilityCriteria{
		Type:         models.EligibilityDepartmentWise,
		AllowArrears: true,
		DepartmentWise: []models.DepartmentThreshold{
			{Department: "CSE", Thresholds: models.Thresholds{MinCGPA: 8}},
			{Department: "ECE", Thresholds: models.Thresholds{MinCGPA: 6}},
		},
	}}

	res := Evaluate(evalStudent(7), job)
	assert.Equal(t, []string{"CGPA 7 is less than required 8"}, res.Reasons)

	ece := evalStudent(7)
	ece.Department = "ECE"
	assert.True(t, Evaluate(ece, job).Eligible)

	mech := evalStudent(9)
	mech.Department = "MECH"
	res = Evaluate(mech, job)
	assert.False(t, res.Eligible)
	assert.Equal(t, []string{"Department MECH is not listed for this job"}, res.Reasons)
}

func TestEvaluateCustomRulesOnlyTighten(t *testing.T) {
	base := commonJob(models.Thresholds{MinCGPA: 7}, true)
	student := evalStudent(6.5)
	before := Evaluate(student, base)
	require.False(t, before.Eligible)

	loosened := commonJob(models.Thresholds{MinCGPA: 7}, true)
	loosened.Eligibility.CustomDeptRules = []models.CustomDeptRule{{Department: "CSE", MinCGPA: 5, AllowArrears: boolPtr(true)}}
	after := Evaluate(student, loosened)
	assert.False(t, after.Eligible)
	assert.Equal(t, before.Reasons, after.Reasons)

	tightened := commonJob(models.Thresholds{MinCGPA: 7}, true)
	tightened.Eligibility.CustomDeptRules = []models.CustomDeptRule{{Department: "CSE", MinCGPA: 8, MinTenthPct: 85, MinTwelfthPct: 70, AllowArrears: boolPtr(false)}}
	student.CurrentBacklogCount = 1
	res := Evaluate(student, tightened)
	assert.Equal(t, []string{
		"CGPA 6.5 is less than required 7",
		"Department CGPA 6.5 < 8",
		"Department 10th % 80 < 85",
		"Department does not allow arrears",
	}, res.Reasons)
}

func TestEvaluateCustomRuleIgnoresOtherDepartments(t *testing.T) {
	job := commonJob(models.Thresholds{}, true)
	job.Eligibility.CustomDeptRules = []models.CustomDeptRule{{Department: "ECE", MinCGPA: 9.5}}

	assert.True(t, Evaluate(evalStudent(7), job).Eligible)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	student := evalStudent(6)
	student.CurrentBacklogCount = 1
	job := commonJob(models.Thresholds{MinCGPA: 7}, false)

	first := Evaluate(student, job)
	second := Evaluate(student, job)
	assert.Equal(t, first, second)
}
