package services

import (
	"github.com/driveschool-hub/scheduling-service/internal/models"
)

// CriterionTemplate is one skill item the curriculum requires for a category.
type CriterionTemplate struct {
	Code string
	Name string
}

// Curriculum fixes the exam checklist and pass threshold per licence
// category. The checklist is snapshotted onto the exam at scheduling time, so
// later curriculum changes never alter an existing exam.
type Curriculum struct {
	Criteria      []CriterionTemplate
	PassThreshold int
}

// CurriculumProvider resolves the grading checklist for a category.
type CurriculumProvider interface {
	CurriculumFor(category models.CourseCategory) (*Curriculum, error)
}

type staticCurriculumProvider struct {
	curricula map[models.CourseCategory]Curriculum
}

// NewStaticCurriculumProvider returns the built-in national curriculum.
func NewStaticCurriculumProvider() CurriculumProvider {
	carCriteria := []CriterionTemplate{
		{Code: "PRE", Name: "Pre-drive vehicle check"},
		{Code: "MOV", Name: "Moving off and stopping"},
		{Code: "JUN", Name: "Junction handling"},
		{Code: "RBT", Name: "Roundabout procedure"},
		{Code: "LNE", Name: "Lane discipline"},
		{Code: "SPD", Name: "Speed management"},
		{Code: "PRK", Name: "Parking manoeuvres"},
		{Code: "REV", Name: "Reversing"},
		{Code: "OBS", Name: "Observation and mirrors"},
		{Code: "IND", Name: "Independent driving"},
	}

	motoCriteria := []CriterionTemplate{
		{Code: "PRE", Name: "Pre-ride machine check"},
		{Code: "BAL", Name: "Slow-speed balance"},
		{Code: "SWV", Name: "Swerve and avoidance"},
		{Code: "BRK", Name: "Emergency braking"},
		{Code: "JUN", Name: "Junction handling"},
		{Code: "OBS", Name: "Observation and lifesavers"},
		{Code: "IND", Name: "Independent riding"},
	}

	truckCriteria := append([]CriterionTemplate{}, carCriteria...)
	truckCriteria = append(truckCriteria,
		CriterionTemplate{Code: "CPL", Name: "Coupling and load security"},
		CriterionTemplate{Code: "DIM", Name: "Vehicle dimension awareness"},
	)

	return &staticCurriculumProvider{
		curricula: map[models.CourseCategory]Curriculum{
			models.CategoryA:  {Criteria: motoCriteria, PassThreshold: 6},
			models.CategoryA1: {Criteria: motoCriteria, PassThreshold: 6},
			models.CategoryB:  {Criteria: carCriteria, PassThreshold: 8},
			models.CategoryBE: {Criteria: carCriteria, PassThreshold: 8},
			models.CategoryC:  {Criteria: truckCriteria, PassThreshold: 10},
		},
	}
}

func (p *staticCurriculumProvider) CurriculumFor(category models.CourseCategory) (*Curriculum, error) {
	curriculum, ok := p.curricula[category]
	if !ok {
		return nil, NewValidationError("no curriculum for category "+string(category), nil)
	}
	return &curriculum, nil
}
