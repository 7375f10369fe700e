package outcome

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// LifecycleStatus is where an outcome instance stands in its assessment workflow.
type LifecycleStatus string

const (
	// StatusUnassigned means the section has no instructor yet.
	StatusUnassigned LifecycleStatus = "unassigned"
	// StatusAssigned is the initial state once an instructor owns the section.
	StatusAssigned LifecycleStatus = "assigned"
	// StatusInProgress means data entry started, or rework was requested, or a final state was reopened.
	StatusInProgress LifecycleStatus = "in_progress"
	// StatusAwaitingApproval means the instructor submitted and an admin must review.
	StatusAwaitingApproval LifecycleStatus = "awaiting_approval"
	// StatusApproved is final until reopened.
	StatusApproved LifecycleStatus = "approved"
	// StatusNeverComingIn is final until reopened: the assessment will not be completed.
	StatusNeverComingIn LifecycleStatus = "never_coming_in"
)

var lifecycleStatuses = []LifecycleStatus{
	StatusUnassigned, StatusAssigned, StatusInProgress, StatusAwaitingApproval, StatusApproved, StatusNeverComingIn,
}

func (s LifecycleStatus) Valid() bool {
	for _, known := range lifecycleStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s LifecycleStatus) In(statuses ...LifecycleStatus) bool {
	for _, st := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

// ParseLifecycleStatus maps a stored token to its LifecycleStatus.
func ParseLifecycleStatus(s string) (LifecycleStatus, error) {
	st := LifecycleStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.Errorf("unknown lifecycle status %q", s)
	}
	return st, nil
}

// ApprovalStatus is the reviewer's verdict on an outcome instance.
type ApprovalStatus string

const (
	ApprovalPending       ApprovalStatus = "pending"
	ApprovalApproved      ApprovalStatus = "approved"
	ApprovalNeedsRework   ApprovalStatus = "needs_rework"
	ApprovalNeverComingIn ApprovalStatus = "never_coming_in"
)

var approvalStatuses = []ApprovalStatus{ApprovalPending, ApprovalApproved, ApprovalNeedsRework, ApprovalNeverComingIn}

func (s ApprovalStatus) Valid() bool {
	for _, known := range approvalStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseApprovalStatus maps a stored token to its ApprovalStatus.
// Only "needs_rework" flags rework; "approval_pending" is not accepted as a synonym.
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	st := ApprovalStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.Errorf("unknown approval status %q", s)
	}
	return st, nil
}

// SectionStatus summarizes every outcome instance of a section (or a course).
type SectionStatus string

const (
	SectionNeedsRework SectionStatus = "needs_rework"
	SectionNCI         SectionStatus = "nci"
	SectionApproved    SectionStatus = "approved"
	SectionSubmitted   SectionStatus = "submitted"
	SectionInProgress  SectionStatus = "in_progress"
	SectionNotStarted  SectionStatus = "not_started"
	SectionUnknown     SectionStatus = "unknown"
)

type Course struct {
	ID            string `json:"id"`
	InstitutionID string `json:"institution_id"`
	ProgramID     string `json:"program_id"`
	Code          string `json:"code"`
	Title         string `json:"title"`
}

type Section struct {
	ID           string `json:"id"`
	CourseID     string `json:"course_id"`
	Number       string `json:"number"`
	InstructorID string `json:"instructor_id"`
}

// SectionCode renders the "COURSE-SECTION" code shown to people, e.g. CS101-001.
func SectionCode(course Course, section Section) string {
	return fmt.Sprintf("%s-%s", course.Code, section.Number)
}

// Template is the course-level definition of a learning outcome.
type Template struct {
	ID               string `json:"id"`
	CourseID         string `json:"course_id"`
	CLONumber        int    `json:"clo_number"`
	Description      string `json:"description"`
	AssessmentMethod string `json:"assessment_method"`
	Active           bool   `json:"active"`
}

// Instance is the section-level assessment record of one Template.
type Instance struct {
	ID             string          `json:"id"`
	SectionID      string          `json:"section_id"`
	TemplateID     string          `json:"outcome_template_id"`
	StudentsTook   *int            `json:"students_took"`
	StudentsPassed *int            `json:"students_passed"`
	AssessmentTool *string         `json:"assessment_tool"`
	Status         LifecycleStatus `json:"status"`
	ApprovalStatus ApprovalStatus  `json:"approval_status"`

	// audit trail; never cleared once set
	SubmittedAt      *time.Time `json:"submitted_at"`
	SubmittedBy      string     `json:"submitted_by,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at"`
	ReviewedBy       string     `json:"reviewed_by,omitempty"`
	FeedbackComments string     `json:"feedback_comments,omitempty"`
	NCIReason        string     `json:"nci_reason,omitempty"`
	NCIAt            *time.Time `json:"nci_at"`
	NCIBy            string     `json:"nci_by,omitempty"`
	ReopenedAt       *time.Time `json:"reopened_at"`
	ReopenedBy       string     `json:"reopened_by,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasAssessmentData reports whether any assessment field was filled in.
func (inst Instance) HasAssessmentData() bool {
	return inst.StudentsTook != nil ||
		inst.StudentsPassed != nil ||
		(inst.AssessmentTool != nil && strings.TrimSpace(*inst.AssessmentTool) != "")
}

// AuditDetails is the read-only view of an outcome instance with its display context.
type AuditDetails struct {
	Outcome          Instance `json:"outcome"`
	CLONumber        int      `json:"clo_number"`
	Description      string   `json:"description"`
	AssessmentMethod string   `json:"assessment_method"`
	CourseID         string   `json:"course_id"`
	CourseCode       string   `json:"course_code"`
	CourseTitle      string   `json:"course_title"`
	SectionID        string   `json:"section_id"`
	SectionNumber    string   `json:"section_number"`
	SectionCode      string   `json:"section_code"`
	InstructorName   string   `json:"instructor_name"`
	SubmittedByName  string   `json:"submitted_by_name"`
	ReviewedByName   string   `json:"reviewed_by_name"`
	NCIByName        string   `json:"nci_by_name"`
}

// SubmissionError is one problem found by the course submission validator.
// OutcomeID and Field are empty for course-wide problems.
type SubmissionError struct {
	OutcomeID string `json:"outcome_id,omitempty"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}

// Validation is the course submission validator result. Valid is true iff Errors is empty.
type Validation struct {
	Valid  bool              `json:"valid"`
	Errors []SubmissionError `json:"errors"`
}

type BulkSubmitResult struct {
	Success        bool              `json:"success"`
	SubmittedCount int               `json:"submitted_count"`
	FailedCount    int               `json:"failed_count"`
	Errors         []SubmissionError `json:"errors,omitempty"`
}

type ReworkResult struct {
	Outcome   Instance `json:"outcome"`
	EmailSent bool     `json:"email_sent"`
	Warning   string   `json:"warning,omitempty"`
}

type CourseStatus struct {
	CourseID string                   `json:"course_id"`
	Status   SectionStatus            `json:"status"`
	Sections map[string]SectionStatus `json:"sections"`
}
