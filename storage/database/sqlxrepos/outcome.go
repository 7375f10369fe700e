package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/clotrack/core/outcome"
)

const instanceColumns = `oi.id, oi.section_id, oi.outcome_template_id, oi.students_took, oi.students_passed,
	oi.assessment_tool, oi.status, oi.approval_status, oi.submitted_at, oi.submitted_by, oi.reviewed_at,
	oi.reviewed_by, oi.feedback_comments, oi.nci_reason, oi.nci_at, oi.nci_by, oi.reopened_at, oi.reopened_by,
	oi.updated_at`

type instanceRow struct {
	ID               string      `db:"id" boil:"id"`
	SectionID        string      `db:"section_id" boil:"section_id"`
	TemplateID       string      `db:"outcome_template_id" boil:"outcome_template_id"`
	StudentsTook     null.Int    `db:"students_took" boil:"students_took"`
	StudentsPassed   null.Int    `db:"students_passed" boil:"students_passed"`
	AssessmentTool   null.String `db:"assessment_tool" boil:"assessment_tool"`
	Status           string      `db:"status" boil:"status"`
	ApprovalStatus   string      `db:"approval_status" boil:"approval_status"`
	SubmittedAt      null.Time   `db:"submitted_at" boil:"submitted_at"`
	SubmittedBy      null.String `db:"submitted_by" boil:"submitted_by"`
	ReviewedAt       null.Time   `db:"reviewed_at" boil:"reviewed_at"`
	ReviewedBy       null.String `db:"reviewed_by" boil:"reviewed_by"`
	FeedbackComments null.String `db:"feedback_comments" boil:"feedback_comments"`
	NCIReason        null.String `db:"nci_reason" boil:"nci_reason"`
	NCIAt            null.Time   `db:"nci_at" boil:"nci_at"`
	NCIBy            null.String `db:"nci_by" boil:"nci_by"`
	ReopenedAt       null.Time   `db:"reopened_at" boil:"reopened_at"`
	ReopenedBy       null.String `db:"reopened_by" boil:"reopened_by"`
	UpdatedAt        time.Time   `db:"updated_at" boil:"updated_at"`
}

type instanceUpdate struct {
	instanceRow
	ExpectedStatus string `db:"expected_status"`
}

func boilInstance(inst outcome.Instance) instanceRow {
	return instanceRow{
		ID:               inst.ID,
		SectionID:        inst.SectionID,
		TemplateID:       inst.TemplateID,
		StudentsTook:     null.IntFromPtr(inst.StudentsTook),
		StudentsPassed:   null.IntFromPtr(inst.StudentsPassed),
		AssessmentTool:   null.StringFromPtr(inst.AssessmentTool),
		Status:           string(inst.Status),
		ApprovalStatus:   string(inst.ApprovalStatus),
		SubmittedAt:      null.TimeFromPtr(inst.SubmittedAt),
		SubmittedBy:      nullString(inst.SubmittedBy),
		ReviewedAt:       null.TimeFromPtr(inst.ReviewedAt),
		ReviewedBy:       nullString(inst.ReviewedBy),
		FeedbackComments: nullString(inst.FeedbackComments),
		NCIReason:        nullString(inst.NCIReason),
		NCIAt:            null.TimeFromPtr(inst.NCIAt),
		NCIBy:            nullString(inst.NCIBy),
		ReopenedAt:       null.TimeFromPtr(inst.ReopenedAt),
		ReopenedBy:       nullString(inst.ReopenedBy),
		UpdatedAt:        inst.UpdatedAt,
	}
}

func unboilInstance(row instanceRow) (outcome.Instance, error) {
	status, err := outcome.ParseLifecycleStatus(row.Status)
	if err != nil {
		return outcome.Instance{}, errors.Wrapf(err, "outcome instance %s", row.ID)
	}
	approval, err := outcome.ParseApprovalStatus(row.ApprovalStatus)
	if err != nil {
		return outcome.Instance{}, errors.Wrapf(err, "outcome instance %s", row.ID)
	}
	return outcome.Instance{
		ID:               row.ID,
		SectionID:        row.SectionID,
		TemplateID:       row.TemplateID,
		StudentsTook:     row.StudentsTook.Ptr(),
		StudentsPassed:   row.StudentsPassed.Ptr(),
		AssessmentTool:   row.AssessmentTool.Ptr(),
		Status:           status,
		ApprovalStatus:   approval,
		SubmittedAt:      utcPtr(row.SubmittedAt),
		SubmittedBy:      row.SubmittedBy.String,
		ReviewedAt:       utcPtr(row.ReviewedAt),
		ReviewedBy:       row.ReviewedBy.String,
		FeedbackComments: row.FeedbackComments.String,
		NCIReason:        row.NCIReason.String,
		NCIAt:            utcPtr(row.NCIAt),
		NCIBy:            row.NCIBy.String,
		ReopenedAt:       utcPtr(row.ReopenedAt),
		ReopenedBy:       row.ReopenedBy.String,
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}

func unboilInstances(rows []instanceRow) ([]outcome.Instance, error) {
	instances := make([]outcome.Instance, 0, len(rows))
	for _, row := range rows {
		inst, err := unboilInstance(row)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

type outcomeRepository struct {
	db *sqlx.DB
}

var _ outcome.Repository = (*outcomeRepository)(nil)

func NewOutcomeRepository(db *sql.DB) outcome.Repository {
	return &outcomeRepository{db: sqlx.NewDb(db, "postgres")}
}

func trapNoRowsErr(err error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return outcome.ErrNotFound
	}
	return err
}

func (repo *outcomeRepository) GetInstance(ctx context.Context, id string) (outcome.Instance, error) {
	var row instanceRow
	q := `SELECT ` + instanceColumns + ` FROM outcome_instances oi WHERE oi.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return outcome.Instance{}, trapNoRowsErr(errors.Wrap(err, "selecting outcome instance"))
	}
	return unboilInstance(row)
}

func (repo *outcomeRepository) UpdateInstance(ctx context.Context, inst outcome.Instance, expected outcome.LifecycleStatus) (bool, error) {
	q := `UPDATE outcome_instances SET
		status = :status,
		approval_status = :approval_status,
		submitted_at = :submitted_at,
		submitted_by = :submitted_by,
		reviewed_at = :reviewed_at,
		reviewed_by = :reviewed_by,
		feedback_comments = :feedback_comments,
		nci_reason = :nci_reason,
		nci_at = :nci_at,
		nci_by = :nci_by,
		reopened_at = :reopened_at,
		reopened_by = :reopened_by,
		updated_at = :updated_at
	WHERE id = :id AND status = :expected_status`

	res, err := repo.db.NamedExecContext(ctx, q, instanceUpdate{instanceRow: boilInstance(inst), ExpectedStatus: string(expected)})
	if err != nil {
		return false, errors.Wrap(err, "updating outcome instance")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "reading affected rows")
	}
	return n == 1, nil
}

func (repo *outcomeRepository) ListInstancesBySection(ctx context.Context, sectionID string) ([]outcome.Instance, error) {
	var rows []instanceRow
	q := `SELECT ` + instanceColumns + `
		FROM outcome_instances oi
		JOIN outcome_templates ot ON ot.id = oi.outcome_template_id
		WHERE oi.section_id = $1
		ORDER BY ot.clo_number, oi.id`
	if err := repo.db.SelectContext(ctx, &rows, q, sectionID); err != nil {
		return nil, errors.Wrap(err, "selecting outcome instances")
	}
	return unboilInstances(rows)
}

// ListInstancesByCourse binds through sqlboiler's raw queries since the join spans three tables.
func (repo *outcomeRepository) ListInstancesByCourse(ctx context.Context, courseID string) ([]outcome.Instance, error) {
	var rows []instanceRow
	q := `SELECT ` + instanceColumns + `
		FROM outcome_instances oi
		JOIN sections s ON s.id = oi.section_id
		JOIN outcome_templates ot ON ot.id = oi.outcome_template_id
		WHERE s.course_id = $1
		ORDER BY s.number, ot.clo_number, oi.id`
	if err := queries.Raw(q, courseID).Bind(ctx, repo.db, &rows); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return []outcome.Instance{}, nil
		}
		return nil, errors.Wrap(err, "selecting course outcome instances")
	}
	return unboilInstances(rows)
}

type sectionRow struct {
	ID           string      `db:"id"`
	CourseID     string      `db:"course_id"`
	Number       string      `db:"number"`
	InstructorID null.String `db:"instructor_id"`
}

func (row sectionRow) unboil() outcome.Section {
	return outcome.Section{ID: row.ID, CourseID: row.CourseID, Number: row.Number, InstructorID: row.InstructorID.String}
}

func (repo *outcomeRepository) ListSectionsByCourse(ctx context.Context, courseID string) ([]outcome.Section, error) {
	var rows []sectionRow
	q := `SELECT id, course_id, number, instructor_id FROM sections WHERE course_id = $1 ORDER BY number, id`
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting sections")
	}
	sections := make([]outcome.Section, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, row.unboil())
	}
	return sections, nil
}

func (repo *outcomeRepository) GetSection(ctx context.Context, id string) (outcome.Section, error) {
	var row sectionRow
	q := `SELECT id, course_id, number, instructor_id FROM sections WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return outcome.Section{}, trapNoRowsErr(errors.Wrap(err, "selecting section"))
	}
	return row.unboil(), nil
}

func (repo *outcomeRepository) GetTemplate(ctx context.Context, id string) (outcome.Template, error) {
	var tmpl outcome.Template
	q := `SELECT id, course_id, clo_number, description, assessment_method, active FROM outcome_templates WHERE id = $1`
	row := repo.db.QueryRowxContext(ctx, q, id)
	err := row.Scan(&tmpl.ID, &tmpl.CourseID, &tmpl.CLONumber, &tmpl.Description, &tmpl.AssessmentMethod, &tmpl.Active)
	if err != nil {
		return outcome.Template{}, trapNoRowsErr(errors.Wrap(err, "selecting outcome template"))
	}
	return tmpl, nil
}

func (repo *outcomeRepository) GetCourse(ctx context.Context, id string) (outcome.Course, error) {
	var course outcome.Course
	q := `SELECT id, institution_id, program_id, code, title FROM courses WHERE id = $1`
	row := repo.db.QueryRowxContext(ctx, q, id)
	if err := row.Scan(&course.ID, &course.InstitutionID, &course.ProgramID, &course.Code, &course.Title); err != nil {
		return outcome.Course{}, trapNoRowsErr(errors.Wrap(err, "selecting course"))
	}
	return course, nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}
