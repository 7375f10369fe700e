package outcome

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// sectionReadConcurrency bounds the per-section reads of course-level operations.
const sectionReadConcurrency = 4

// inProgress is true for instances being worked on, including assigned ones whose data entry
// got ahead of their status.
func inProgress(inst Instance) bool {
	return inst.Status == StatusInProgress ||
		(inst.Status == StatusAssigned && inst.HasAssessmentData())
}

func notStarted(inst Instance) bool {
	return inst.Status.In(StatusAssigned, StatusUnassigned) && !inst.HasAssessmentData()
}

// AggregateStatus reduces instances to one status. The first matching rule wins:
//  1. no instances: not started
//  2. any instance flagged for rework: needs rework
//  3. all never coming in: nci
//  4. all approved: approved
//  5. all awaiting approval: submitted
//  6. any in progress (see inProgress): in progress
//  7. all assigned or unassigned without data: not started
//  8. anything else: unknown
//
// The result does not depend on the order of instances.
func AggregateStatus(instances []Instance) SectionStatus {
	var total, rework, nci, approved, awaiting, working, idle int
	for _, inst := range instances {
		total++
		if inst.ApprovalStatus == ApprovalNeedsRework {
			rework++
		}
		switch inst.Status {
		case StatusNeverComingIn:
			nci++
		case StatusApproved:
			approved++
		case StatusAwaitingApproval:
			awaiting++
		}
		if inProgress(inst) {
			working++
		}
		if notStarted(inst) {
			idle++
		}
	}

	switch {
	case total == 0:
		return SectionNotStarted
	case rework > 0:
		return SectionNeedsRework
	case nci == total:
		return SectionNCI
	case approved == total:
		return SectionApproved
	case awaiting == total:
		return SectionSubmitted
	case working > 0:
		return SectionInProgress
	case idle == total:
		return SectionNotStarted
	default:
		return SectionUnknown
	}
}

// GetSectionAssessmentStatus aggregates the instances of a section. Read failures are logged and
// reported as SectionUnknown.
func (svc *Service) GetSectionAssessmentStatus(ctx context.Context, sectionID string) SectionStatus {
	instances, err := svc.repo.ListInstancesBySection(ctx, sectionID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("listing outcome instances of section %s: %v", sectionID, err), err)
		return SectionUnknown
	}
	return AggregateStatus(instances)
}

// GetCourseAssessmentStatus aggregates every instance of a course with the section rules, and
// reports each section's own status alongside.
func (svc *Service) GetCourseAssessmentStatus(ctx context.Context, courseID string) CourseStatus {
	res := CourseStatus{CourseID: courseID, Status: SectionUnknown, Sections: map[string]SectionStatus{}}

	sections, err := svc.repo.ListSectionsByCourse(ctx, courseID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("listing sections of course %s: %v", courseID, err), err)
		return res
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(sectionReadConcurrency)
	for _, section := range sections {
		section := section
		g.Go(func() error {
			status := svc.GetSectionAssessmentStatus(ctx, section.ID)
			mu.Lock()
			res.Sections[section.ID] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	instances, err := svc.repo.ListInstancesByCourse(ctx, courseID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("listing outcome instances of course %s: %v", courseID, err), err)
		return res
	}
	res.Status = AggregateStatus(instances)
	return res
}
