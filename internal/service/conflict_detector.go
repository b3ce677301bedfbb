package service

import (
	"sort"

	"github.com/school-sim/scheduling-api/internal/models"
)

// DetectConflicts compares a candidate slot against the committed schedules of
// one shared resource (a teacher's or a classroom's day, ordered by start
// time) and reports every overlap. The candidate's own row is skipped so that
// updates do not conflict with themselves. Sessions that merely touch, one
// ending exactly when the next starts, do not overlap.
func DetectConflicts(candidate models.Schedule, existing []models.Schedule, kind models.ConflictKind) []models.Conflict {
	// existing is ordered by start time; nothing at or past the candidate's
	// end can overlap.
	hi := sort.Search(len(existing), func(i int) bool {
		return existing[i].StartTime >= candidate.EndTime
	})

	var conflicts []models.Conflict
	for _, other := range existing[:hi] {
		if other.ID == candidate.ID || !other.Active() {
			continue
		}
		overlap, ok := candidate.Range().Intersect(other.Range())
		if !ok {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			ConflictingScheduleID: other.ID,
			Kind:                  kind,
			DayOfWeek:             candidate.DayOfWeek,
			Overlap:               overlap,
		})
	}
	return conflicts
}

// DetectPeriodConflicts sweeps every active schedule of a period and reports
// each conflicting pair exactly once. Schedules are grouped per teacher-day
// and per classroom-day; within a group sorted by start time, a pair overlaps
// exactly when the later start falls before the earlier end.
func DetectPeriodConflicts(schedules []models.Schedule) []models.ConflictPair {
	teacherGroups := make(map[string][]models.Schedule)
	roomGroups := make(map[string][]models.Schedule)
	for _, s := range schedules {
		if !s.Active() {
			continue
		}
		teacherGroups[s.TeacherID+"|"+s.DayOfWeek] = append(teacherGroups[s.TeacherID+"|"+s.DayOfWeek], s)
		roomGroups[s.ClassRoomID+"|"+s.DayOfWeek] = append(roomGroups[s.ClassRoomID+"|"+s.DayOfWeek], s)
	}

	var pairs []models.ConflictPair
	for _, group := range teacherGroups {
		pairs = append(pairs, sweepGroup(group, models.ConflictKindTeacher)...)
	}
	for _, group := range roomGroups {
		pairs = append(pairs, sweepGroup(group, models.ConflictKindClassRoom)...)
	}

	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.DayOfWeek != b.DayOfWeek {
			return models.DayIndex(a.DayOfWeek) < models.DayIndex(b.DayOfWeek)
		}
		if a.Overlap.Start != b.Overlap.Start {
			return a.Overlap.Start < b.Overlap.Start
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.FirstScheduleID != b.FirstScheduleID {
			return a.FirstScheduleID < b.FirstScheduleID
		}
		return a.SecondScheduleID < b.SecondScheduleID
	})
	return pairs
}

func sweepGroup(group []models.Schedule, kind models.ConflictKind) []models.ConflictPair {
	sort.Slice(group, func(i, j int) bool {
		if group[i].StartTime != group[j].StartTime {
			return group[i].StartTime < group[j].StartTime
		}
		return group[i].ID < group[j].ID
	})

	var pairs []models.ConflictPair
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			// starts are sorted, so the first non-overlapping successor ends
			// the scan for i
			if group[j].StartTime >= group[i].EndTime {
				break
			}
			overlap, ok := group[i].Range().Intersect(group[j].Range())
			if !ok {
				continue
			}
			pairs = append(pairs, models.ConflictPair{
				FirstScheduleID:  group[i].ID,
				SecondScheduleID: group[j].ID,
				Kind:             kind,
				DayOfWeek:        group[i].DayOfWeek,
				Overlap:          overlap,
			})
		}
	}
	return pairs
}
