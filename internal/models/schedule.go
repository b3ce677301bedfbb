package models

import (
	"strings"
	"time"
)

// ScheduleStatus tracks the lifecycle of a schedule row. Only active rows
// participate in conflict detection, availability and timetables.
type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "ACTIVE"
	ScheduleStatusInactive ScheduleStatus = "INACTIVE"
	ScheduleStatusArchived ScheduleStatus = "ARCHIVED"
)

// Schedule represents one recurring weekly slot assigning a subject and
// teacher to a classroom within an academic period.
type Schedule struct {
	ID           string         `db:"id" json:"id"`
	ClassRoomID  string         `db:"class_room_id" json:"class_room_id"`
	SubjectID    string         `db:"subject_id" json:"subject_id"`
	TeacherID    string         `db:"teacher_id" json:"teacher_id"`
	DayOfWeek    string         `db:"day_of_week" json:"day_of_week"`
	StartTime    TimeOfDay      `db:"start_time" json:"start_time"`
	EndTime      TimeOfDay      `db:"end_time" json:"end_time"`
	AcademicYear string         `db:"academic_year" json:"academic_year"`
	Semester     int            `db:"semester" json:"semester"`
	Status       ScheduleStatus `db:"status" json:"status"`
	Notes        *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Active reports whether the schedule participates in conflict checks.
func (s *Schedule) Active() bool {
	return s.Status == ScheduleStatusActive
}

// Range returns the schedule's time interval.
func (s *Schedule) Range() TimeRange {
	return TimeRange{Start: s.StartTime, End: s.EndTime}
}

// Duration returns the session length in minutes.
func (s *Schedule) Duration() int {
	return s.Range().Duration()
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	ClassRoomID  string
	SubjectID    string
	TeacherID    string
	DayOfWeek    string
	AcademicYear string
	Semester     int
	Status       ScheduleStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// ConflictKind distinguishes which shared resource causes an overlap.
type ConflictKind string

const (
	ConflictKindTeacher   ConflictKind = "TEACHER_CONFLICT"
	ConflictKindClassRoom ConflictKind = "CLASSROOM_CONFLICT"
)

// Conflict records an overlap between a candidate and a committed schedule.
type Conflict struct {
	ConflictingScheduleID string       `json:"conflicting_schedule_id"`
	Kind                  ConflictKind `json:"kind"`
	DayOfWeek             string       `json:"day_of_week"`
	Overlap               TimeRange    `json:"overlap"`
}

// ConflictPair records an overlap between two committed schedules, as found
// by the period-wide audit.
type ConflictPair struct {
	FirstScheduleID  string       `json:"first_schedule_id"`
	SecondScheduleID string       `json:"second_schedule_id"`
	Kind             ConflictKind `json:"kind"`
	DayOfWeek        string       `json:"day_of_week"`
	Overlap          TimeRange    `json:"overlap"`
}

// WeekDays lists day names in timetable order, Monday first.
var WeekDays = []string{
	"MONDAY",
	"TUESDAY",
	"WEDNESDAY",
	"THURSDAY",
	"FRIDAY",
	"SATURDAY",
	"SUNDAY",
}

var weekDayIndex = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
	"SATURDAY":  6,
	"SUNDAY":    7,
}

// NormalizeDay upper-cases and validates a day name; ok is false for unknown days.
func NormalizeDay(raw string) (string, bool) {
	day := strings.ToUpper(strings.TrimSpace(raw))
	_, ok := weekDayIndex[day]
	return day, ok
}

// DayIndex returns the 1-based Monday-first index for a day name, 0 if unknown.
func DayIndex(day string) int {
	return weekDayIndex[strings.ToUpper(strings.TrimSpace(day))]
}
