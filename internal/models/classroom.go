package models

import "github.com/samber/lo"

// ClassroomKind classifies a room by the sessions it can host.
type ClassroomKind string

const (
	ClassroomLectureHall ClassroomKind = "LECTURE_HALL"
	ClassroomComputerLab ClassroomKind = "COMPUTER_LAB"
	ClassroomGym         ClassroomKind = "GYM"
	ClassroomStandard    ClassroomKind = "STANDARD"
)

// Classroom is read-only reference data for placement.
type Classroom struct {
	ID           string        `db:"id" json:"id"`
	BuildingID   string        `db:"building_id" json:"building_id"`
	BuildingName string        `db:"building_name" json:"building_name"`
	Number       string        `db:"number" json:"number"`
	Capacity     int           `db:"capacity" json:"capacity"`
	Kind         ClassroomKind `db:"kind" json:"kind"`
}

// AllowedClassroomKinds lists the room kinds that can host a session kind.
func AllowedClassroomKinds(kind LessonKind) []ClassroomKind {
	switch kind {
	case LessonLecture:
		return []ClassroomKind{ClassroomLectureHall, ClassroomStandard}
	case LessonPractice, LessonLab:
		return []ClassroomKind{ClassroomComputerLab, ClassroomStandard}
	case LessonPhysicalEducation:
		return []ClassroomKind{ClassroomGym}
	default:
		return []ClassroomKind{ClassroomStandard}
	}
}

// ClassroomAllowed reports whether a room kind can host the given session kind.
func ClassroomAllowed(lesson LessonKind, room ClassroomKind) bool {
	return lo.Contains(AllowedClassroomKinds(lesson), room)
}
