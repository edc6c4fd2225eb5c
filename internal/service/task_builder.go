package service

import (
	"math"
	"sort"

	"github.com/noah-isme/timetable-api/internal/models"
)

// PlacementTask is one session the generator has to place.
type PlacementTask struct {
	TeachingLoadID string
	CurriculumID   string
	TeacherID      string
	TeacherName    string
	GroupID        string
	GroupCode      string
	EnrollmentYear *int
	StudentCount   int
	DisciplineID   string
	DisciplineName string
	Kind           models.LessonKind
	SubgroupNumber *int
	IsDouble       bool
	Priority       int
}

const (
	lecturePriorityBonus = 100
	labPriorityBonus     = 50
)

// BuildTasks expands teaching loads into placement tasks. Lectures are taught to the whole
// group; practicals and labs are split across the group's subgroups.
func BuildTasks(loads []models.TeachingLoadDetail) []PlacementTask {
	var tasks []PlacementTask
	for _, load := range loads {
		group := load.Group()
		total := load.TotalHours()

		if load.HoursLecture > 0 {
			for i := 0; i < lessonCount(load.HoursLecture, 1); i++ {
				tasks = append(tasks, newTask(load, models.LessonLecture, nil, load.HoursLecture >= 3, total+lecturePriorityBonus))
			}
		}

		if load.HoursPractical > 0 {
			subgroups := group.Subgroups(models.LessonPractice)
			per := lessonCount(load.HoursPractical, len(subgroups))
			for _, sub := range subgroups {
				for i := 0; i < per; i++ {
					tasks = append(tasks, newTask(load, models.LessonPractice, intPtr(sub.Number), false, total))
				}
			}
		}

		if load.HoursLab > 0 {
			subgroups := group.Subgroups(models.LessonLab)
			per := lessonCount(load.HoursLab, len(subgroups))
			for _, sub := range subgroups {
				for i := 0; i < per; i++ {
					tasks = append(tasks, newTask(load, models.LessonLab, intPtr(sub.Number), true, total+labPriorityBonus))
				}
			}
		}
	}
	return tasks
}

// PrioritizeTasks orders tasks by descending priority. Equal priorities keep input order.
func PrioritizeTasks(tasks []PlacementTask) []PlacementTask {
	sorted := make([]PlacementTask, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

func lessonCount(hours, parts int) int {
	if hours <= 0 {
		return 0
	}
	if parts < 1 {
		parts = 1
	}
	return int(math.Ceil(float64(hours) / models.HoursPerLesson / float64(parts)))
}

func newTask(load models.TeachingLoadDetail, kind models.LessonKind, subgroup *int, double bool, priority int) PlacementTask {
	return PlacementTask{
		TeachingLoadID: load.ID,
		CurriculumID:   load.CurriculumID,
		TeacherID:      load.TeacherID,
		TeacherName:    load.TeacherName,
		GroupID:        load.GroupID,
		GroupCode:      load.GroupCode,
		EnrollmentYear: load.GroupEnrollmentYear,
		StudentCount:   load.StudentCount,
		DisciplineID:   load.DisciplineID,
		DisciplineName: load.DisciplineName,
		Kind:           kind,
		SubgroupNumber: subgroup,
		IsDouble:       double,
		Priority:       priority,
	}
}

func intPtr(v int) *int {
	return &v
}
