package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestBuildTasksLectures(t *testing.T) {
	tasks := BuildTasks([]models.TeachingLoadDetail{fixtureLoad("load-1", "t1", "g1", "ИС-24-1", 30, 30, 0, 0)})

	require.Len(t, tasks, 20)
	for _, task := range tasks {
		assert.Equal(t, models.LessonLecture, task.Kind)
		assert.Nil(t, task.SubgroupNumber)
		assert.True(t, task.IsDouble)
		assert.Equal(t, 130, task.Priority)
	}

	short := BuildTasks([]models.TeachingLoadDetail{fixtureLoad("load-2", "t1", "g1", "ИС-24-1", 30, 2, 0, 0)})
	require.Len(t, short, 2)
	assert.False(t, short[0].IsDouble)
}

func TestBuildTasksSplitsSubgroups(t *testing.T) {
	load := fixtureLoad("load-1", "t1", "g1", "ИС-24-1", 30, 0, 12, 3)
	load.PracticalSubgroups = 2

	tasks := BuildTasks([]models.TeachingLoadDetail{load})

	var practice, lab []PlacementTask
	for _, task := range tasks {
		switch task.Kind {
		case models.LessonPractice:
			practice = append(practice, task)
		case models.LessonLab:
			lab = append(lab, task)
		}
	}

	require.Len(t, practice, 8)
	assert.Equal(t, 1, *practice[0].SubgroupNumber)
	assert.Equal(t, 2, *practice[7].SubgroupNumber)
	assert.False(t, practice[0].IsDouble)
	assert.Equal(t, 15, practice[0].Priority)

	require.Len(t, lab, 2, "zero lab subgroups count as one")
	assert.Equal(t, 1, *lab[0].SubgroupNumber)
	assert.True(t, lab[0].IsDouble)
	assert.Equal(t, 65, lab[0].Priority)
}

func TestPrioritizeTasksIsStable(t *testing.T) {
	tasks := []PlacementTask{
		{TeachingLoadID: "a", Priority: 10},
		{TeachingLoadID: "b", Priority: 110},
		{TeachingLoadID: "c", Priority: 10},
		{TeachingLoadID: "d", Priority: 60},
	}

	sorted := PrioritizeTasks(tasks)
	ids := make([]string, 0, len(sorted))
	for _, task := range sorted {
		ids = append(ids, task.TeachingLoadID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
	assert.Equal(t, "a", tasks[0].TeachingLoadID, "input is not reordered")
}
