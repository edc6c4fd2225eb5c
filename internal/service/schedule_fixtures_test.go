package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

const fixtureYear = 2024

var (
	slotM1 = models.TimeSlot{ID: "m1", Shift: models.ShiftMorning, PairNumber: 1, StartTime: "08:00", EndTime: "09:30"}
	slotM2 = models.TimeSlot{ID: "m2", Shift: models.ShiftMorning, PairNumber: 2, StartTime: "09:40", EndTime: "11:10"}
	slotM3 = models.TimeSlot{ID: "m3", Shift: models.ShiftMorning, PairNumber: 3, StartTime: "11:30", EndTime: "13:00"}
	slotM4 = models.TimeSlot{ID: "m4", Shift: models.ShiftMorning, PairNumber: 4, StartTime: "13:10", EndTime: "14:40"}
	slotA1 = models.TimeSlot{ID: "a1", Shift: models.ShiftAfternoon, PairNumber: 1, StartTime: "14:50", EndTime: "16:20"}
	slotA2 = models.TimeSlot{ID: "a2", Shift: models.ShiftAfternoon, PairNumber: 2, StartTime: "16:30", EndTime: "18:00"}
	slotA3 = models.TimeSlot{ID: "a3", Shift: models.ShiftAfternoon, PairNumber: 3, StartTime: "18:10", EndTime: "19:40"}
	slotA4 = models.TimeSlot{ID: "a4", Shift: models.ShiftAfternoon, PairNumber: 4, StartTime: "19:50", EndTime: "21:20"}

	roomHall  = models.Classroom{ID: "hall-1", BuildingID: "b1", BuildingName: "Main", Number: "101", Capacity: 100, Kind: models.ClassroomLectureHall}
	roomHall2 = models.Classroom{ID: "hall-2", BuildingID: "b1", BuildingName: "Main", Number: "102", Capacity: 100, Kind: models.ClassroomLectureHall}
	roomLab   = models.Classroom{ID: "lab-1", BuildingID: "b1", BuildingName: "Main", Number: "201", Capacity: 30, Kind: models.ClassroomComputerLab}
	roomAnnex = models.Classroom{ID: "std-1", BuildingID: "b2", BuildingName: "Annex", Number: "11", Capacity: 35, Kind: models.ClassroomStandard}
)

func fixtureSlots() []models.TimeSlot {
	return []models.TimeSlot{slotM1, slotM2, slotM3, slotM4, slotA1, slotA2, slotA3, slotA4}
}

func fixtureSemester() *models.Semester {
	return &models.Semester{ID: "sem-1", Number: 1, AcademicYear: "2024-2025", StartYear: fixtureYear}
}

// fixtureLesson places a whole-group lecture. Group codes with "-24-" are first course and
// therefore morning-shift groups in the fixture year.
func fixtureLesson(id, teacherID, groupID string, room models.Classroom, day models.DayOfWeek, slot models.TimeSlot) models.LessonDetail {
	return models.LessonDetail{
		Lesson: models.Lesson{
			ID:             id,
			ScheduleID:     "sched-1",
			TeachingLoadID: "load-" + teacherID + "-" + groupID,
			Kind:           models.LessonLecture,
			DayOfWeek:      day,
			TimeSlotID:     slot.ID,
			ClassroomID:    room.ID,
		},
		TeacherID:         teacherID,
		TeacherName:       "Teacher " + teacherID,
		GroupID:           groupID,
		GroupCode:         "ИС-24-" + groupID,
		GroupStudentCount: 30,
		CurriculumID:      "cur-" + groupID,
		DisciplineID:      "disc-" + teacherID,
		DisciplineName:    "Discipline " + teacherID,
		ClassroomNumber:   room.Number,
		ClassroomCapacity: room.Capacity,
		ClassroomKind:     room.Kind,
		BuildingID:        room.BuildingID,
		BuildingName:      room.BuildingName,
		Shift:             slot.Shift,
		PairNumber:        slot.PairNumber,
		ReferenceYear:     fixtureYear,
	}
}

func fixtureLoad(id, teacherID, groupID, groupCode string, students, lecture, practical, lab int) models.TeachingLoadDetail {
	return models.TeachingLoadDetail{
		TeachingLoad: models.TeachingLoad{
			ID:             id,
			SemesterID:     "sem-1",
			CurriculumID:   "cur-" + id,
			TeacherID:      teacherID,
			GroupID:        groupID,
			HoursLecture:   lecture,
			HoursPractical: practical,
			HoursLab:       lab,
			Status:         models.TeachingLoadApproved,
		},
		TeacherName:    "Teacher " + teacherID,
		DisciplineID:   "disc-" + id,
		DisciplineName: "Discipline " + id,
		GroupCode:      groupCode,
		StudentCount:   students,
	}
}

type semesterStub struct {
	semester *models.Semester
	err      error
}

func (s semesterStub) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.semester == nil || s.semester.ID != id {
		return nil, sql.ErrNoRows
	}
	found := *s.semester
	return &found, nil
}

type userStub struct {
	users map[string]models.User
}

func (s userStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func dispatcherUsers() userStub {
	return userStub{users: map[string]models.User{
		"dispatcher-1": {ID: "dispatcher-1", FullName: "Dispatcher", Role: models.RoleDispatcher, Active: true},
		"teacher-1":    {ID: "teacher-1", FullName: "Teacher", Role: models.RoleTeacher, Active: true},
	}}
}

type slotListStub struct {
	slots []models.TimeSlot
	err   error
}

func (s slotListStub) List(ctx context.Context) ([]models.TimeSlot, error) {
	return s.slots, s.err
}

func (s slotListStub) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	for _, slot := range s.slots {
		if slot.ID == id {
			found := slot
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type classroomStub struct {
	rooms []models.Classroom
}

func (s classroomStub) List(ctx context.Context) ([]models.Classroom, error) {
	return s.rooms, nil
}

func (s classroomStub) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	for _, room := range s.rooms {
		if room.ID == id {
			found := room
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type loadStub struct {
	loads []models.TeachingLoadDetail
}

func (s loadStub) ListDetailedBySemester(ctx context.Context, semesterID string) ([]models.TeachingLoadDetail, error) {
	return s.loads, nil
}

func (s loadStub) FindDetailByID(ctx context.Context, id string) (*models.TeachingLoadDetail, error) {
	for _, load := range s.loads {
		if load.ID == id {
			found := load
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type curriculumStub struct {
	curricula []models.Curriculum
}

func (s curriculumStub) ListBySemester(ctx context.Context, semesterID string) ([]models.Curriculum, error) {
	return s.curricula, nil
}

// scheduleMemoryStore is an in-memory schedule repository.
type scheduleMemoryStore struct {
	mu          sync.Mutex
	schedules   map[string]models.Schedule
	scores      map[string]float64
	createErr   error
	publishCall int
}

func newScheduleMemoryStore(schedules ...models.Schedule) *scheduleMemoryStore {
	store := &scheduleMemoryStore{schedules: map[string]models.Schedule{}, scores: map[string]float64{}}
	for _, s := range schedules {
		store.schedules[s.ID] = s
	}
	return store
}

func (s *scheduleMemoryStore) Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.schedules[schedule.ID] = *schedule
	return nil
}

func (s *scheduleMemoryStore) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &schedule, nil
}

func (s *scheduleMemoryStore) ListBySemester(ctx context.Context, semesterID string) ([]models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Schedule
	for _, schedule := range s.schedules {
		if semesterID == "" || schedule.SemesterID == semesterID {
			result = append(result, schedule)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *scheduleMemoryStore) ListUnpublished(ctx context.Context) ([]models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Schedule
	for _, schedule := range s.schedules {
		if !schedule.IsPublished {
			result = append(result, schedule)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *scheduleMemoryStore) UpdateScore(ctx context.Context, id string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return sql.ErrNoRows
	}
	schedule.OptimizationScore = &score
	s.schedules[id] = schedule
	s.scores[id] = score
	return nil
}

func (s *scheduleMemoryStore) UpdatePublication(ctx context.Context, id string, published, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return sql.ErrNoRows
	}
	schedule.IsPublished, schedule.IsActive = published, active
	s.schedules[id] = schedule
	s.publishCall++
	return nil
}

// lessonMemoryStore keeps lessons and their detail rows in memory.
type lessonMemoryStore struct {
	mu        sync.Mutex
	details   []models.LessonDetail
	created   []models.Lesson
	updates   int
	updateErr error
}

func newLessonMemoryStore(details ...models.LessonDetail) *lessonMemoryStore {
	return &lessonMemoryStore{details: details}
}

func (s *lessonMemoryStore) Create(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lesson.ID == "" {
		lesson.ID = "lesson-new"
	}
	s.created = append(s.created, *lesson)
	return nil
}

func (s *lessonMemoryStore) BulkCreate(ctx context.Context, exec sqlx.ExtContext, lessons []models.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, lessons...)
	return nil
}

func (s *lessonMemoryStore) ListDetailedBySchedule(ctx context.Context, scheduleID string) ([]models.LessonDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.LessonDetail
	for _, d := range s.details {
		if d.ScheduleID == scheduleID {
			result = append(result, d)
		}
	}
	return result, nil
}

func (s *lessonMemoryStore) ListDetailedAtSlot(ctx context.Context, scheduleID string, day models.DayOfWeek, timeSlotID string) ([]models.LessonDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.LessonDetail
	for _, d := range s.details {
		if d.ScheduleID == scheduleID && d.DayOfWeek == day && d.TimeSlotID == timeSlotID {
			result = append(result, d)
		}
	}
	return result, nil
}

func (s *lessonMemoryStore) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Lesson
	for _, d := range s.details {
		if d.ScheduleID == scheduleID {
			result = append(result, d.Lesson)
		}
	}
	return result, nil
}

func (s *lessonMemoryStore) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.details {
		if d.ID == id {
			lesson := d.Lesson
			return &lesson, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *lessonMemoryStore) Update(ctx context.Context, lesson *models.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.details {
		if d.ID == lesson.ID {
			s.details[i].Lesson = *lesson
			s.updates++
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *lessonMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.details {
		if d.ID == id {
			s.details = append(s.details[:i], s.details[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

// UpdatePlacement moves a stored lesson, keeping shift and pair in sync with the slot.
func (s *lessonMemoryStore) UpdatePlacement(ctx context.Context, id string, day models.DayOfWeek, timeSlotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for i, d := range s.details {
		if d.ID != id {
			continue
		}
		for _, slot := range fixtureSlots() {
			if slot.ID == timeSlotID {
				s.details[i].Shift, s.details[i].PairNumber = slot.Shift, slot.PairNumber
			}
		}
		s.details[i].DayOfWeek, s.details[i].TimeSlotID = day, timeSlotID
		s.updates++
		return nil
	}
	return sql.ErrNoRows
}

func (s *lessonMemoryStore) snapshot() []models.LessonDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LessonDetail, len(s.details))
	copy(out, s.details)
	return out
}

type historyMemoryStore struct {
	mu      sync.Mutex
	entries []models.OptimizationHistory
}

func (s *historyMemoryStore) Create(ctx context.Context, entry *models.OptimizationHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *historyMemoryStore) ListBySchedule(ctx context.Context, scheduleID string) ([]models.OptimizationHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.OptimizationHistory
	for _, entry := range s.entries {
		if entry.ScheduleID == scheduleID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type penaltySettingsStub struct {
	settings *models.PenaltySettings
	err      error
}

func (s penaltySettingsStub) FindDefaultBySemester(ctx context.Context, semesterID string) (*models.PenaltySettings, error) {
	return s.settings, s.err
}

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
