package models

// Groups seeded by the initial migration.
const (
	GroupStudents = "students"
	GroupTeachers = "teachers"
)
