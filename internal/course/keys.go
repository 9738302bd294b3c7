package course

import "strings"

// ActiveCourseKey storage key of the selected course id
const ActiveCourseKey = "CURRENT_COURSE_ID"

// ProgressionKey storage key of the serialized progression of course id, eg. EN_COURSE_PROGRESS
func ProgressionKey(id CourseID) string {
	return strings.ToUpper(string(id)) + "_COURSE_PROGRESS"
}
