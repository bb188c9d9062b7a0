package enums

import "fmt"

// CourseType distinguishes ordinary transports from medical ones.
type CourseType string

const (
	CourseTypeNormal  CourseType = "normal"
	CourseTypeMedical CourseType = "medical"
)

var validCourseTypes = []CourseType{
	CourseTypeNormal,
	CourseTypeMedical,
}

// String implements fmt.Stringer.
func (c CourseType) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CourseType) IsValid() bool {
	for _, candidate := range validCourseTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCourseType converts raw input into a CourseType.
func ParseCourseType(value string) (CourseType, error) {
	for _, candidate := range validCourseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid course type %q", value)
}
