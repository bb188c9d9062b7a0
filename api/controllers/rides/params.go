package rides

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/courseshare/courseshare-backend/api/validators"
	"github.com/courseshare/courseshare-backend/internal/rides"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
)

func listParams(r *http.Request) (rides.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
	if err != nil {
		return rides.ListParams{}, err
	}
	date, err := validators.ParseQueryDate(r, "date")
	if err != nil {
		return rides.ListParams{}, err
	}

	params := rides.ListParams{
		Department: validators.QueryDepartment(r, "department"),
		Date:       date,
		Limit:      limit,
		Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("course_type")); raw != "" {
		courseType, err := enums.ParseCourseType(raw)
		if err != nil {
			return rides.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid course_type")
		}
		params.CourseType = courseType
	}
	return params, nil
}

func chiParam(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}
