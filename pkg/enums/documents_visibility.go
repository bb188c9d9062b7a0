package enums

// DocumentsVisibility controls whether a ride's files are exposed to the taker.
type DocumentsVisibility string

const (
	DocumentsHidden  DocumentsVisibility = "hidden"
	DocumentsVisible DocumentsVisibility = "visible"
)

// IsValid reports whether the value is known.
func (v DocumentsVisibility) IsValid() bool {
	return v == DocumentsHidden || v == DocumentsVisible
}
