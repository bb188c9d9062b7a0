package enums

// UsageKind selects which monthly counter an increment applies to.
type UsageKind string

const (
	UsagePublished UsageKind = "published"
	UsageAccepted  UsageKind = "accepted"
)

// Column returns the usage_ledger column backing the counter.
func (k UsageKind) Column() (string, bool) {
	switch k {
	case UsagePublished:
		return "published_count", true
	case UsageAccepted:
		return "accepted_count", true
	default:
		return "", false
	}
}
