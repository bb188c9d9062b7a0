package stripe

// Metadata keys stamped on Stripe objects.
const (
	MetadataUserID = "user_id"
	MetadataPlanID = "plan_id"
)
