package domain

// Profile is the public face of a student, rendered on the profile page
// and used to enrich direct-room rows in the directory.
type Profile struct {
	UID      string
	Name     string
	RegNo    string
	Branch   string
	Year     string
	Batch    string
	Bio      string
	PhotoURL string
}

// DefaultAvatarURL is used whenever a profile has no photo or the
// profile lookup fails during directory enrichment.
const DefaultAvatarURL = "https://cdn-icons-png.flaticon.com/512/149/149071.png"

// DefaultDisplayName is the fallback room title when enrichment fails.
const DefaultDisplayName = "anonymous"
