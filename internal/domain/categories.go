package domain

// AllowedCategories is the fixed label set the classifier must choose from.
// Order matters only for prompt construction.
var AllowedCategories = []string{
	"Comedy Scene",
	"Trivia & Quiz Nights",
	"Live Music Performances",
	"Theatre Productions",
	"Dance Classes & Socials",
	"Museum Exhibitions",
	"Camps & Kids Programs",
	"Farmers Markets & Food Markets",
	"Movie Screenings",
	"Fitness",
	"Walking & Bus Tours",
	"Interactive Dining Experiences",
	"Escape Rooms & Immersive Games",
	"Cultural Festivals",
	"Craft Workshops",
	"Sports Leagues & Activities",
	"Drag & Cabaret Shows",
	"Language & Cultural Exchange",
	"Professional Networking",
	"Seniors Programs",
	"Art Gallery Openings",
	"Patio & Rooftop Events",
	"Board Game Nights",
}

// DefaultExcludedCategories are dropped from the published schema. Events
// in these categories are still classified and cached, only filtered at
// the end, so a config change takes effect without re-classification.
var DefaultExcludedCategories = []string{
	"Camps & Kids Programs",
	"Seniors Programs",
}
