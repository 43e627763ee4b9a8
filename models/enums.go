package models

// Closed enumerations. Inputs referencing these must be exact members or the
// operation fails.

var Sports = []string{
	"Basketball",
	"Soccer",
	"Tennis",
	"Football",
	"Volleyball",
	"Badminton",
	"Softball",
	"Pickleball",
	"Ultimate Frisbee",
	"Other",
}

var SkillLevels = []string{
	"Beginner",
	"Intermediate",
	"Advanced",
}

// SkillBuckets are the per-user proficiency buckets a filter search may be
// scoped to. "any" spans all three.
var SkillBuckets = []string{"any", "advanced", "intermediate", "beginner"}

// StateCities maps a state code to its accepted cities.
var StateCities = map[string][]string{
	"CA": {"Los Angeles", "San Diego", "San Jose", "San Francisco", "Sacramento", "Oakland"},
	"NY": {"New York", "Buffalo", "Rochester", "Syracuse", "Albany", "Yonkers"},
	"NJ": {"Newark", "Jersey City", "Paterson", "Elizabeth", "Hoboken", "Trenton"},
	"TX": {"Houston", "San Antonio", "Dallas", "Austin", "Fort Worth", "El Paso"},
	"IL": {"Chicago", "Aurora", "Naperville", "Joliet", "Rockford", "Springfield"},
	"FL": {"Jacksonville", "Miami", "Tampa", "Orlando", "St. Petersburg", "Tallahassee"},
	"PA": {"Philadelphia", "Pittsburgh", "Allentown", "Erie", "Reading", "Scranton"},
	"WA": {"Seattle", "Spokane", "Tacoma", "Vancouver", "Bellevue", "Everett"},
	"MA": {"Boston", "Worcester", "Springfield", "Cambridge", "Lowell", "Brockton"},
	"CO": {"Denver", "Colorado Springs", "Aurora", "Fort Collins", "Lakewood", "Boulder"},
}

func ValidSport(name string) bool {
	return contains(Sports, name)
}

func ValidSkillLevel(level string) bool {
	return contains(SkillLevels, level)
}

func ValidSkillBucket(bucket string) bool {
	return contains(SkillBuckets, bucket)
}

func ValidState(state string) bool {
	_, ok := StateCities[state]
	return ok
}

// ValidCity reports whether city is an accepted city of state. A city name is
// only meaningful relative to its state.
func ValidCity(state, city string) bool {
	return contains(StateCities[state], city)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
