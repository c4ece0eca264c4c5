package voices

// Voice is one prebuilt synthesis voice.
type Voice struct {
	Name   string `json:"name"`
	Gender string `json:"gender"` // "female" or "male"
	Trait  string `json:"trait"`
}

var catalog = []Voice{
	{Name: "Zephyr", Gender: "female", Trait: "Bright"},
	{Name: "Kore", Gender: "female", Trait: "Firm"},
	{Name: "Leda", Gender: "female", Trait: "Youthful"},
	{Name: "Aoede", Gender: "female", Trait: "Breezy"},
	{Name: "Callirrhoe", Gender: "female", Trait: "Easy-going"},
	{Name: "Autonoe", Gender: "female", Trait: "Bright"},
	{Name: "Umbriel", Gender: "female", Trait: "Easy-going"},
	{Name: "Despina", Gender: "female", Trait: "Smooth"},
	{Name: "Erinome", Gender: "female", Trait: "Clear"},
	{Name: "Laomedeia", Gender: "female", Trait: "Upbeat"},
	{Name: "Achernar", Gender: "female", Trait: "Soft"},
	{Name: "Pulcherrima", Gender: "female", Trait: "Forward"},
	{Name: "Achird", Gender: "female", Trait: "Friendly"},
	{Name: "Vindemiatrix", Gender: "female", Trait: "Gentle"},
	{Name: "Sadachbia", Gender: "female", Trait: "Lively"},
	{Name: "Sulafat", Gender: "female", Trait: "Warm"},
	{Name: "Puck", Gender: "male", Trait: "Upbeat"},
	{Name: "Charon", Gender: "male", Trait: "Informative"},
	{Name: "Fenrir", Gender: "male", Trait: "Excitable"},
	{Name: "Orus", Gender: "male", Trait: "Firm"},
	{Name: "Enceladus", Gender: "male", Trait: "Breathy"},
	{Name: "Iapetus", Gender: "male", Trait: "Clear"},
	{Name: "Algieba", Gender: "male", Trait: "Smooth"},
	{Name: "Algenib", Gender: "male", Trait: "Gravelly"},
	{Name: "Rasalgethi", Gender: "male", Trait: "Informative"},
	{Name: "Alnilam", Gender: "male", Trait: "Firm"},
	{Name: "Schedar", Gender: "male", Trait: "Even"},
	{Name: "Gacrux", Gender: "male", Trait: "Mature"},
	{Name: "Zubenelgenubi", Gender: "male", Trait: "Casual"},
	{Name: "Sadaltager", Gender: "male", Trait: "Knowledgeable"},
}

// Defaults picked when a request supplies only an "F"/"M" gender marker.
const (
	DefaultFemale = "Leda"
	DefaultMale   = "Puck"
)

// All returns the full catalog.
func All() []Voice {
	return append([]Voice(nil), catalog...)
}

// Lookup finds a catalog voice by name.
func Lookup(name string) (Voice, bool) {
	for _, v := range catalog {
		if v.Name == name {
			return v, true
		}
	}
	return Voice{}, false
}

// Resolve maps a request voice marker to a concrete catalog voice name.
// Markers are catalog names or the shorthands "F"/"M", which pick the
// default voice for that gender. Unknown markers fall back to the default
// female voice.
func Resolve(marker string) string {
	switch marker {
	case "F", "f":
		return DefaultFemale
	case "M", "m":
		return DefaultMale
	}
	if v, ok := Lookup(marker); ok {
		return v.Name
	}
	return DefaultFemale
}

// Describe returns the gender word used when building speaker instructions.
func Describe(marker string) string {
	switch marker {
	case "F", "f":
		return "female"
	case "M", "m":
		return "male"
	}
	if v, ok := Lookup(marker); ok {
		return v.Gender
	}
	return "unspecified gender"
}
