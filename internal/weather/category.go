package weather

// Category is one of the fixed weather labels a visitor can vote for.
type Category string

const (
	Sun    Category = "sun"
	Rain   Category = "rain"
	Cloudy Category = "cloudy"
	Fog    Category = "fog"
	Snow   Category = "snow"
	Wind   Category = "wind"
	Storm  Category = "storm"
	Hail   Category = "hail"
)

// Categories lists every category in tally column order (A through H).
var Categories = [...]Category{Sun, Rain, Cloudy, Fog, Snow, Wind, Storm, Hail}

// Count is the width of the tally row.
const Count = len(Categories)

// Parse looks up a label. Matching is exact and case-sensitive.
func Parse(label string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == label {
			return c, true
		}
	}
	return "", false
}

// Index returns the column position of c in the tally row, or -1.
func (c Category) Index() int {
	for i, known := range Categories {
		if known == c {
			return i
		}
	}
	return -1
}

func (c Category) String() string {
	return string(c)
}
