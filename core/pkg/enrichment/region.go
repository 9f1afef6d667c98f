package enrichment

// US Census regions.
const (
	RegionNortheast = "Northeast"
	RegionSouth     = "South"
	RegionMidwest   = "Midwest"
	RegionWest      = "West"
)

var stateRegions = map[string]string{
	"AL": RegionSouth, "AK": RegionWest, "AZ": RegionWest, "AR": RegionSouth,
	"CA": RegionWest, "CO": RegionWest, "CT": RegionNortheast, "DC": RegionSouth,
	"DE": RegionSouth, "FL": RegionSouth, "GA": RegionSouth, "HI": RegionWest,
	"ID": RegionWest, "IL": RegionMidwest, "IN": RegionMidwest, "IA": RegionMidwest,
	"KS": RegionMidwest, "KY": RegionSouth, "LA": RegionSouth, "ME": RegionNortheast,
	"MD": RegionSouth, "MA": RegionNortheast, "MI": RegionMidwest, "MN": RegionMidwest,
	"MS": RegionSouth, "MO": RegionMidwest, "MT": RegionWest, "NE": RegionMidwest,
	"NV": RegionWest, "NH": RegionNortheast, "NJ": RegionNortheast, "NM": RegionWest,
	"NY": RegionNortheast, "NC": RegionSouth, "ND": RegionMidwest, "OH": RegionMidwest,
	"OK": RegionSouth, "OR": RegionWest, "PA": RegionNortheast, "RI": RegionNortheast,
	"SC": RegionSouth, "SD": RegionMidwest, "TN": RegionSouth, "TX": RegionSouth,
	"UT": RegionWest, "VT": RegionNortheast, "VA": RegionSouth, "WA": RegionWest,
	"WV": RegionSouth, "WI": RegionMidwest, "WY": RegionWest,
}

// Region returns the census region of a 2-letter state code. Territories and
// unknown codes report false.
func Region(stateCode string) (string, bool) {
	region, ok := stateRegions[stateCode]
	return region, ok
}

// ExperienceBucket groups years of experience into reporting bands.
func ExperienceBucket(years int) string {
	switch {
	case years <= 2:
		return "0-2 yrs"
	case years <= 5:
		return "3-5 yrs"
	case years <= 10:
		return "6-10 yrs"
	case years <= 15:
		return "11-15 yrs"
	default:
		return ">15 yrs"
	}
}
