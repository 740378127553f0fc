package charts

// owidToMapName translates OWID location names to the country names the
// echarts world map understands. The map asset derives from Natural
// Earth, which abbreviates several names and spells a few differently.
// Locations not listed here pass through unchanged.
var owidToMapName = map[string]string{
	"United States":                "United States of America",
	"Democratic Republic of Congo": "Dem. Rep. Congo",
	"Central African Republic":     "Central African Rep.",
	"Czechia":                      "Czech Rep.",
	"Dominican Republic":           "Dominican Rep.",
	"Equatorial Guinea":            "Eq. Guinea",
	"Eswatini":                     "Swaziland",
	"Laos":                         "Lao PDR",
	"North Macedonia":              "Macedonia",
	"South Sudan":                  "S. Sudan",
	"Solomon Islands":              "Solomon Is.",
	"Timor":                        "Timor-Leste",
	"Cote d'Ivoire":                "Côte d'Ivoire",
	"Western Sahara":               "W. Sahara",
	"Bosnia and Herzegovina":       "Bosnia and Herz.",
	"North Korea":                  "Dem. Rep. Korea",
	"South Korea":                  "Korea",
	"Tanzania":                     "United Republic of Tanzania",
	"Serbia":                       "Republic of Serbia",
	"Guinea-Bissau":                "Guinea Bissau",
	"Falkland Islands":             "Falkland Is.",
}

// mapName returns the echarts world-map name for an OWID location.
func mapName(location string) string {
	if name, ok := owidToMapName[location]; ok {
		return name
	}
	return location
}
