// Package refdata holds the process-lifetime reference tables shared by
// all step definitions: the country/nationality code table the remote
// form uses in its select elements, and month abbreviations for split
// dates. Tables are built once and are read-only afterwards; steps hold
// references instead of repeating the literals.
package refdata

import "sync"

var (
	once      sync.Once
	countries map[string]string
	months    [13]string
)

func build() {
	countries = map[string]string{
		"AFGHANISTAN":          "AFGH",
		"ALBANIA":              "ALB",
		"ALGERIA":              "ALGR",
		"ARGENTINA":            "ARG",
		"AUSTRALIA":            "ASTL",
		"AUSTRIA":              "AUST",
		"BANGLADESH":           "BANG",
		"BELGIUM":              "BELG",
		"BRAZIL":               "BRZL",
		"CAMEROON":             "CMRN",
		"CANADA":               "CAN",
		"CHILE":                "CHIL",
		"CHINA":                "CHIN",
		"COLOMBIA":             "COL",
		"CUBA":                 "CUBA",
		"DENMARK":              "DEN",
		"ECUADOR":              "ECUA",
		"EGYPT":                "EGYP",
		"ETHIOPIA":             "ETH",
		"FRANCE":               "FRAN",
		"GERMANY":              "GER",
		"GHANA":                "GHAN",
		"GREECE":               "GRC",
		"INDIA":                "IND",
		"INDONESIA":            "IDSA",
		"IRAN":                 "IRAN",
		"IRAQ":                 "IRAQ",
		"IRELAND":              "IRE",
		"ISRAEL":               "ISRL",
		"ITALY":                "ITLY",
		"JAPAN":                "JPN",
		"JORDAN":               "JORD",
		"KENYA":                "KENY",
		"MEXICO":               "MEX",
		"MOROCCO":              "MORO",
		"NEPAL":                "NEP",
		"NETHERLANDS":          "NETH",
		"NEW ZEALAND":          "NZLD",
		"NIGERIA":              "NRA",
		"NORWAY":               "NORW",
		"PAKISTAN":             "PKST",
		"PERU":                 "PERU",
		"PHILIPPINES":          "PHIL",
		"POLAND":               "POL",
		"PORTUGAL":             "PORT",
		"ROMANIA":              "ROM",
		"RUSSIA":               "RUS",
		"SAUDI ARABIA":         "SARB",
		"SINGAPORE":            "SING",
		"SOUTH AFRICA":         "SAFR",
		"SOUTH KOREA":          "KOR",
		"SPAIN":                "SPN",
		"SRI LANKA":            "SRL",
		"SWEDEN":               "SWDN",
		"SWITZERLAND":          "SWTZ",
		"THAILAND":             "THAI",
		"TURKEY":               "TRKY",
		"UGANDA":               "UGAN",
		"UKRAINE":              "UKR",
		"UNITED ARAB EMIRATES": "UAE",
		"UNITED KINGDOM":       "GRBR",
		"UNITED STATES":        "USA",
		"VENEZUELA":            "VENZ",
		"VIETNAM":              "VTNM",
	}

	months = [13]string{"", "JAN", "FEB", "MAR", "APR", "MAY", "JUN",
		"JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}
}

// Countries returns the country-name-to-code table used by the remote
// form's nationality and country selects. The returned map must be
// treated as read-only.
func Countries() map[string]string {
	once.Do(build)
	return countries
}

// CountryCode resolves a country name (upper-cased) to the remote form's
// option code. Unknown names return the input unchanged so the remote
// site's own validation stays authoritative.
func CountryCode(name string) string {
	once.Do(build)
	if code, ok := countries[name]; ok {
		return code
	}
	return name
}

// MonthAbbrev returns the remote form's month option value for a month
// number in [1,12]. Out-of-range input returns the empty string.
func MonthAbbrev(m int) string {
	once.Do(build)
	if m < 1 || m > 12 {
		return ""
	}
	return months[m]
}
