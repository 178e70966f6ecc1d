package spn

// Profile selects the built-in operator table.
type Profile string

const (
	ProfileDefault   Profile = "default"
	ProfileSoutheast Profile = "southeast"
)

// ParseProfile maps a configuration value to a Profile. Unknown values fall
// back to ProfileDefault.
func ParseProfile(s string) Profile {
	if Profile(s) == ProfileSoutheast {
		return ProfileSoutheast
	}
	return ProfileDefault
}

type operatorName struct {
	long  string
	short string
}

var (
	chinaMobile  = operatorName{long: "China Mobile", short: "CMCC"}
	chinaUnicom  = operatorName{long: "China Unicom", short: "UNICOM"}
	chinaTelecom = operatorName{long: "China Telecom", short: "CTCC"}
	testLong     = operatorName{long: "Test PLMN 1-1"}
	testShort    = operatorName{short: "Test1-1"}
	testLong2    = operatorName{long: "Test PLMN 2", short: "Test2"}
)

var defaultOperators = map[string]operatorName{
	"46000": chinaMobile,
	"46002": chinaMobile,
	"46007": chinaMobile,
	"46008": chinaMobile,
	"46001": chinaUnicom,
	"46009": chinaUnicom,
	"46003": chinaTelecom,
	"46601": {long: "Far EasTone", short: "FET"},
	"46692": {long: "Chunghwa Telecom", short: "Chunghwa"},
	"46697": {long: "Taiwan Mobile", short: "TWM"},
	"99997": testShort,
	"99998": testLong,
	"99999": testLong2,
}

var southeastOperators = map[string]operatorName{
	"46601": {long: "FarEasTone", short: "FET"},
	"46692": {long: "Chunghwa", short: "CHT"},
	"46697": {long: "TW Mobile", short: "TWM"},
	"46689": {long: "T Star", short: "T Star"},
	"45412": {long: "CMHK", short: "CMHK"},
	"45413": {long: "CMHK", short: "CMHK"},
	"46000": chinaMobile,
	"46002": chinaMobile,
	"46007": chinaMobile,
	"46008": chinaMobile,
	"46001": chinaUnicom,
	"46009": chinaUnicom,
	"46003": chinaTelecom,
	"99997": testShort,
	"99998": testLong,
	"99999": testLong2,
}

// builtinName looks numeric up in the profile's table. Entries that only
// carry one form miss for the other.
func builtinName(p Profile, numeric string, longForm bool) (string, bool) {
	table := defaultOperators
	if p == ProfileSoutheast {
		table = southeastOperators
	}
	op, ok := table[numeric]
	if !ok {
		return "", false
	}
	name := op.short
	if longForm {
		name = op.long
	}
	return name, name != ""
}
