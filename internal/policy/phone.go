package policy

import (
	"regexp"
	"sort"
	"strings"
)

const (
	subscriberDigits = 10
	minPhoneDigits   = 11
	maxPhoneDigits   = 14
)

const (
	MsgPhoneEmpty       = "Phone number cannot be empty"
	MsgPhoneNoCode      = "Phone number must include country code (e.g., +91 for India)"
	MsgPhoneNonDigit    = "Phone number can only contain digits after country code"
	MsgPhoneLength      = "Invalid phone number length (country code + 10 digits required)"
	MsgPhoneCountryCode = "Invalid country code or phone number must have exactly 10 digits after country code"
)

var phoneSeparators = regexp.MustCompile(`[\s\-()]`)

// countryCodes is the allow-list of calling codes, longest first.
var countryCodes = func() []string {
	codes := []string{
		"1", "7", "20", "27", "30", "31", "32", "33", "34", "36", "39", "40", "41", "43", "44", "45",
		"46", "47", "48", "49", "51", "52", "53", "54", "55", "56", "57", "58", "60", "61", "62", "63",
		"64", "65", "66", "81", "82", "84", "86", "90", "91", "92", "93", "94", "95", "98",
		"212", "213", "216", "218", "220", "221", "222", "223", "224", "225", "226", "227", "228", "229",
		"230", "231", "232", "233", "234", "235", "236", "237", "238", "239", "240", "241", "242", "243",
		"244", "245", "246", "248", "249", "250", "251", "252", "253", "254", "255", "256", "257", "258",
		"260", "261", "262", "263", "264", "265", "266", "267", "268", "269", "290", "291", "297", "298",
		"299", "350", "351", "352", "353", "354", "355", "356", "357", "358", "359", "370", "371", "372",
		"373", "374", "375", "376", "377", "378", "380", "381", "382", "383", "385", "386", "387", "389",
		"420", "421", "423", "500", "501", "502", "503", "504", "505", "506", "507", "508", "509", "590",
		"591", "592", "593", "594", "595", "596", "597", "598", "599", "670", "672", "673", "674", "675",
		"676", "677", "678", "679", "680", "681", "682", "683", "684", "685", "686", "687", "688", "689",
		"690", "691", "692", "850", "852", "853", "855", "856", "880", "886", "960", "961", "962", "963",
		"964", "965", "966", "967", "968", "970", "971", "972", "973", "974", "975", "976", "977", "992",
		"993", "994", "995", "996", "998",
	}
	sort.SliceStable(codes, func(i, j int) bool { return len(codes[i]) > len(codes[j]) })
	return codes
}()

// CheckPhone validates an international number: "+", a known calling code,
// then exactly ten subscriber digits. Spaces, hyphens and parentheses are
// ignored.
func CheckPhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return violation("phone", MsgPhoneEmpty)
	}

	cleaned := phoneSeparators.ReplaceAllString(phone, "")
	if !strings.HasPrefix(cleaned, "+") {
		return violation("phone", MsgPhoneNoCode)
	}

	digits := cleaned[1:]
	if !allDigits(digits) {
		return violation("phone", MsgPhoneNonDigit)
	}
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return violation("phone", MsgPhoneLength)
	}

	for _, code := range countryCodes {
		if strings.HasPrefix(digits, code) && len(digits)-len(code) == subscriberDigits {
			return nil
		}
	}
	return violation("phone", MsgPhoneCountryCode)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
