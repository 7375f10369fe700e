package user

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/clotrack/core"
)

var (
	allRolesTag = "allroles"

	// password policy
	pwdMinLen      = 8
	pwdMaxSim      = .7
	specialRegex   = regexp.MustCompile("[^A-Za-z0-9]")
	pwdMinLenText  = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)
	pwdNoSpaceText = "password must not contain whitespace"
	pwdAllNumText  = "password cannot be entirely numeric"
	pwdCplxText    = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers the user validations on validate.
func InitValidators(validate *validator.Validate) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
}

// Validate applies the struct tags then the password policy.
func (nu NewUser) Validate(validate *validator.Validate) error {
	if err := validate.Struct(nu); err != nil {
		return err
	}
	return CheckPasswordPolicy(nu.Password, nu.Name, nu.Email)
}

// allRolesValidation checks that provided user roles are all in AllRoles
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	known := append([]string{}, AllRoles...)
	sort.Strings(known)
	for _, role := range roles {
		idx := sort.SearchStrings(known, role)
		if idx == len(known) || known[idx] != role {
			return false
		}
	}
	return true
}

// CheckPasswordPolicy applies the password policy to pwd:
// - minLen: 8
// - no whitespace
// - not all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - not similar to the user's name or email
func CheckPasswordPolicy(pwd, name, email string) error {
	fail := func(text string) error {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: text})
	}

	if len(pwd) < pwdMinLen {
		return fail(pwdMinLenText)
	}

	var digitCount int
	var hasUpper, hasLower bool
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return fail(pwdNoSpaceText)
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		hasUpper = hasUpper || unicode.IsUpper(char)
		hasLower = hasLower || unicode.IsLower(char)
	}
	if digitCount == len(pwd) {
		return fail(pwdAllNumText)
	}
	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		return fail(pwdCplxText)
	}

	ratio := func(attr string) float64 {
		if attr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(pwd), ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
	}
	localPart := strings.SplitN(email, "@", 2)[0]
	if ratio(name) >= pwdMaxSim || ratio(email) >= pwdMaxSim || ratio(localPart) >= pwdMaxSim {
		return fail(pwdAttrSimText)
	}
	return nil
}
