package checker

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Feedback messages.
const (
	msgAnswerError    = "Error checking answer. Please try again."
	msgExerciseError  = "Error checking exercise. Please try again."
	msgPlaceholders   = "Please replace all placeholder values (___, TODO, <...>) before checking."
	msgMissingKeys    = "Missing required settings: %s."
	msgOutOfRange     = "Some values are outside reasonable ranges: %s."
	msgInvalidFormat  = "Invalid configuration format."
	msgConfigOK       = "Configuration looks good! All risk limits are within reasonable ranges."
	msgIncomplete     = "Implementation incomplete. Missing: %s."
	msgAlgorithmOK    = "Great job! Your implementation computes the bands correctly."
	msgUnknownChecker = "This exercise cannot be checked."
)

var placeholderRe = regexp.MustCompile(`___|\bTODO\b|<[A-Z][A-Z0-9_]*>`)

// Result is the outcome of a structural check.
type Result struct {
	OK      bool
	Message string
}

type bound struct {
	key string
	max float64
}

var (
	requiredConfigKeys = []string{
		"position_limits",
		"max_position_size",
		"max_portfolio_exposure",
		"loss_limits",
		"max_daily_loss",
		"max_drawdown",
	}

	// Each value must lie in (0, max].
	configBounds = []bound{
		{"max_position_size", 1000},
		{"max_portfolio_exposure", 1},
		{"max_daily_loss", 10000},
		{"max_drawdown", 1},
	}
)

var (
	keyRes   = make(map[string]*regexp.Regexp)
	valueRes = make(map[string]*regexp.Regexp)
)

func init() {
	for _, key := range requiredConfigKeys {
		keyRes[key] = regexp.MustCompile(`\b` + key + `["']?\s*[:=]`)
	}
	for _, b := range configBounds {
		valueRes[b.key] = regexp.MustCompile(`\b` + b.key + `["']?\s*[:=]\s*["']?([^\s,"'#}]+)`)
	}
}

// normalize folds compatibility characters such as full-width digits and
// colons so they match the ASCII patterns.
func normalize(text string) string {
	return norm.NFKC.String(text)
}

// HasPlaceholders reports whether text still contains template markers.
func HasPlaceholders(text string) bool {
	return placeholderRe.MatchString(normalize(text))
}

// CheckConfigurationText validates a risk configuration structurally.
func CheckConfigurationText(text string) Result {
	text = normalize(text)
	if placeholderRe.MatchString(text) {
		return Result{Message: msgPlaceholders}
	}

	var missing []string
	for _, key := range requiredConfigKeys {
		if !keyRes[key].MatchString(text) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Result{Message: fmt.Sprintf(msgMissingKeys, strings.Join(missing, ", "))}
	}

	var outside []string
	for _, b := range configBounds {
		v, err := configValue(text, b.key)
		if err != nil {
			return Result{Message: msgInvalidFormat}
		}
		if v <= 0 || v > b.max {
			outside = append(outside, b.key)
		}
	}
	if len(outside) > 0 {
		return Result{Message: fmt.Sprintf(msgOutOfRange, strings.Join(outside, ", "))}
	}
	return Result{OK: true, Message: msgConfigOK}
}

func configValue(text, key string) (float64, error) {
	m := valueRes[key].FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("no value for %s", key)
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], "_", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not a finite number", key)
	}
	return v, nil
}

type requirement struct {
	name string
	re   *regexp.Regexp
}

var algorithmRequirements = []requirement{
	{"moving average", regexp.MustCompile(`(?i)rolling\s*\(|\.mean\s*\(|np\.mean|moving_average|\bsma\b|\bma\s*=`)},
	{"standard deviation", regexp.MustCompile(`(?i)\.std\s*\(|np\.std|stdev|std_dev|standard_deviation|\bstd\s*=`)},
	{"upper_band", regexp.MustCompile(`\bupper_band\s*=`)},
	{"lower_band", regexp.MustCompile(`\blower_band\s*=`)},
}

// CheckAlgorithmText checks that a band implementation computes every
// required quantity. User code is never executed.
func CheckAlgorithmText(text string) Result {
	text = normalize(text)
	if placeholderRe.MatchString(text) {
		return Result{Message: msgPlaceholders}
	}

	var missing []string
	for _, r := range algorithmRequirements {
		if !r.re.MatchString(text) {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return Result{Message: fmt.Sprintf(msgIncomplete, strings.Join(missing, ", "))}
	}
	return Result{OK: true, Message: msgAlgorithmOK}
}
