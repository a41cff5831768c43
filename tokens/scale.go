package tokens

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// tshirtLadder covers iterations 0..5; sizes beyond either end get an
// extra-size form (3XL / XXXL style, per ExtraPrefix).
var tshirtLadder = []string{"XS", "S", "M", "L", "XL", "XXL"}

// Label maps an integer iteration value to its human scale label.
//
// Numeric scales anchor DefaultValue at iteration 0 and walk up by
// IncreasingStep and down by DecreasingStep, e.g. default 100 / +100 / -25
// yields ... 50, 75, 100, 200, 300 ...
func (m *LogicalMapping) Label(iteration int) string {
	switch m.ScaleType {
	case ScaleTShirt:
		return m.tshirtLabel(iteration)
	default:
		return strconv.Itoa(m.numericValue(iteration))
	}
}

func (m *LogicalMapping) numericValue(iteration int) int {
	if iteration >= 0 {
		return m.DefaultValue + iteration*m.IncreasingStep
	}
	return m.DefaultValue + iteration*m.DecreasingStep
}

func (m *LogicalMapping) tshirtLabel(iteration int) string {
	if iteration >= 0 && iteration < len(tshirtLadder) {
		return tshirtLadder[iteration]
	}
	if iteration >= len(tshirtLadder) {
		extra := iteration - 3 // XL is 1 "X" at iteration 4
		if m.ExtraPrefix == "X" {
			return strings.Repeat("X", extra) + "L"
		}
		return strconv.Itoa(extra) + "XL"
	}
	extra := 1 - iteration // XS is 1 "X" at iteration 0
	if m.ExtraPrefix == "X" {
		return strings.Repeat("X", extra) + "S"
	}
	return strconv.Itoa(extra) + "XS"
}

var (
	extraXLRx = regexp.MustCompile(`^(\d+)XL$`)
	extraXSRx = regexp.MustCompile(`^(\d+)XS$`)
	repeatRx  = regexp.MustCompile(`^(X+)([LS])$`)
)

// Iteration inverts Label, recovering the integer iteration value a token
// was generated with from its recorded scale label.
func (m *LogicalMapping) Iteration(label string) (int, error) {
	switch m.ScaleType {
	case ScaleTShirt:
		return tshirtIteration(label)
	default:
		return m.numericIteration(label)
	}
}

func (m *LogicalMapping) numericIteration(label string) (int, error) {
	v, err := strconv.Atoi(label)
	if err != nil {
		return 0, errors.Wrapf(ErrBadLabel, "%q is not a numeric scale label", label)
	}
	diff := v - m.DefaultValue
	switch {
	case diff == 0:
		return 0, nil
	case diff > 0:
		if m.IncreasingStep <= 0 || diff%m.IncreasingStep != 0 {
			return 0, errors.Wrapf(ErrBadLabel, "%q does not land on the increasing scale", label)
		}
		return diff / m.IncreasingStep, nil
	default:
		if m.DecreasingStep <= 0 || (-diff)%m.DecreasingStep != 0 {
			return 0, errors.Wrapf(ErrBadLabel, "%q does not land on the decreasing scale", label)
		}
		return diff / m.DecreasingStep, nil
	}
}

func tshirtIteration(label string) (int, error) {
	for i, name := range tshirtLadder {
		if name == label {
			return i, nil
		}
	}
	if match := extraXLRx.FindStringSubmatch(label); match != nil {
		n, _ := strconv.Atoi(match[1])
		return n + 3, nil
	}
	if match := extraXSRx.FindStringSubmatch(label); match != nil {
		n, _ := strconv.Atoi(match[1])
		return 1 - n, nil
	}
	if match := repeatRx.FindStringSubmatch(label); match != nil {
		n := len(match[1])
		if match[2] == "L" {
			return n + 3, nil
		}
		return 1 - n, nil
	}
	return 0, errors.Wrapf(ErrBadLabel, "%q is not a t-shirt size", label)
}

// Slug normalizes an algorithm name into the prefix its generated token
// display names carry.
func Slug(name string) string {
	out := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(out, " ", "-")
}

// ScaleLabelOf extracts the scale label a generated token carries in its
// display name. Generated names are Slug(algorithmName) + "-" + label, and a
// numeric label can itself begin with a dash, so the known prefix is stripped
// rather than splitting at a dash. Names missing the prefix (the algorithm
// was renamed) fall back to the segment after the final dash.
func ScaleLabelOf(algorithmName, displayName string) string {
	prefix := Slug(algorithmName) + "-"
	if strings.HasPrefix(displayName, prefix) {
		return displayName[len(prefix):]
	}
	if i := strings.LastIndexByte(displayName, '-'); i >= 0 {
		return displayName[i+1:]
	}
	return displayName
}
