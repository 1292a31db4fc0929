package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"davos_stays/models"
)

var (
	priceTokenRegex  = regexp.MustCompile(`\d[\d'’,.]*`)
	thousandsComma   = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	thousandsDot     = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	meterRegex       = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:meters?|metres?|mtrs?|m)(?:[^a-z]|$)`)
	kilometerRegex   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:km|kilometers?|kilometres?)\b`)
	bareNumberRegex  = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	firstDigitsRegex = regexp.MustCompile(`\d+`)
)

// ParsePrice extracts an amount from a price cell such as "CHF 1'200.-".
// Prices quoted per night are converted to a weekly figure.
func ParsePrice(c models.Cell) *float64 {
	if c.IsNum {
		if c.Num < 0 {
			return nil
		}
		v := c.Num
		return &v
	}

	text := strings.TrimSpace(c.Text)
	if text == "" || strings.EqualFold(text, "n/a") {
		return nil
	}

	// Only the first line that carries a number counts.
	line := text
	if strings.ContainsAny(text, "\r\n") {
		line = ""
		for _, l := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
			if priceTokenRegex.MatchString(l) {
				line = l
				break
			}
		}
	}

	token := priceTokenRegex.FindString(line)
	if token == "" {
		return nil
	}

	v, ok := parseAmount(token)
	if !ok {
		return nil
	}
	if strings.Contains(strings.ToLower(line), "night") {
		v *= 7
	}
	return &v
}

// parseAmount reads "1'000", "50,000", "1.200,50" or "18000.00" style numbers.
func parseAmount(token string) (float64, bool) {
	token = strings.NewReplacer("'", "", "’", "").Replace(token)
	token = strings.TrimRight(token, ".,")

	hasComma := strings.Contains(token, ",")
	hasDot := strings.Contains(token, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(token, ".") > strings.LastIndex(token, ",") {
			token = strings.ReplaceAll(token, ",", "")
		} else {
			token = strings.ReplaceAll(token, ".", "")
			token = strings.ReplaceAll(token, ",", ".")
		}
	case hasComma:
		if thousandsComma.MatchString(token) {
			token = strings.ReplaceAll(token, ",", "")
		} else {
			token = strings.Replace(token, ",", ".", 1)
			token = strings.ReplaceAll(token, ",", "")
		}
	case hasDot:
		if thousandsDot.MatchString(token) {
			token = strings.ReplaceAll(token, ".", "")
		} else if strings.Count(token, ".") > 1 {
			return 0, false
		}
	}

	v, err := strconv.ParseFloat(token, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseDistance returns a distance in kilometers. Negative values are
// treated as missing.
//
// Bare numbers are ambiguous: values above 10 are taken as kilometers and
// anything else as meters. The spreadsheet never states a unit for them, so
// this is an approximation that domain owners should confirm.
func ParseDistance(c models.Cell) *float64 {
	if c.IsNum {
		if c.Num < 0 {
			return nil
		}
		v := bareDistance(c.Num)
		return &v
	}

	text := strings.ToLower(strings.TrimSpace(c.Text))
	if text == "" || text == "n/a" {
		return nil
	}

	if m := meterRegex.FindStringSubmatch(text); m != nil {
		if v, ok := parseDecimal(m[1]); ok {
			v /= 1000
			return &v
		}
	}
	if m := kilometerRegex.FindStringSubmatch(text); m != nil {
		if v, ok := parseDecimal(m[1]); ok {
			return &v
		}
	}
	if m := bareNumberRegex.FindString(text); m != "" {
		if v, ok := parseDecimal(m); ok {
			v = bareDistance(v)
			return &v
		}
	}
	return nil
}

func bareDistance(v float64) float64 {
	if v > 10 {
		return v
	}
	return v / 1000
}

func parseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseInt accepts numeric cells directly and otherwise takes the first run
// of digits, so "34 hotel rooms" yields 34.
func ParseInt(c models.Cell) *int {
	if c.IsNum {
		v := int(c.Num)
		return &v
	}
	m := firstDigitsRegex.FindString(c.Text)
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &v
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
