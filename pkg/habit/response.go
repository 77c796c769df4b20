package habit

import (
	"fmt"
	"strconv"
	"strings"
)

type ResponseType string

const (
	YesNoType   ResponseType = "yes_no"
	ScaleType   ResponseType = "scale"
	NumericType ResponseType = "numeric"
)

// Response is the closed set of entry value shapes. Each case validates raw
// input into its canonical stored form and renders stored values for display.
type Response interface {
	Type() ResponseType
	Label() string
	Validate(raw string) (string, error)
	Display(stored string) string
	Score(stored string) float64
	sealed()
}

type YesNo struct{}
type Scale struct{}
type Numeric struct{}

// Response returns the variant for t.
func (t ResponseType) Response() (Response, error) {
	switch t {
	case YesNoType:
		return YesNo{}, nil
	case ScaleType:
		return Scale{}, nil
	case NumericType:
		return Numeric{}, nil
	}
	return nil, &ValidationError{Field: "response_type", Msg: fmt.Sprintf("unknown response type %q", string(t))}
}

func (YesNo) Type() ResponseType { return YesNoType }
func (YesNo) Label() string      { return "Yes/No" }
func (YesNo) sealed()            {}

func (YesNo) Validate(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return "true", nil
	case "false", "no", "0":
		return "false", nil
	}
	return "", &ValidationError{Field: "value", Msg: "must be true or false"}
}

func (YesNo) Display(stored string) string {
	if stored == "true" {
		return "Completed ✓"
	}
	return "Not completed ✗"
}

func (YesNo) Score(stored string) float64 {
	if strings.EqualFold(stored, "true") {
		return 1
	}
	return 0
}

func (Scale) Type() ResponseType { return ScaleType }
func (Scale) Label() string      { return "Scale (1-10)" }
func (Scale) sealed()            {}

func (Scale) Validate(raw string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > 10 {
		return "", &ValidationError{Field: "value", Msg: "must be an integer between 1 and 10"}
	}
	return strconv.Itoa(n), nil
}

func (Scale) Display(stored string) string {
	return fmt.Sprintf("Rating: %s/10", stored)
}

func (Scale) Score(stored string) float64 {
	return parseScore(stored)
}

func (Numeric) Type() ResponseType { return NumericType }
func (Numeric) Label() string      { return "Numeric Input" }
func (Numeric) sealed()            {}

func (Numeric) Validate(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", &ValidationError{Field: "value", Msg: "must not be empty"}
	}
	return v, nil
}

func (Numeric) Display(stored string) string {
	return "Value: " + stored
}

func (Numeric) Score(stored string) float64 {
	return parseScore(stored)
}

func parseScore(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// DisplayValue renders a stored entry value for the given habit. Unknown
// response types fall back to the numeric rendering.
func DisplayValue(h Habit, stored string) string {
	r, err := h.ResponseType.Response()
	if err != nil {
		r = Numeric{}
	}
	return r.Display(stored)
}
