package calendar

import (
	"strconv"

	"github.com/brk3/habitcal/pkg/habit"
)

const (
	ColorPast   = "#4CAF50"
	ColorFuture = "#2196F3"
	ColorMixed  = "#4A55A2"
)

type Dot struct {
	Key   string `json:"key"`
	Color string `json:"color"`
}

// Marking is the display annotation of one calendar date.
type Marking struct {
	Text          string `json:"text,omitempty"`
	TextColor     string `json:"textColor,omitempty"`
	Dots          []Dot  `json:"dots"`
	Selected      bool   `json:"selected,omitempty"`
	SelectedColor string `json:"selectedColor,omitempty"`
}

// Merge combines entry counts and reminder projections into one marking per
// date. Entry counts are green. Projections are blue and only annotate today
// or later; today with both shows "<past> • <future>" in the mixed color.
// Each projected habit adds a dot keyed by date and habit name.
func Merge(counts map[string]int, projections map[string]Projection, today string) map[string]Marking {
	out := make(map[string]Marking, len(counts)+len(projections))

	for date, n := range counts {
		out[date] = Marking{
			Text:      strconv.Itoa(n),
			TextColor: ColorPast,
			Dots:      []Dot{},
		}
	}

	for date, p := range projections {
		if habit.Classify(date, today) == habit.Past {
			continue
		}
		m, ok := out[date]
		if !ok {
			m = Marking{Dots: []Dot{}}
		}

		future := strconv.Itoa(p.Count)
		if date == today && m.Text != "" {
			m.Text = m.Text + " • " + future
			m.TextColor = ColorMixed
		} else {
			m.Text = future
			m.TextColor = ColorFuture
		}

		for _, name := range p.Habits {
			m.Dots = appendDot(m.Dots, Dot{Key: date + "-" + name, Color: ColorFuture})
		}
		out[date] = m
	}
	return out
}

func appendDot(dots []Dot, d Dot) []Dot {
	for _, existing := range dots {
		if existing.Key == d.Key {
			return dots
		}
	}
	return append(dots, d)
}

// Select returns a copy of markings with date flagged as selected.
func Select(markings map[string]Marking, date string) map[string]Marking {
	out := make(map[string]Marking, len(markings)+1)
	for k, v := range markings {
		out[k] = v
	}
	if date == "" {
		return out
	}
	m, ok := out[date]
	if !ok {
		m = Marking{Dots: []Dot{}}
	}
	m.Selected = true
	m.SelectedColor = ColorMixed
	out[date] = m
	return out
}
