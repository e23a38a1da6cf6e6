package formrules

import (
	"fmt"
	"strings"
	"time"

	"github.com/Delta456/box-cli-maker/v2"
	"github.com/alexeyco/simpletable"
	"github.com/dustin/go-humanize"
)

// Scope is the kind of entity a rule was evaluated for.
type Scope string

const (
	ScopeField  Scope = "field"
	ScopeGrid   Scope = "grid"
	ScopeColumn Scope = "column"
)

// An Evaluation records one rule (or legacy expression) considered for one
// entity during a pass.
type Evaluation struct {
	Scope     Scope
	Entity    string
	RuleID    string
	Condition string
	Effect    Effect

	// Matched is true when the target covered the entity and the condition
	// held.
	Matched bool

	// Changed is true when applying the rule changed the entity's state.
	Changed bool
}

// Diagnostics is a trace of a computation pass.
type Diagnostics struct {
	Evaluations []Evaluation
	Started     time.Time
	Elapsed     time.Duration
}

func (d *Diagnostics) record(ev Evaluation) {
	if d == nil {
		return
	}
	d.Evaluations = append(d.Evaluations, ev)
}

// For returns the evaluations recorded for one entity, in order.
func (d *Diagnostics) For(scope Scope, entity string) []Evaluation {
	var out []Evaluation
	for _, ev := range d.Evaluations {
		if ev.Scope == scope && ev.Entity == entity {
			out = append(out, ev)
		}
	}
	return out
}

// Matched returns the number of evaluations whose rule matched.
func (d *Diagnostics) Matched() int {
	n := 0
	for _, ev := range d.Evaluations {
		if ev.Matched {
			n++
		}
	}
	return n
}

// String renders the trace as a boxed report.
func (d *Diagnostics) String() string {
	Box := box.New(box.Config{Px: 2, Py: 1, Type: "Double", Color: "Cyan", TitlePos: "Top", ContentAlign: "Left"})

	s := strings.Builder{}
	s.WriteString("Summary:\n")
	s.WriteString("--------\n")
	s.WriteString(fmt.Sprintf("%s evaluations, %s matched, %s\n\n",
		humanize.Comma(int64(len(d.Evaluations))),
		humanize.Comma(int64(d.Matched())),
		d.Elapsed))
	s.WriteString("Evaluations:\n")
	s.WriteString("------------\n")
	s.WriteString(d.Table())
	return Box.String("FORM STATE DIAGNOSTIC REPORT", s.String())
}

// Table renders the trace as a table, without the surrounding box.
func (d *Diagnostics) Table() string {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "Scope"},
			{Align: simpletable.AlignCenter, Text: "Entity"},
			{Align: simpletable.AlignCenter, Text: "Rule"},
			{Align: simpletable.AlignCenter, Text: "Effect"},
			{Align: simpletable.AlignCenter, Text: "Matched"},
			{Align: simpletable.AlignCenter, Text: "Changed"},
			{Align: simpletable.AlignCenter, Text: "Condition"},
		},
	}
	for _, ev := range d.Evaluations {
		r := []*simpletable.Cell{
			{Text: string(ev.Scope)},
			{Text: ev.Entity},
			{Text: ev.RuleID},
			{Text: string(ev.Effect)},
			{Align: simpletable.AlignCenter, Text: yesNo(ev.Matched)},
			{Align: simpletable.AlignCenter, Text: yesNo(ev.Changed)},
			{Text: wordWrap(ev.Condition, 60)},
		}
		table.Body.Cells = append(table.Body.Cells, r)
	}
	table.SetStyle(simpletable.StyleUnicode)
	return table.String()
}

func wordWrap(text string, lineWidth int) string {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) == 0 {
		return text
	}
	wrapped := words[0]
	spaceLeft := lineWidth - len(wrapped)
	for _, word := range words[1:] {
		if len(word)+1 > spaceLeft {
			wrapped += "\n" + word
			spaceLeft = lineWidth - len(word)
		} else {
			wrapped += " " + word
			spaceLeft -= 1 + len(word)
		}
	}
	return wrapped
}
