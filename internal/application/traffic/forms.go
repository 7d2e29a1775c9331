package traffic

import (
	"context"
	"fmt"
	"strings"

	"github.com/trafficsim/backend/internal/domain/traffic"
)

const textInputSelector = "input[type='text'], input[type='email'], input[type='tel'], input:not([type])"

// fillFormInputs fills the visible text-like inputs and textareas of a
// form with type-appropriate synthetic values and returns how many fields
// were filled.
func (s *browseSession) fillFormInputs(ctx context.Context, form traffic.Element) (int, error) {
	inputs, err := form.LocateAll(ctx, textInputSelector)
	if err != nil {
		return 0, err
	}
	filled := 0
	for _, in := range inputs {
		visible, err := in.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		if err := in.Fill(ctx, s.syntheticValue(ctx, in)); err != nil {
			continue
		}
		filled++
		if s.engine.mode == traffic.ModeHuman {
			s.pause(ctx, 200, 700)
		}
	}
	areas, err := form.LocateAll(ctx, "textarea")
	if err != nil {
		return filled, nil
	}
	for _, ta := range areas {
		visible, err := ta.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		if err := ta.Fill(ctx, s.faker.Paragraph(1, 2, 12, " ")); err != nil {
			continue
		}
		filled++
	}
	return filled, nil
}

// syntheticValue picks a fake value matching what the input's attributes
// suggest it expects.
func (s *browseSession) syntheticValue(ctx context.Context, in traffic.Element) string {
	var hints []string
	for _, attr := range []string{"type", "name", "id", "placeholder", "autocomplete"} {
		if v, err := in.Attribute(ctx, attr); err == nil && v != "" {
			hints = append(hints, strings.ToLower(v))
		}
	}
	hint := strings.Join(hints, " ")
	switch {
	case strings.Contains(hint, "email"):
		return s.faker.Email()
	case strings.Contains(hint, "phone") || strings.Contains(hint, "tel"):
		return s.faker.Phone()
	case strings.Contains(hint, "company") || strings.Contains(hint, "organization"):
		return s.faker.Company()
	case strings.Contains(hint, "first"):
		return s.faker.FirstName()
	case strings.Contains(hint, "last"):
		return s.faker.LastName()
	case strings.Contains(hint, "name"):
		return s.faker.Name()
	case strings.Contains(hint, "subject"):
		return s.faker.Sentence(4)
	case strings.Contains(hint, "city"):
		return s.faker.City()
	default:
		return s.faker.Sentence(3)
	}
}

// submitForm clicks the form's first visible submit control and waits for
// the page to settle. It returns false when the form has no visible
// submit control.
func (s *browseSession) submitForm(ctx context.Context, form traffic.Element) (bool, error) {
	controls, err := form.LocateAll(ctx, submitSelector)
	if err != nil {
		return false, fmt.Errorf("locating submit control failed: %w", err)
	}
	for _, c := range controls {
		visible, err := c.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		if s.engine.mode == traffic.ModeHuman {
			s.pause(ctx, 300, 800)
		}
		if err := c.Click(ctx); err != nil {
			return false, fmt.Errorf("clicking submit control failed: %w", err)
		}
		if !s.settle(ctx) {
			return false, fmt.Errorf("timed out waiting for network idle after submit")
		}
		return true, nil
	}
	return false, nil
}
