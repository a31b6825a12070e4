package pricing

// PluralCategory is a Russian grammatical number category.
type PluralCategory string

const (
	PluralOne  PluralCategory = "one"
	PluralFew  PluralCategory = "few"
	PluralMany PluralCategory = "many"
)

// PluralForms holds the word forms for each category.
type PluralForms struct {
	One  string
	Few  string
	Many string
}

// Pick returns the form matching n.
func (f PluralForms) Pick(n int) string {
	switch Plural(n) {
	case PluralOne:
		return f.One
	case PluralFew:
		return f.Few
	default:
		return f.Many
	}
}

// Plural classifies n. Numbers ending in 11..14 are always "many",
// even though their last digit alone would say otherwise.
func Plural(n int) PluralCategory {
	if n < 0 {
		n = -n
	}
	lastTwo := n % 100
	if lastTwo >= 11 && lastTwo <= 14 {
		return PluralMany
	}
	switch last := n % 10; {
	case last == 1:
		return PluralOne
	case last >= 2 && last <= 4:
		return PluralFew
	default:
		return PluralMany
	}
}

// UnitLabel returns the duration unit for mode, declined for n.
func UnitLabel(mode RentalMode, n int) (string, error) {
	cfg, err := Config(mode)
	if err != nil {
		return "", err
	}
	return cfg.Forms.Pick(n), nil
}
