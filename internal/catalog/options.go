package catalog

// Options carries the tunables of the catalog pipeline. It is built once from
// configuration and passed to every stage; nothing here is global.
type Options struct {
	// Keywords mark well-known model families. Paid models whose ID contains
	// none of them are dropped by Rank.
	Keywords []string `mapstructure:"keywords" json:"keywords"`

	// CheapUpperBound is the exclusive prompt-cost limit of the cheap tier.
	CheapUpperBound float64 `mapstructure:"cheap_upper_bound" json:"cheap_upper_bound"`

	// LabelScale converts a per-unit prompt cost into the rate shown in labels.
	LabelScale int64 `mapstructure:"label_scale" json:"label_scale"`

	CurrencyPrefix string `mapstructure:"currency_prefix" json:"currency_prefix"`
	CurrencySuffix string `mapstructure:"currency_suffix" json:"currency_suffix"`
	FreeLabel      string `mapstructure:"free_label" json:"free_label"`
}

// DefaultKeywords are the generic short names of the families the app is tuned for.
var DefaultKeywords = []string{"gpt", "claude", "gemini", "llama", "mistral", "deepseek", "qwen"}

func DefaultOptions() Options {
	return Options{
		Keywords:        append([]string(nil), DefaultKeywords...),
		CheapUpperBound: 1,
		LabelScale:      1_000_000,
		CurrencyPrefix:  "$",
		CurrencySuffix:  "/1M",
		FreeLabel:       "Free",
	}
}

// WithDefaults fills zero-valued fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Keywords == nil {
		o.Keywords = d.Keywords
	}
	if o.CheapUpperBound <= 0 {
		o.CheapUpperBound = d.CheapUpperBound
	}
	if o.LabelScale <= 0 {
		o.LabelScale = d.LabelScale
	}
	if o.CurrencyPrefix == "" && o.CurrencySuffix == "" {
		o.CurrencyPrefix = d.CurrencyPrefix
		o.CurrencySuffix = d.CurrencySuffix
	}
	if o.FreeLabel == "" {
		o.FreeLabel = d.FreeLabel
	}
	return o
}
