package summarizer

// Formatter renders a Report as text.
type Formatter interface {
	Format(report *Report) string
}
