package birthday

// Category buckets a birthday by proximity and drives badge and row styling.
type Category string

const (
	CategoryToday    Category = "today"
	CategorySoon     Category = "soon"
	CategoryUpcoming Category = "upcoming"
	CategoryLater    Category = "later"
)

// Classifier holds the thresholds, in days, for the soon and upcoming buckets.
type Classifier struct {
	SoonDays     int
	UpcomingDays int
}

// DefaultClassifier matches the dashboard: badge within a week, list within 30 days.
var DefaultClassifier = Classifier{SoonDays: 7, UpcomingDays: 30}

// Classify returns the bucket for p.
func (c Classifier) Classify(p Proximity) Category {
	switch {
	case p.IsToday:
		return CategoryToday
	case p.DaysUntil <= c.SoonDays:
		return CategorySoon
	case p.DaysUntil <= c.UpcomingDays:
		return CategoryUpcoming
	default:
		return CategoryLater
	}
}

// ClassifyAndSort validates, annotates and orders the records.
func (c Classifier) ClassifyAndSort(records []Record, today Date) ([]Proximity, error) {
	if err := validate(records); err != nil {
		return nil, err
	}
	if !today.Valid() {
		return nil, ErrInvalidDate
	}
	out := make([]Proximity, len(records))
	for i, rec := range records {
		p := Compute(rec, today)
		p.Category = c.Classify(p)
		out[i] = p
	}
	SortByProximity(out)
	return out, nil
}
