package reservation

import "time"

// Clock supplies the current wall-clock time. The engine and scheduler never
// call time.Now directly so tests can drive time explicitly.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// BusinessClock reads real time pinned to the platform's business timezone.
type BusinessClock struct {
	loc *time.Location
}

// NewBusinessClock resolves the configured IANA zone name.
func NewBusinessClock(tz string) (*BusinessClock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &BusinessClock{loc: loc}, nil
}

func (c *BusinessClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c *BusinessClock) Location() *time.Location { return c.loc }
