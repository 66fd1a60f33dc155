package timezone

import (
	"time"
	_ "time/tzdata"
)

// Default is the zone the run day is computed in unless configured
// otherwise. Both platforms are Japanese and the original sheet is in JST.
const Default = "Asia/Tokyo"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation(Default)
	if err != nil {
		panic(err)
	}
}

// Load returns the named zone, or Location when name is empty.
func Load(name string) (*time.Location, error) {
	if name == "" {
		return Location, nil
	}
	return time.LoadLocation(name)
}

// Now is time.Now in Location, so Year()/Month()/Day() do not depend on
// where the job happens to run.
func Now() time.Time {
	return time.Now().In(Location)
}
