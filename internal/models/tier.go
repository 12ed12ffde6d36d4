package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/YouXam/ucloud-bot/internal/constants"
)

// Tier is the urgency of an outstanding item, ordered new < day < hour.
type Tier string

const (
	TierNew  Tier = "new"
	TierDay  Tier = "day"
	TierHour Tier = "hour"
)

// Rank orders tiers by urgency. Unknown tiers rank below new.
func (t Tier) Rank() int {
	switch t {
	case TierNew:
		return 1
	case TierDay:
		return 2
	case TierHour:
		return 3
	default:
		return 0
	}
}

func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// ComputeTier classifies a deadline relative to now.
func ComputeTier(deadline, now time.Time) Tier {
	remaining := deadline.Sub(now)
	switch {
	case remaining < constants.HourTierThreshold:
		return TierHour
	case remaining < constants.DayTierThreshold:
		return TierDay
	default:
		return TierNew
	}
}

// ParseDeadline parses a backend deadline, which carries no zone and is always UTC+8.
func ParseDeadline(value string) (time.Time, error) {
	return time.ParseInLocation(constants.DeadlineLayout, value, constants.DeadlineZone)
}

// TierMap records the last notified tier per item id.
type TierMap map[string]Tier

// Scan reads the stored JSON object. Entries written by the old schema hold a
// boolean "already notified" flag: true becomes TierNew, false is dropped.
func (m *TierMap) Scan(value interface{}) error {
	var raw map[string]json.RawMessage
	if err := scanJSON(value, &raw); err != nil {
		return err
	}

	out := make(TierMap, len(raw))
	for id, entry := range raw {
		var notified bool
		if err := json.Unmarshal(entry, &notified); err == nil {
			if notified {
				out[id] = TierNew
			}
			continue
		}

		var tier Tier
		if err := json.Unmarshal(entry, &tier); err == nil && tier.Valid() {
			out[id] = tier
		}
	}
	*m = out
	return nil
}

func (m TierMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return valueJSON(map[string]Tier(m))
}
