package election

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// The list/map columns below are stored as JSON so the same models work on
// postgres (jsonb) and on the sqlite test store.

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}

type Int64List []int64

func (l Int64List) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *Int64List) Scan(src interface{}) error { return scanJSON(src, l) }

func (l Int64List) Contains(id int64) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

type StringList []string

func (l StringList) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(src interface{}) error { return scanJSON(src, l) }

type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *StringMap) Scan(src interface{}) error { return scanJSON(src, m) }

// CriterionFlags is a criterion matched against a giving or participation
// classification: the criterion passes when the classification matches any
// enabled sub-flag.
type CriterionFlags struct {
	Enabled   bool `json:"enabled"`
	Punctual  bool `json:"punctual"`
	Seasonal  bool `json:"seasonal"`
	Recurring bool `json:"recurring"`
}

type ChurchTimeCriterion struct {
	Enabled       bool `json:"enabled"`
	MinimumMonths int  `json:"minimumMonths"`
}

type PositionLimitCriterion struct {
	Enabled      bool `json:"enabled"`
	MaxPositions int  `json:"maxPositions"`
}

type EldersCountCriterion struct {
	Enabled bool `json:"enabled"`
	Count   int  `json:"count"`
}

// Criteria is the configurable eligibility rule set. Faithfulness, attendance
// and churchTime veto individual candidates; positionLimit and eldersCount
// are cross-position constraints applied when candidate pools are built.
type Criteria struct {
	Faithfulness  CriterionFlags         `json:"faithfulness"`
	Attendance    CriterionFlags         `json:"attendance"`
	ChurchTime    ChurchTimeCriterion    `json:"churchTime"`
	PositionLimit PositionLimitCriterion `json:"positionLimit"`
	EldersCount   EldersCountCriterion   `json:"eldersCount"`
}

func (c Criteria) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

func (c *Criteria) Scan(src interface{}) error { return scanJSON(src, c) }
