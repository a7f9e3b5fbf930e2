package dilemma

import (
	"fmt"
	"strings"
)

// Version returns the current version of the package.
func Version() string { return "0.2.0" }

const (
	// UnknownMap is shown in place of an empty map name.
	UnknownMap = "未知地图"
	// NoResult is shown in place of an empty result description.
	NoResult = "暂无明确结果"
)

// Record is one outcome of one option of a dilemma, exactly as authored in the data sheet.
type Record struct {
	ID         string `yaml:"id" json:"id"`
	Dilemma    string `yaml:"dilemma" json:"dilemma"`       // 困境名称
	Option     string `yaml:"option" json:"option"`         // 选项名称
	Result     string `yaml:"result" json:"result"`         // 结果
	Map        string `yaml:"map" json:"map"`               // 出现的地图
	Evaluation string `yaml:"evaluation" json:"evaluation"` // 评价
}

// DisplayResult returns the result text, or NoResult when none was recorded.
func (r Record) DisplayResult() string {
	if r.Result == "" {
		return NoResult
	}
	return r.Result
}

// Category is shorthand for Classify(r.Evaluation).
func (r Record) Category() Category { return Classify(r.Evaluation) }

// Store is the immutable, ordered set of records every query runs against.
// It is never written after NewStore returns, so it may be shared freely between goroutines.
type Store struct {
	records []Record
}

// NewStore validates records and returns a Store holding a private copy of them.
// Order is preserved.
func NewStore(records []Record) (*Store, error) {
	if err := Validate(records); err != nil {
		return nil, err
	}
	out := make([]Record, len(records))
	copy(out, records)
	return &Store{records: out}, nil
}

// Validate checks that every record names its dilemma and that ids are unique within the set.
func Validate(records []Record) error {
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if strings.TrimSpace(r.Dilemma) == "" {
			return fmt.Errorf("record %d (id %q): dilemma must be non-empty", i, r.ID)
		}
		if prev, ok := seen[r.ID]; ok {
			return fmt.Errorf("record %d: %w: %q already used by record %d", i, ErrDuplicateID, r.ID, prev)
		}
		seen[r.ID] = i
	}
	return nil
}

// ErrDuplicateID reports a data set that reuses a record id.
var ErrDuplicateID = &DataError{"duplicate record id"}

// DataError is a typed error for malformed data sets.
type DataError struct{ msg string }

func (e *DataError) Error() string { return e.msg }

// Len returns the number of records in the store.
func (s *Store) Len() int { return len(s.records) }

// Records returns a copy of the stored records in load order.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Search runs the query pipeline against the store.
func (s *Store) Search(query string) []DilemmaGroup {
	return Search(s.records, query)
}
