package detect

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed classes.yaml
var defaultClassesYAML []byte

// ClassBuckets maps raw detector class ids to the two semantic buckets the
// pipeline cares about. The exact id sets are deployment configuration,
// not a contract: swap the yaml file to match a different detector's
// class vocabulary.
type ClassBuckets struct {
	Person []int `yaml:"person"`
	Cycle  []int `yaml:"cycle"`
}

// LoadClassBuckets reads class buckets from the given yaml file, or from
// the embedded default when path is empty.
func LoadClassBuckets(path string) (*ClassBuckets, error) {
	data := defaultClassesYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading class bucket file: %w", err)
		}
	}

	var buckets ClassBuckets
	if err := yaml.Unmarshal(data, &buckets); err != nil {
		return nil, fmt.Errorf("parsing class buckets: %w", err)
	}
	if len(buckets.Person) == 0 {
		return nil, fmt.Errorf("class bucket file defines no person classes")
	}
	return &buckets, nil
}

// IsPerson reports whether the class id belongs to the person bucket.
func (c *ClassBuckets) IsPerson(classID int) bool {
	return containsInt(c.Person, classID)
}

// IsCycle reports whether the class id belongs to the cycle/vehicle bucket.
func (c *ClassBuckets) IsCycle(classID int) bool {
	return containsInt(c.Cycle, classID)
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
