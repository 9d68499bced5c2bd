package ids

import "github.com/segmentio/ksuid"

// New returns a k-sortable unique id used as the backend row key.
func New() string {
	return ksuid.New().String()
}
