package database

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"mediavault/internal/models"
)

// Matches evaluates filter against rec in process. Used by drivers that
// cannot push the predicate down to the backend.
func Matches(filter Filter, rec models.ImageRecord) bool {
	if filter.Account != "" && rec.Account != filter.Account {
		return false
	}
	if filter.Identifier != "" && rec.Identifier != filter.Identifier {
		return false
	}
	added := rec.Added.Unix()
	if filter.AddedAfter != nil && added <= filter.AddedAfter.Unix() {
		return false
	}
	if filter.AddedBefore != nil && added >= filter.AddedBefore.Unix() {
		return false
	}
	for key, want := range filter.Metadata {
		got, ok := rec.Metadata[key]
		if !ok || !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

// jsonEqual compares values by their JSON encoding so that 1 and 1.0 decoded
// from a request body compare equal to ints set in code.
func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// SortAndPage orders records newest first by the paging's sort key and slices
// out the requested page. Records with equal keys keep their input order.
func SortAndPage(records []models.ImageRecord, paging models.Paging) []models.ImageRecord {
	sort.SliceStable(records, func(i, j int) bool {
		if paging.Sort == models.SortUpdatedDesc {
			return records[i].Updated.After(records[j].Updated)
		}
		return records[i].Added.After(records[j].Added)
	})

	skip := max(paging.Skip, 0)
	if skip >= len(records) {
		return []models.ImageRecord{}
	}
	records = records[skip:]
	if paging.Limit > 0 && paging.Limit < len(records) {
		records = records[:paging.Limit]
	}
	return records
}

func Project(rec models.ImageRecord, projection Projection) models.ImageRecord {
	rec.ID = ""
	if projection.Metadata {
		if rec.Metadata == nil {
			rec.Metadata = models.Metadata{}
		}
		rec.Metadata = rec.Metadata.Clone()
	} else {
		rec.Metadata = nil
	}
	return rec
}

// Document is the persisted layout shared by drivers that serialise whole
// records (badger).
type Document struct {
	ID         string          `json:"_id"`
	Account    string          `json:"account"`
	Identifier string          `json:"identifier"`
	Checksum   string          `json:"checksum"`
	Size       int64           `json:"size"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Mime       string          `json:"mime"`
	Extension  string          `json:"extension"`
	Metadata   models.Metadata `json:"metadata"`
	Added      int64           `json:"added"`
	Updated    int64           `json:"updated"`
}

func ToDocument(rec models.ImageRecord) Document {
	md := rec.Metadata
	if md == nil {
		md = models.Metadata{}
	}
	return Document{
		ID:         rec.ID,
		Account:    rec.Account,
		Identifier: rec.Identifier,
		Checksum:   rec.Checksum,
		Size:       rec.Size,
		Width:      rec.Width,
		Height:     rec.Height,
		Mime:       rec.Mime,
		Extension:  rec.Extension,
		Metadata:   md,
		Added:      rec.Added.Unix(),
		Updated:    rec.Updated.Unix(),
	}
}

func (d Document) Record() models.ImageRecord {
	md := d.Metadata
	if md == nil {
		md = models.Metadata{}
	}
	return models.ImageRecord{
		ID:         d.ID,
		Account:    d.Account,
		Identifier: d.Identifier,
		Checksum:   d.Checksum,
		Size:       d.Size,
		Width:      d.Width,
		Height:     d.Height,
		Mime:       d.Mime,
		Extension:  d.Extension,
		Metadata:   md,
		Added:      time.Unix(d.Added, 0).UTC(),
		Updated:    time.Unix(d.Updated, 0).UTC(),
	}
}
