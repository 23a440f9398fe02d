package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
)

// ManifestEntry is one row of a split manifest: a video file name and its
// class label. Rows without a label column (the test split) get the
// unlabeled sentinel.
type ManifestEntry struct {
	Name  string
	Label int
}

// ReadManifest parses a split manifest CSV. The first row must be a header
// starting with "video_name"; a second "label" column is optional.
func ReadManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("manifest %s is empty", path)
	}
	if records[0][0] != "video_name" {
		return nil, fmt.Errorf("manifest %s: first column must be video_name, got %q", path, records[0][0])
	}

	entries := make([]ManifestEntry, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) == 0 || rec[0] == "" {
			return nil, fmt.Errorf("manifest %s: empty video name at row %d", path, i+2)
		}
		e := ManifestEntry{Name: rec[0], Label: entity.UnlabeledClass}
		if len(rec) > 1 && rec[1] != "" {
			label, err := strconv.Atoi(rec[1])
			if err != nil {
				return nil, fmt.Errorf("manifest %s: bad label %q at row %d: %w", path, rec[1], i+2, err)
			}
			e.Label = label
		}
		entries = append(entries, e)
	}
	return entries, nil
}
