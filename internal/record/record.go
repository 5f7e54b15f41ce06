// Package record defines the on-disk JSON schema shared by the Chapter
// Downloader (writer), Packager (reader), and Unpackager (writer): the
// Novel Record (metadata.json) and per-volume Volume Record (spec §6).
package record

import (
	"encoding/json"
	"errors"
	"os"
)

// ChapterContent is one materialized chapter.
type ChapterContent struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Index   int    `json:"index"`
}

// VolumeRecord is the per-volume persisted JSON record.
type VolumeRecord struct {
	VolumeName      string           `json:"volumeName"`
	VolumeURL       string           `json:"volumeUrl"`
	CoverImageLocal string           `json:"coverImageLocal"`
	Chapters        []ChapterContent `json:"chapters"`
}

// VolumeDescriptor is one entry in a Novel Record's volumes list.
type VolumeDescriptor struct {
	Order    int    `json:"order"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// NovelRecord is the metadata.json persisted record.
type NovelRecord struct {
	NovelName       string             `json:"novelName"`
	Author          string             `json:"author"`
	Tags            []string           `json:"tags"`
	Summary         string             `json:"summary"`
	CoverImageLocal string             `json:"coverImageLocal"`
	URL             string             `json:"url"`
	Volumes         []VolumeDescriptor `json:"volumes"`
}

// LoadVolumeRecord reads path's Volume Record, returning (nil, nil) when the
// file does not yet exist.
func LoadVolumeRecord(path string) (*VolumeRecord, error) {
	var vr VolumeRecord
	ok, err := loadJSON(path, &vr)
	if err != nil || !ok {
		return nil, err
	}
	return &vr, nil
}

// LoadNovelRecord reads path's Novel Record, returning (nil, nil) when the
// file does not yet exist.
func LoadNovelRecord(path string) (*NovelRecord, error) {
	var nr NovelRecord
	ok, err := loadJSON(path, &nr)
	if err != nil || !ok {
		return nil, err
	}
	return &nr, nil
}

func loadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// SaveJSON marshals v with stable indentation and writes it to path.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
