package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/prompt-atelier/promptblocks/internal/models"
)

// DatasetRecord is one flattened batch result row. One column per block type
// keeps the file directly queryable by offline analysis tools.
type DatasetRecord struct {
	ID     string `parquet:"id"`
	Index  int32  `parquet:"index"`
	Name   string `parquet:"name"`
	Status string `parquet:"status"`
	Prompt string `parquet:"prompt"`
	Error  string `parquet:"error"`

	SubjectType     string `parquet:"subject_type"`
	SubjectFeatures string `parquet:"subject_features"`
	Outfit          string `parquet:"outfit"`
	Pose            string `parquet:"pose"`
	Expression      string `parquet:"expression"`
	Background      string `parquet:"background"`
	Style           string `parquet:"style"`
	Lighting        string `parquet:"lighting"`
	ColorMood       string `parquet:"color_mood"`
	Composition     string `parquet:"composition"`
	Camera          string `parquet:"camera"`
	Effects         string `parquet:"effects"`
	Quality         string `parquet:"quality"`
}

// ToDatasetRecords flattens batch results into parquet rows.
func ToDatasetRecords(results []models.BatchResultItem) []DatasetRecord {
	records := make([]DatasetRecord, 0, len(results))
	for _, item := range results {
		record := DatasetRecord{
			ID:     item.ID,
			Index:  int32(item.Index),
			Name:   item.Name,
			Status: item.Status,
		}
		if item.Prompt != nil {
			record.Prompt = *item.Prompt
		}
		if item.Error != nil {
			record.Error = *item.Error
		}
		if item.Result != nil {
			record.SubjectType = item.Result.SubjectType
			record.SubjectFeatures = item.Result.SubjectFeatures
			record.Outfit = item.Result.Outfit
			record.Pose = item.Result.Pose
			record.Expression = item.Result.Expression
			record.Background = item.Result.Background
			record.Style = item.Result.Style
			record.Lighting = item.Result.Lighting
			record.ColorMood = item.Result.ColorMood
			record.Composition = item.Result.Composition
			record.Camera = item.Result.Camera
			record.Effects = item.Result.Effects
			record.Quality = item.Result.Quality
		}
		records = append(records, record)
	}
	return records
}

// SaveParquet writes batch results to a parquet dataset file.
func SaveParquet(path string, results []models.BatchResultItem) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[DatasetRecord](file)
	if _, err := writer.Write(ToDatasetRecords(results)); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	return nil
}
