// Package manifest reads a spreadsheet of documents to enqueue.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"sceneflow-go/internal/types"
)

// Load reads the first sheet of the workbook at path.
func Load(path string) ([]types.IncomingJob, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return read(f)
}

// Read is Load for an in-memory workbook.
func Read(r io.Reader) ([]types.IncomingJob, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return read(f)
}

type columns struct {
	name, url, fileType, correlation int
}

// detect finds columns by header heuristics, English or Russian.
func detect(header []string) columns {
	c := columns{name: -1, url: -1, fileType: -1, correlation: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "url") || strings.Contains(l, "link") || strings.Contains(l, "ссылка"):
			if c.url == -1 {
				c.url = i
			}
		case strings.Contains(l, "correlation") || l == "id" || strings.Contains(l, "идентификатор"):
			if c.correlation == -1 {
				c.correlation = i
			}
		case strings.Contains(l, "type") || strings.Contains(l, "format") || strings.Contains(l, "тип") || strings.Contains(l, "формат"):
			if c.fileType == -1 {
				c.fileType = i
			}
		case strings.Contains(l, "file") || strings.Contains(l, "name") || strings.Contains(l, "файл") || strings.Contains(l, "назван"):
			if c.name == -1 {
				c.name = i
			}
		}
	}
	return c
}

func read(f *excelize.File) ([]types.IncomingJob, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, errors.New("no data rows")
	}

	cols := detect(rows[0])
	if cols.url == -1 {
		return nil, errors.New("no url column in header")
	}

	var out []types.IncomingJob
	for _, r := range rows[1:] {
		job := types.IncomingJob{
			StorageURL:    cell(r, cols.url),
			FileName:      cell(r, cols.name),
			FileType:      cell(r, cols.fileType),
			CorrelationID: cell(r, cols.correlation),
		}
		// rows without a usable link are skipped quietly
		u, err := url.Parse(job.StorageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if job.FileName == "" {
			job.FileName = path.Base(u.Path)
		}
		if job.CorrelationID == "" {
			job.CorrelationID = uuid.NewString()
		}
		out = append(out, job)
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
