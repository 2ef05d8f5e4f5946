package main

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderManifest lists each produced image with its size and thumbnail state.
func renderManifest(folders config.Folders, manifest domain.Manifest) string {
	rows := make([][]string, 0, len(manifest.Images))
	for _, name := range manifest.Images {
		size := "-"
		if info, err := os.Stat(filepath.Join(folders.Images, name)); err == nil {
			size = strconv.FormatInt(info.Size(), 10)
		}
		thumb := "no"
		if _, err := os.Stat(filepath.Join(folders.Thumbs, name)); err == nil {
			thumb = "yes"
		}
		rows = append(rows, []string{name, size, thumb})
	}
	return renderTable(
		[]string{"Image", "Bytes", "Thumbnail"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft},
	)
}
