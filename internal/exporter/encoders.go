package exporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"sceneflow-go/internal/types"
)

// Encoder renders an artifact in one output format.
type Encoder struct {
	Ext         string
	ContentType string
	Encode      func(Artifact) ([]byte, error)
}

var encoders = map[string]Encoder{
	"json": {Ext: "json", ContentType: "application/json", Encode: encodeJSON},
	"yaml": {Ext: "yaml", ContentType: "application/yaml", Encode: encodeYAML},
	"xlsx": {Ext: "xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Encode: encodeXLSX},
}

// Supported reports whether format has an encoder.
func Supported(format string) bool {
	_, ok := encoders[strings.ToLower(format)]
	return ok
}

func encodeJSON(a Artifact) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeYAML(a Artifact) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const reportSheet = "Сцены"

var reportHeaders = []string{
	"Серия", "Сцена", "Режим", "Инт / нат", "Объект / Подобъект / Синопсис",
	"Время года / Примечание", "Персонажи", "Массовка", "Грим", "Костюм",
	"Реквизит", "Каскадер / Трюк", "Музыка", "Спецэффект", "Тон", "Статус",
}

// encodeXLSX writes the production breakdown sheet: one row per scene.
func encodeXLSX(a Artifact) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(reportSheet, "A1", &reportHeaders); err != nil {
		return nil, err
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D3D3D3"}},
	})
	if err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(reportHeaders))
	if err := f.SetCellStyle(reportSheet, "A1", lastCol+"1", style); err != nil {
		return nil, err
	}

	for i, sc := range a.Scenes {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := reportRow(sc)
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(reportSheet, "A", lastCol, 24); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func reportRow(sc types.Scene) []any {
	md := types.DefaultEnrichment()
	if sc.Metadata != nil {
		md = *sc.Metadata
	}
	var prod types.ProductionData
	if sc.Production != nil {
		prod = *sc.Production
	}

	number := sc.Number
	if md.SceneNumber != types.NotAvailable {
		number = md.SceneNumber
	}
	series := ""
	if before, _, found := strings.Cut(number, "-"); found {
		series = before
	}
	status := "ok"
	if sc.Error != nil {
		status = string(sc.Error.Kind)
	}

	return []any{
		series,
		number,
		sc.TimeOfDay,
		sc.Placement,
		md.Setting + " / " + md.KeyEventsSummary,
		md.LocationDetails,
		strings.Join(md.CharactersPresent, ", "),
		prod.Extras,
		prod.MakeupAndHair,
		prod.Costume,
		strings.Join(prod.Props, ", "),
		prod.Stunts,
		prod.Music,
		prod.SpecialEffects,
		md.EmotionalTone,
		status,
	}
}
