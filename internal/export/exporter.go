// Package export renders the employee directory as an xlsx workbook. The
// column layout is YAML so it can be changed without touching code.
package export

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var defaultLayout []byte

// Layout describes the exported sheet.
type Layout struct {
	Sheet       string         `yaml:"sheet"`
	HeaderStyle *StyleTemplate `yaml:"header_style"`
	Columns     []Column       `yaml:"columns"`
}

type Column struct {
	Field  string  `yaml:"field"`
	Header string  `yaml:"header"`
	Width  float64 `yaml:"width"`
}

type StyleTemplate struct {
	Font *FontTemplate `yaml:"font"`
	Fill *FillTemplate `yaml:"fill"`
}

type FontTemplate struct {
	Bold  bool   `yaml:"bold"`
	Color string `yaml:"color"`
}

type FillTemplate struct {
	Color string `yaml:"color"`
}

type fieldFunc func(a domain.EmployeeAggregate) interface{}

var fields = map[string]fieldFunc{
	"name":      func(a domain.EmployeeAggregate) interface{} { return a.Employee.Name },
	"email":     func(a domain.EmployeeAggregate) interface{} { return a.Employee.Email },
	"telephone": func(a domain.EmployeeAggregate) interface{} { return a.Employee.Telephone },
	"office":    func(a domain.EmployeeAggregate) interface{} { return a.Employee.OfficeName },
	"country":   func(a domain.EmployeeAggregate) interface{} { return domain.CountryOf(a.Employee.Email) },
	"start_date": func(a domain.EmployeeAggregate) interface{} {
		return formatDate(a.Employee.StartDate)
	},
	"end_date": func(a domain.EmployeeAggregate) interface{} {
		return formatDate(a.Employee.EndDate)
	},
	"competencies": func(a domain.EmployeeAggregate) interface{} {
		return strings.Join(a.Employee.Competencies, ", ")
	},
	"image_url": func(a domain.EmployeeAggregate) interface{} { return a.Employee.ImageURL },
	"emergency_contact_name": func(a domain.EmployeeAggregate) interface{} {
		if a.EmergencyContact == nil {
			return ""
		}
		return a.EmergencyContact.Name
	},
	"emergency_contact_phone": func(a domain.EmployeeAggregate) interface{} {
		if a.EmergencyContact == nil {
			return ""
		}
		return a.EmergencyContact.Phone
	},
	"emergency_contact_relation": func(a domain.EmployeeAggregate) interface{} {
		if a.EmergencyContact == nil {
			return ""
		}
		return a.EmergencyContact.Relation
	},
	"default_allergies": func(a domain.EmployeeAggregate) interface{} {
		if a.AllergiesAndDietaryPreferences == nil {
			return ""
		}
		return strings.Join(a.AllergiesAndDietaryPreferences.DefaultAllergies, ", ")
	},
	"other_allergies": func(a domain.EmployeeAggregate) interface{} {
		if a.AllergiesAndDietaryPreferences == nil {
			return ""
		}
		return strings.Join(a.AllergiesAndDietaryPreferences.OtherAllergies, ", ")
	},
	"dietary_preferences": func(a domain.EmployeeAggregate) interface{} {
		if a.AllergiesAndDietaryPreferences == nil {
			return ""
		}
		return strings.Join(a.AllergiesAndDietaryPreferences.DietaryPreferences, ", ")
	},
	"allergy_comment": func(a domain.EmployeeAggregate) interface{} {
		if a.AllergiesAndDietaryPreferences == nil {
			return ""
		}
		return a.AllergiesAndDietaryPreferences.Comment
	},
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// ParseLayout decodes and checks a layout. Unknown fields are rejected so a
// typo shows up at startup instead of as an empty column.
func ParseLayout(b []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if l.Sheet == "" {
		l.Sheet = "Employees"
	}
	if len(l.Columns) == 0 {
		return nil, fmt.Errorf("layout has no columns")
	}
	for _, c := range l.Columns {
		if _, ok := fields[c.Field]; !ok {
			return nil, fmt.Errorf("layout column %q: unknown field", c.Field)
		}
	}
	return &l, nil
}

// DefaultLayout returns the built-in layout.
func DefaultLayout() *Layout {
	l, err := ParseLayout(defaultLayout)
	if err != nil {
		panic(err)
	}
	return l
}

type Exporter struct {
	layout *Layout
}

func NewExporter(layout *Layout) *Exporter {
	if layout == nil {
		layout = DefaultLayout()
	}
	return &Exporter{layout: layout}
}

// WriteEmployees streams one row per employee to w.
func (e *Exporter) WriteEmployees(w io.Writer, employees []domain.EmployeeAggregate) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := e.layout.Sheet
	f.SetSheetName("Sheet1", sheet)

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	for i, c := range e.layout.Columns {
		if c.Width > 0 {
			if err := sw.SetColWidth(i+1, i+1, c.Width); err != nil {
				return fmt.Errorf("set column width: %w", err)
			}
		}
	}

	headerStyle := 0
	if e.layout.HeaderStyle != nil {
		if headerStyle, err = createStyle(f, e.layout.HeaderStyle); err != nil {
			return fmt.Errorf("create header style: %w", err)
		}
	}

	header := make([]interface{}, len(e.layout.Columns))
	for i, c := range e.layout.Columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: c.Header}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, emp := range employees {
		row := make([]interface{}, len(e.layout.Columns))
		for i, c := range e.layout.Columns {
			row[i] = fields[c.Field](emp)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func createStyle(f *excelize.File, tmpl *StyleTemplate) (int, error) {
	style := &excelize.Style{}
	if tmpl.Font != nil {
		style.Font = &excelize.Font{
			Bold:  tmpl.Font.Bold,
			Color: strings.TrimPrefix(tmpl.Font.Color, "#"),
		}
	}
	if tmpl.Fill != nil {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Color:   []string{strings.TrimPrefix(tmpl.Fill.Color, "#")},
			Pattern: 1,
		}
	}
	return f.NewStyle(style)
}
