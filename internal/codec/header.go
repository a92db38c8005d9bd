package codec

import (
	"fmt"

	"github.com/annotab/annotab/internal/database"
	"github.com/annotab/annotab/internal/header"
	"github.com/annotab/annotab/internal/index"
	"github.com/annotab/annotab/internal/table"
	"github.com/annotab/annotab/pkg/types"
	"gopkg.in/yaml.v3"
)

// dbHeader is the layout of db.yaml.
type dbHeader struct {
	Name        string                    `yaml:"name"`
	Source      string                    `yaml:"source,omitempty"`
	Usage       string                    `yaml:"usage"`
	Languages   []string                  `yaml:"languages,omitempty,flow"`
	Description string                    `yaml:"description,omitempty"`
	Meta        map[string]any            `yaml:"meta,omitempty"`
	Media       map[string]*header.Media  `yaml:"media,omitempty"`
	Raters      map[string]*header.Rater  `yaml:"raters,omitempty"`
	Schemes     map[string]*header.Scheme `yaml:"schemes,omitempty"`
	Splits      map[string]*header.Split  `yaml:"splits,omitempty"`
	Tables      map[string]*tableHeader   `yaml:"tables,omitempty"`
}

type tableHeader struct {
	Type        index.Kind      `yaml:"type"`
	Levels      []levelHeader   `yaml:"levels"`
	SplitID     string          `yaml:"split_id,omitempty"`
	MediaID     string          `yaml:"media_id,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Meta        map[string]any  `yaml:"meta,omitempty"`
	Columns     []*columnHeader `yaml:"columns,omitempty"`
}

type levelHeader struct {
	Name  string         `yaml:"name"`
	DType types.DataType `yaml:"dtype"`
}

type columnHeader struct {
	Name        string         `yaml:"name"`
	SchemeID    string         `yaml:"scheme_id,omitempty"`
	RaterID     string         `yaml:"rater_id,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Meta        map[string]any `yaml:"meta,omitempty"`
	DType       types.DataType `yaml:"dtype,omitempty"`
}

// names returns the level names followed by the column names, the order of
// the fields of a body file.
func (th *tableHeader) names() []string {
	names := make([]string, 0, len(th.Levels)+len(th.Columns))
	for _, l := range th.Levels {
		names = append(names, l.Name)
	}
	for _, c := range th.Columns {
		names = append(names, c.Name)
	}
	return names
}

// dtypes returns the recorded data types in field order.
func (th *tableHeader) dtypes() []types.DataType {
	dtypes := make([]types.DataType, 0, len(th.Levels)+len(th.Columns))
	for _, l := range th.Levels {
		dtypes = append(dtypes, l.DType)
	}
	for _, c := range th.Columns {
		dtypes = append(dtypes, c.DType)
	}
	return dtypes
}

func encodeHeader(db *database.Database) *dbHeader {
	h := &dbHeader{
		Name:        db.Name,
		Source:      db.Source,
		Usage:       db.Usage,
		Languages:   db.Languages,
		Description: db.Description,
		Meta:        db.Meta,
		Media:       make(map[string]*header.Media),
		Raters:      make(map[string]*header.Rater),
		Schemes:     make(map[string]*header.Scheme),
		Splits:      make(map[string]*header.Split),
		Tables:      make(map[string]*tableHeader),
	}
	for _, id := range db.MediaIDs() {
		h.Media[id], _ = db.Media(id)
	}
	for _, id := range db.RaterIDs() {
		h.Raters[id], _ = db.Rater(id)
	}
	for _, id := range db.SchemeIDs() {
		h.Schemes[id], _ = db.Scheme(id)
	}
	for _, id := range db.SplitIDs() {
		h.Splits[id], _ = db.Split(id)
	}
	for _, id := range db.TableIDs() {
		t, _ := db.Table(id)
		h.Tables[id] = encodeTableHeader(t)
	}
	return h
}

func encodeTableHeader(t *table.Table) *tableHeader {
	th := &tableHeader{
		Type:        t.Kind(),
		SplitID:     t.SplitID,
		MediaID:     t.MediaID,
		Description: t.Description,
		Meta:        t.Meta,
	}
	for _, l := range t.Levels() {
		th.Levels = append(th.Levels, levelHeader{Name: l.Name, DType: l.DType})
	}
	for _, name := range t.Columns() {
		c, _ := t.Column(name)
		th.Columns = append(th.Columns, &columnHeader{
			Name:        name,
			SchemeID:    c.SchemeID,
			RaterID:     c.RaterID,
			Description: c.Description,
			Meta:        c.Meta,
			DType:       c.DType(),
		})
	}
	return th
}

func marshalHeader(h *dbHeader) ([]byte, error) {
	return yaml.Marshal(h)
}

func unmarshalHeader(b []byte) (*dbHeader, error) {
	var h dbHeader
	if err := yaml.Unmarshal(b, &h); err != nil {
		return nil, err
	}
	for _, err := range []error{
		checkRecords("media", h.Media),
		checkRecords("rater", h.Raters),
		checkRecords("scheme", h.Schemes),
		checkRecords("split", h.Splits),
	} {
		if err != nil {
			return nil, err
		}
	}
	for id, th := range h.Tables {
		if th == nil {
			return nil, fmt.Errorf("table %q has no header", id)
		}
		if _, err := index.ParseKind(string(th.Type)); err != nil {
			return nil, fmt.Errorf("table %q: %w", id, err)
		}
		if len(th.Levels) == 0 {
			return nil, fmt.Errorf("table %q has no levels", id)
		}
		for _, l := range th.Levels {
			if !l.DType.Valid() {
				return nil, fmt.Errorf("table %q: level %q: %w: %q", id, l.Name, types.ErrUnknownDataType, l.DType)
			}
		}
		for _, c := range th.Columns {
			if c == nil {
				return nil, fmt.Errorf("table %q has an empty column entry", id)
			}
			if c.DType != "" && !c.DType.Valid() {
				return nil, fmt.Errorf("table %q: column %q: %w: %q", id, c.Name, types.ErrUnknownDataType, c.DType)
			}
		}
	}
	return &h, nil
}

func checkRecords[T any](kind string, records map[string]*T) error {
	for id, r := range records {
		if r == nil {
			return fmt.Errorf("%s %q has no fields", kind, id)
		}
	}
	return nil
}

// decodeRecords creates a database holding every record of h but no tables.
func decodeRecords(h *dbHeader) (*database.Database, error) {
	db := database.New(h.Name)
	db.Source = h.Source
	db.Usage = h.Usage
	db.Languages = h.Languages
	db.Description = h.Description
	db.Meta = h.Meta
	for _, id := range sortedKeys(h.Media) {
		if err := db.SetMedia(id, h.Media[id]); err != nil {
			return nil, fmt.Errorf("media %q: %w", id, err)
		}
	}
	for _, id := range sortedKeys(h.Raters) {
		if err := db.SetRater(id, h.Raters[id]); err != nil {
			return nil, fmt.Errorf("rater %q: %w", id, err)
		}
	}
	for _, id := range sortedKeys(h.Schemes) {
		if err := db.SetScheme(id, h.Schemes[id]); err != nil {
			return nil, fmt.Errorf("scheme %q: %w", id, err)
		}
	}
	for _, id := range sortedKeys(h.Splits) {
		if err := db.SetSplit(id, h.Splits[id]); err != nil {
			return nil, fmt.Errorf("split %q: %w", id, err)
		}
	}
	return db, nil
}
