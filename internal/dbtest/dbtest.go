// Package dbtest builds deterministic databases for tests.
package dbtest

import (
	"fmt"
	"time"

	"github.com/annotab/annotab/internal/database"
	"github.com/annotab/annotab/internal/header"
	"github.com/annotab/annotab/internal/index"
	"github.com/annotab/annotab/internal/table"
	"github.com/annotab/annotab/pkg/types"
)

// Sizes of the tables of Create.
const (
	NumFiles           = 20
	NumSegmentsPerFile = 3
	NumMisc            = 10
)

// Create returns a database with every kind of scheme, rater, media and split
// and a filewise, a segmented and a misc table using them. A minimal database
// has only the header fields.
func Create(minimal bool) *database.Database {
	db := database.New("unittest")
	db.Source = "internal"
	db.Usage = header.UsageCommercial
	db.Languages = []string{"deu", "eng"}
	if minimal {
		return db
	}
	db.Description = "A database for unit testing."
	db.Meta = map[string]any{"audformat": "https://github.com/audeering/audformat"}

	must(db.SetMedia("microphone", &header.Media{
		Type: header.MediaAudio, Format: "wav", SamplingRate: 16000, Channels: 1, BitDepth: 16,
	}))
	must(db.SetMedia("webcam", &header.Media{
		Type: header.MediaVideo, Format: "avi", VideoFPS: 25, VideoResolution: []int{800, 600},
		VideoChannels: 3, VideoDepth: 8,
	}))

	must(db.SetRater("gold", &header.Rater{
		Type: header.RaterHuman, Description: "Gold standard by taking the average ratings.",
	}))
	must(db.SetRater("machine", &header.Rater{
		Type:        header.RaterMachine,
		Description: "Predictions made by the machine.",
		Meta:        map[string]any{"features": "ComParE_2016", "classifier": "LibSVM"},
	}))

	for id, s := range Schemes() {
		must(db.SetScheme(id, s))
	}

	must(db.SetSplit("train", &header.Split{Type: header.SplitTrain}))
	must(db.SetSplit("dev", &header.Split{Type: header.SplitDevelop}))
	must(db.SetSplit("test", &header.Split{Type: header.SplitTest}))

	files := Files(NumFiles)
	filewise := table.NewFilewise(files)
	filewise.SplitID, filewise.MediaID = "train", "microphone"
	addColumns(filewise, db)
	must(db.SetTable("files", filewise))

	var segFiles []string
	var starts, ends []time.Duration
	for _, f := range Files(NumFiles / NumSegmentsPerFile) {
		for s := 0; s < NumSegmentsPerFile; s++ {
			segFiles = append(segFiles, f)
			starts = append(starts, time.Duration(s)*1500*time.Millisecond)
			if s == NumSegmentsPerFile-1 {
				ends = append(ends, index.OpenEnd)
			} else {
				ends = append(ends, time.Duration(s+1)*1500*time.Millisecond)
			}
		}
	}
	segmented, err := table.NewSegmented(segFiles, starts, ends)
	must(err)
	segmented.SplitID, segmented.MediaID = "dev", "microphone"
	addColumns(segmented, db)
	must(db.SetTable("segments", segmented))

	keys := make([]types.Value, NumMisc)
	for i := range keys {
		keys[i] = types.Int(int64(i))
	}
	idx, err := index.New([]index.Level{{Name: "idx", DType: types.IntType}}, keys)
	must(err)
	misc := table.New(idx)
	misc.Description = "Table without files."
	addColumns(misc, db)
	must(db.SetTable("misc", misc))

	return db
}

// Schemes returns one scheme per data type plus categorical schemes.
func Schemes() map[string]*header.Scheme {
	min, max := 0.0, 100.0
	fmin, fmax := -1.0, 1.0
	return map[string]*header.Scheme{
		"bool":   {DType: types.BoolType},
		"string": {DType: types.StringType},
		"int":    {DType: types.IntType, Minimum: &min, Maximum: &max},
		"float":  {DType: types.FloatType, Minimum: &fmin, Maximum: &fmax},
		"time":   {DType: types.TimeType},
		"date":   {DType: types.DateType},
		"object": {DType: types.ObjectType},
		"label":  {Labels: header.LabelList("label1", "label2", "label3")},
		"label_map_str": {Labels: header.LabelMap(
			[]any{"label1", "label2", "label3"},
			map[any]map[string]any{
				"label1": {"prop1": 1, "prop2": "a"},
				"label2": {"prop1": 2, "prop2": "b"},
				"label3": {"prop1": 3, "prop2": "c"},
			})},
		"label_map_int": {Labels: header.LabelMap(
			[]any{1, 2, 3},
			map[any]map[string]any{
				1: {"prop1": 1, "prop2": "a"},
				2: {"prop1": 2, "prop2": "b"},
				3: {"prop1": 3, "prop2": "c"},
			})},
	}
}

// Files returns n audio file names.
func Files(n int) []string {
	files := make([]string, n)
	for i := range files {
		files[i] = fmt.Sprintf("audio/%03d.wav", i+1)
	}
	return files
}

// Draw returns n values fitting the scheme. Every fourth value is missing.
func Draw(s *header.Scheme, n int) []types.Value {
	values := make([]types.Value, n)
	for i := range values {
		if i%4 == 3 {
			continue
		}
		values[i] = draw(s, i)
	}
	return values
}

func draw(s *header.Scheme, i int) types.Value {
	if s.Labels != nil {
		return types.FromNative(s.Labels.Values[i%len(s.Labels.Values)])
	}
	switch s.DType {
	case types.BoolType:
		return types.Bool(i%2 == 0)
	case types.IntType:
		return types.Int(int64(i * 7 % 101))
	case types.FloatType:
		return types.Float(float64(i%21)/10 - 1)
	case types.TimeType:
		return types.Time(time.Duration(i) * 250 * time.Millisecond)
	case types.DateType:
		return types.Date(time.Date(2020, 1, 1+i, 12, 0, 0, 0, time.UTC))
	case types.ObjectType:
		return types.Object(map[string]any{"i": int64(i), "s": fmt.Sprint(i)})
	default:
		return types.String(fmt.Sprintf("s%d", i))
	}
}

// addColumns adds one column per scheme rated by gold plus an unbound
// column.
func addColumns(t *table.Table, db *database.Database) {
	t.SetSchemeResolver(db)
	for _, id := range db.SchemeIDs() {
		s, _ := db.Scheme(id)
		c := table.NewColumn(id, "gold")
		must(t.SetColumn(id, c))
		must(c.Set(Draw(s, t.Len())))
	}
	c := table.NewColumn("", "")
	must(t.SetColumn("no_scheme", c))
	must(c.Set(Draw(&header.Scheme{DType: types.StringType}, t.Len())))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
