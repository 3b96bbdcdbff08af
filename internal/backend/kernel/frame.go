package kernel

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// Series is a single named column of values.
type Series struct {
	name   string
	values []starlark.Value
	frozen bool
}

var (
	_ starlark.Indexable = (*Series)(nil)
	_ starlark.Sequence  = (*Series)(nil)
	_ starlark.HasAttrs  = (*Series)(nil)
	_ starlark.HasBinary = (*Series)(nil)
	_ shaped             = (*Series)(nil)
)

// NewSeries returns a series holding a copy of values.
func NewSeries(name string, values []starlark.Value) *Series {
	return &Series{name: name, values: append([]starlark.Value(nil), values...)}
}

func (s *Series) String() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 4, ' ', 0)
	for i, v := range s.values {
		fmt.Fprintf(tw, "%d\t%s\n", i, display(v))
	}
	tw.Flush()
	if s.name != "" {
		fmt.Fprintf(&b, "Name: %s, Length: %d", s.name, len(s.values))
	} else {
		fmt.Fprintf(&b, "Length: %d", len(s.values))
	}
	return b.String()
}

func (s *Series) Type() string         { return "Series" }
func (s *Series) Truth() starlark.Bool { return len(s.values) > 0 }
func (s *Series) Len() int             { return len(s.values) }

func (s *Series) Index(i int) starlark.Value { return s.values[i] }

func (s *Series) Iterate() starlark.Iterator { return starlark.Tuple(s.values).Iterate() }

func (s *Series) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: Series")
}

func (s *Series) Freeze() {
	if s.frozen {
		return
	}
	s.frozen = true
	for _, v := range s.values {
		v.Freeze()
	}
}

func (s *Series) shapeSummary() string {
	return fmt.Sprintf("Series shape: (%d,)", len(s.values))
}

var seriesMethods = map[string]*starlark.Builtin{
	"sum":    builtin("sum", seriesReduce(sumValues)),
	"mean":   builtin("mean", seriesReduce(meanValues)),
	"min":    builtin("min", seriesReduce(minValues)),
	"max":    builtin("max", seriesReduce(maxValues)),
	"std":    builtin("std", seriesReduce(stdValues)),
	"tolist": builtin("tolist", seriesToList),
	"head":   builtin("head", seriesHead),
}

func (s *Series) Attr(name string) (starlark.Value, error) {
	switch name {
	case "shape":
		return starlark.Tuple{starlark.MakeInt(len(s.values))}, nil
	case "name":
		if s.name == "" {
			return starlark.None, nil
		}
		return starlark.String(s.name), nil
	}
	if b, ok := seriesMethods[name]; ok {
		return b.BindReceiver(s), nil
	}
	return nil, nil
}

func (s *Series) AttrNames() []string {
	names := []string{"name", "shape"}
	for name := range seriesMethods {
		names = append(names, name)
	}
	return names
}

// Binary applies an arithmetic operator element-wise, against either a
// scalar or another series of the same length.
func (s *Series) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH, syntax.SLASHSLASH, syntax.PERCENT:
	default:
		return nil, nil
	}

	other, isSeries := y.(*Series)
	if isSeries && len(other.values) != len(s.values) {
		return nil, fmt.Errorf("Series length mismatch: %d vs %d", len(s.values), len(other.values))
	}

	out := make([]starlark.Value, len(s.values))
	for i, v := range s.values {
		w := y
		if isSeries {
			w = other.values[i]
		}
		l, r := v, w
		if side == starlark.Right {
			l, r = w, v
		}
		res, err := starlark.Binary(op, l, r)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return &Series{name: s.name, values: out}, nil
}

func seriesReduce(fn func([]starlark.Value) (starlark.Value, error)) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		v, err := fn(b.Receiver().(*Series).values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return v, nil
	}
}

func seriesToList(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	s := b.Receiver().(*Series)
	return starlark.NewList(append([]starlark.Value(nil), s.values...)), nil
}

func seriesHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	s := b.Receiver().(*Series)
	lo, hi := window(len(s.values), n, false)
	return NewSeries(s.name, s.values[lo:hi]), nil
}

// Frame is a table of equally long named columns.
type Frame struct {
	columns []string
	data    map[string][]starlark.Value
	frozen  bool
}

var (
	_ starlark.Mapping    = (*Frame)(nil)
	_ starlark.HasSetKey  = (*Frame)(nil)
	_ starlark.Sequence   = (*Frame)(nil)
	_ starlark.HasAttrs   = (*Frame)(nil)
	_ shaped              = (*Frame)(nil)
	_ starlark.Comparable = (*Frame)(nil)
)

func newFrame() *Frame {
	return &Frame{data: make(map[string][]starlark.Value)}
}

// rows returns the number of rows.
func (f *Frame) rows() int {
	if len(f.columns) == 0 {
		return 0
	}
	return len(f.data[f.columns[0]])
}

// addColumn appends or replaces a column. values must already have the
// frame's length unless the frame has no columns yet.
func (f *Frame) addColumn(name string, values []starlark.Value) error {
	if len(f.columns) > 0 && len(values) != f.rows() {
		return fmt.Errorf("All arrays must be of the same length: column %q has %d values, want %d", name, len(values), f.rows())
	}
	if _, exists := f.data[name]; !exists {
		f.columns = append(f.columns, name)
	}
	f.data[name] = values
	return nil
}

func (f *Frame) String() string {
	if len(f.columns) == 0 {
		return "Empty DataFrame"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(f.columns, "\t"))
	for i := 0; i < f.rows(); i++ {
		fmt.Fprintf(tw, "%d\t", i)
		for _, c := range f.columns {
			fmt.Fprintf(tw, "%s\t", display(f.data[c][i]))
		}
		fmt.Fprint(tw, "\n")
	}
	tw.Flush()

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

func (f *Frame) Type() string         { return "DataFrame" }
func (f *Frame) Truth() starlark.Bool { return f.rows() > 0 }

// Len reports the number of rows; iteration yields column names.
func (f *Frame) Len() int { return f.rows() }

func (f *Frame) Iterate() starlark.Iterator {
	names := make(starlark.Tuple, len(f.columns))
	for i, c := range f.columns {
		names[i] = starlark.String(c)
	}
	return names.Iterate()
}

func (f *Frame) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: DataFrame")
}

func (f *Frame) Freeze() {
	if f.frozen {
		return
	}
	f.frozen = true
	for _, col := range f.data {
		for _, v := range col {
			v.Freeze()
		}
	}
}

// CompareSameType supports == and != between frames.
func (f *Frame) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	g := y.(*Frame)
	switch op {
	case syntax.EQL, syntax.NEQ:
	default:
		return false, fmt.Errorf("%s %s %s not implemented", f.Type(), op, g.Type())
	}
	eq, err := f.equal(g, depth)
	if err != nil {
		return false, err
	}
	if op == syntax.NEQ {
		return !eq, nil
	}
	return eq, nil
}

func (f *Frame) equal(g *Frame, depth int) (bool, error) {
	if len(f.columns) != len(g.columns) || f.rows() != g.rows() {
		return false, nil
	}
	for i, c := range f.columns {
		if g.columns[i] != c {
			return false, nil
		}
		for j, v := range f.data[c] {
			eq, err := starlark.EqualDepth(v, g.data[c][j], depth-1)
			if err != nil || !eq {
				return false, err
			}
		}
	}
	return true, nil
}

// Get returns the named column as a Series.
func (f *Frame) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("DataFrame column key must be string, not %s", k.Type())
	}
	col, found := f.data[name]
	if !found {
		return nil, false, nil
	}
	return NewSeries(name, col), true, nil
}

// SetKey adds or replaces a column. A sequence value must match the frame's
// length; any other value is broadcast to every row.
func (f *Frame) SetKey(k, v starlark.Value) error {
	if f.frozen {
		return fmt.Errorf("cannot insert into frozen DataFrame")
	}
	name, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("DataFrame column key must be string, not %s", k.Type())
	}

	var values []starlark.Value
	if _, isIterable := v.(starlark.Iterable); isIterable {
		vs, err := toValues(v)
		if err != nil {
			return err
		}
		values = vs
	} else {
		values = make([]starlark.Value, f.rows())
		for i := range values {
			values[i] = v
		}
	}
	return f.addColumn(name, values)
}

func (f *Frame) shapeSummary() string {
	quoted := make([]string, len(f.columns))
	for i, c := range f.columns {
		quoted[i] = "'" + c + "'"
	}
	return fmt.Sprintf("DataFrame shape: (%d, %d), Columns: [%s]", f.rows(), len(f.columns), strings.Join(quoted, ", "))
}

var frameMethods = map[string]*starlark.Builtin{
	"head":     builtin("head", frameSlice(false)),
	"tail":     builtin("tail", frameSlice(true)),
	"describe": builtin("describe", frameDescribe),
}

func (f *Frame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "shape":
		return starlark.Tuple{starlark.MakeInt(f.rows()), starlark.MakeInt(len(f.columns))}, nil
	case "columns":
		cols := make([]starlark.Value, len(f.columns))
		for i, c := range f.columns {
			cols[i] = starlark.String(c)
		}
		return starlark.NewList(cols), nil
	}
	if b, ok := frameMethods[name]; ok {
		return b.BindReceiver(f), nil
	}
	return nil, nil
}

func (f *Frame) AttrNames() []string {
	names := []string{"columns", "shape"}
	for name := range frameMethods {
		names = append(names, name)
	}
	return names
}

// window returns the [lo, hi) bounds of the first (or last) n of length items.
func window(length, n int, last bool) (int, int) {
	n = max(0, min(n, length))
	if last {
		return length - n, length
	}
	return 0, n
}

func frameSlice(last bool) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		n := 5
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
			return nil, err
		}
		f := b.Receiver().(*Frame)
		lo, hi := window(f.rows(), n, last)
		out := newFrame()
		for _, c := range f.columns {
			out.columns = append(out.columns, c)
			out.data[c] = append([]starlark.Value(nil), f.data[c][lo:hi]...)
		}
		return out, nil
	}
}

// frameDescribe returns count, mean, min and max for every numeric column.
func frameDescribe(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	f := b.Receiver().(*Frame)
	out := starlark.NewDict(len(f.columns))
	for _, c := range f.columns {
		col := f.data[c]
		if _, err := floats(col); err != nil || len(col) == 0 {
			continue
		}
		mean, _ := meanValues(col)
		lo, _ := minValues(col)
		hi, _ := maxValues(col)
		stats := starlark.NewDict(4)
		stats.SetKey(starlark.String("count"), starlark.MakeInt(len(col)))
		stats.SetKey(starlark.String("mean"), mean)
		stats.SetKey(starlark.String("min"), lo)
		stats.SetKey(starlark.String("max"), hi)
		if err := out.SetKey(starlark.String(c), stats); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// toValues copies the elements of a sequence-like value.
func toValues(v starlark.Value) ([]starlark.Value, error) {
	switch x := v.(type) {
	case *Series:
		return append([]starlark.Value(nil), x.values...), nil
	case starlark.Iterable:
		it := x.Iterate()
		defer it.Done()
		var out []starlark.Value
		var elem starlark.Value
		for it.Next(&elem) {
			out = append(out, elem)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a sequence, got %s", v.Type())
}

// newFramesModule builds the pd alias.
func newFramesModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: aliasFrames,
		Members: starlark.StringDict{
			"DataFrame": builtin("DataFrame", pdDataFrame),
			"Series":    builtin("Series", pdSeries),
			"concat":    builtin("concat", pdConcat),
		},
	}
}

// pdDataFrame builds a frame from a dict of columns or a list of records.
func pdDataFrame(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "data?", &data); err != nil {
		return nil, err
	}

	f := newFrame()
	switch d := data.(type) {
	case starlark.NoneType:
	case *starlark.Dict:
		for _, item := range d.Items() {
			name, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("%s: column name must be string, not %s", b.Name(), item[0].Type())
			}
			values, err := toValues(item[1])
			if err != nil {
				return nil, fmt.Errorf("%s: column %q: %w", b.Name(), name, err)
			}
			if err := f.addColumn(name, values); err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
		}
	case *starlark.List, starlark.Tuple:
		records, _ := toValues(d)
		if err := fillRecords(f, records); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
	default:
		return nil, fmt.Errorf("%s: data must be a dict of columns or a list of records, not %s", b.Name(), data.Type())
	}
	return f, nil
}

// fillRecords loads a list of dicts, one per row. Columns appear in first-seen
// order and missing cells are None.
func fillRecords(f *Frame, records []starlark.Value) error {
	var order []string
	seen := make(map[string]bool)
	rows := make([]*starlark.Dict, len(records))
	for i, r := range records {
		d, ok := r.(*starlark.Dict)
		if !ok {
			return fmt.Errorf("record %d is %s, want dict", i, r.Type())
		}
		rows[i] = d
		for _, k := range d.Keys() {
			name, ok := starlark.AsString(k)
			if !ok {
				return fmt.Errorf("record %d: column name must be string, not %s", i, k.Type())
			}
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}
	for _, name := range order {
		col := make([]starlark.Value, len(rows))
		for i, d := range rows {
			v, found, _ := d.Get(starlark.String(name))
			if !found {
				v = starlark.None
			}
			col[i] = v
		}
		if err := f.addColumn(name, col); err != nil {
			return err
		}
	}
	return nil
}

func pdSeries(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		data starlark.Value
		name starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "data", &data, "name?", &name); err != nil {
		return nil, err
	}
	values, err := toValues(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	label := ""
	if name != starlark.None {
		label = display(name)
	}
	return &Series{name: label, values: values}, nil
}

// pdConcat stacks frames with identical columns vertically.
func pdConcat(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var objs starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "objs", &objs); err != nil {
		return nil, err
	}
	items, err := toValues(objs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	out := newFrame()
	for i, item := range items {
		f, ok := item.(*Frame)
		if !ok {
			return nil, fmt.Errorf("%s: item %d is %s, want DataFrame", b.Name(), i, item.Type())
		}
		if i == 0 {
			for _, c := range f.columns {
				out.columns = append(out.columns, c)
				out.data[c] = append([]starlark.Value(nil), f.data[c]...)
			}
			continue
		}
		if strings.Join(f.columns, "\x00") != strings.Join(out.columns, "\x00") {
			return nil, fmt.Errorf("%s: item %d has columns %v, want %v", b.Name(), i, f.columns, out.columns)
		}
		for _, c := range f.columns {
			out.data[c] = append(out.data[c], f.data[c]...)
		}
	}
	return out, nil
}
