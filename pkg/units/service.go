package units

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/sahilm/fuzzy"

	"github.com/lemonberrylabs/numberhub/pkg/expr"
	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/store"
	"github.com/lemonberrylabs/numberhub/pkg/timeunit"
	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// Service is the unit converter: it evaluates the input expression,
// converts it and records usage.
type Service struct {
	catalog   *Catalog
	repo      store.Repository
	currency  *Currency
	mode      stdlib.AngleMode
	precision int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRepository sets the usage repository. Defaults to store.NewMemory().
func WithRepository(r store.Repository) Option {
	return func(s *Service) { s.repo = r }
}

// WithCurrency enables currency conversion.
func WithCurrency(c *Currency) Option {
	return func(s *Service) { s.currency = c }
}

// WithAngleMode sets the angle mode used to evaluate inputs.
func WithAngleMode(m stdlib.AngleMode) Option {
	return func(s *Service) { s.mode = m }
}

// WithPrecision sets the default display precision.
func WithPrecision(p int) Option {
	return func(s *Service) { s.precision = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a converter over catalog.
func NewService(catalog *Catalog, opts ...Option) *Service {
	s := &Service{
		catalog:   catalog,
		precision: types.DefaultPrecision,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.repo == nil {
		s.repo = store.NewMemory()
	}
	return s
}

// Catalog returns the unit catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// AngleMode returns the angle mode inputs are evaluated in.
func (s *Service) AngleMode() stdlib.AngleMode {
	return s.mode
}

// Precision returns the default display precision.
func (s *Service) Precision() int {
	return s.precision
}

// DecomposeTime evaluates input, reads it in the time unit unitID (second
// when empty) and breaks it down into days through attoseconds.
func (s *Service) DecomposeTime(unitID, input string) (timeunit.Breakdown, error) {
	if unitID == "" {
		unitID = "second"
	}
	u, err := s.catalog.Unit(unitID)
	if err != nil {
		return timeunit.Breakdown{}, err
	}
	if u.Group != GroupTime {
		return timeunit.Breakdown{}, types.NewConversionError(fmt.Sprintf("%s is not a time unit", u.ID), nil)
	}
	value, err := s.evaluate(input, s.precision)
	if err != nil {
		return timeunit.Breakdown{}, err
	}
	return timeunit.DecomposeUnit(value, u.Factor)
}

// ConvertRequest describes one conversion. Input is an expression; empty
// input means 0. For number bases Input is a digit string in From's
// radix. Inches is a second expression added to Input when From is foot.
// A negative Precision selects the service default.
type ConvertRequest struct {
	From       string
	To         string
	Input      string
	Inches     string
	Precision  int
	FormatTime bool
}

// Conversion is the tagged outcome of Convert.
type Conversion struct {
	From      Unit
	To        Unit
	Input     *apd.Decimal
	Value     *apd.Decimal
	Precision int
	Time      *timeunit.Breakdown
	FootInch  *FootInch
	Text      string // number base result
	Err       *types.CalcError
}

// OK reports whether the conversion succeeded.
func (c Conversion) OK() bool {
	return c.Err == nil && c.Value != nil
}

// String returns the rounded value, or the error kind.
func (c Conversion) String() string {
	if c.Err != nil {
		return string(c.Err.Kind)
	}
	if c.Text != "" {
		return c.Text
	}
	return types.FormatDecimal(c.Value, c.Precision)
}

// MarshalJSON renders the conversion for API responses.
func (c Conversion) MarshalJSON() ([]byte, error) {
	if c.Err != nil {
		return json.Marshal(map[string]interface{}{
			"error": map[string]interface{}{"kind": c.Err.Kind, "message": c.Err.Error()},
		})
	}
	out := map[string]interface{}{
		"from":    c.From.ID,
		"to":      c.To.ID,
		"input":   types.PlainString(c.Input),
		"value":   types.PlainString(c.Value),
		"display": c.String(),
	}
	if c.Text != "" {
		out["value"] = c.Text
	}
	if c.Time != nil {
		out["time"] = c.Time
	}
	if c.FootInch != nil {
		out["footInch"] = c.FootInch
	}
	return json.Marshal(out)
}

func failed(err error) Conversion {
	return Conversion{Err: types.Failure(err).Err}
}

// Convert evaluates req.Input and converts it. It never panics; every
// failure is reported through Conversion.Err.
func (s *Service) Convert(ctx context.Context, req ConvertRequest) (conv Conversion) {
	defer func() {
		if r := recover(); r != nil {
			conv = failed(types.NewConversionError(fmt.Sprintf("%v", r), nil))
		}
	}()

	from, err := s.catalog.Unit(req.From)
	if err != nil {
		return failed(err)
	}
	to, err := s.catalog.Unit(req.To)
	if err != nil {
		return failed(err)
	}
	if from.Group != to.Group {
		return failed(types.NewConversionError(fmt.Sprintf("cannot convert %s to %s", from.Group, to.Group), nil))
	}

	precision := req.Precision
	if precision < 0 {
		precision = s.precision
	}
	if from.Group == GroupNumberBase {
		return s.convertNumberBase(ctx, from, to, req.Input)
	}

	input, err := s.evaluate(req.Input, precision)
	if err != nil {
		return failed(err)
	}
	if req.Inches != "" {
		if input, err = s.addInches(ctx, from, input, req.Inches, precision); err != nil {
			return failed(err)
		}
	}

	conv = Conversion{From: from, To: to, Input: input, Precision: precision}
	if from.Group == GroupTime && req.FormatTime {
		b, err := timeunit.DecomposeUnit(input, from.Factor)
		if err != nil {
			return failed(err)
		}
		conv.Time = &b
	}

	value, err := s.convertValue(ctx, from, to, input, precision)
	if err != nil {
		return failed(err)
	}
	conv.Value = value
	if to.ID == footID {
		if inch, err := s.catalog.Unit(inchID); err == nil {
			fi, err := SplitFeet(s.env(precision), to, inch, value, precision)
			if err != nil {
				return failed(err)
			}
			conv.FootInch = &fi
		}
	}
	s.recordUsage(ctx, from.ID, to.ID)
	return conv
}

func (s *Service) convertNumberBase(ctx context.Context, from, to Unit, input string) Conversion {
	n, err := ParseNumberBase(from, input)
	if err != nil {
		return failed(err)
	}
	text, err := FormatNumberBase(to, n)
	if err != nil {
		return failed(err)
	}
	v := bigToDecimal(n)
	s.recordUsage(ctx, from.ID, to.ID)
	return Conversion{From: from, To: to, Input: v, Value: v, Text: text}
}

// addInches evaluates the inches expression and adds it, in feet, to
// input. Only a foot input takes a second inches field.
func (s *Service) addInches(ctx context.Context, from Unit, input *apd.Decimal, inches string, precision int) (*apd.Decimal, error) {
	if from.ID != footID {
		return nil, types.NewConversionError(fmt.Sprintf("an inches input needs %s as the source unit, got %s", footID, from.ID), nil)
	}
	inch, err := s.catalog.Unit(inchID)
	if err != nil {
		return nil, err
	}
	v, err := s.evaluate(inches, precision)
	if err != nil {
		return nil, err
	}
	feet, err := s.convertValue(ctx, inch, from, v, precision)
	if err != nil {
		return nil, err
	}
	return s.env(precision).Add(input, feet)
}

// env returns an evaluation environment wide enough for precision.
func (s *Service) env(precision int) stdlib.Env {
	env := stdlib.NewEnv(s.mode)
	if precision+10 > env.Scale {
		env.Scale = precision + 10
	}
	return env
}

// evaluate runs the input expression. Division by zero keeps its kind;
// every other evaluation failure is bad input.
func (s *Service) evaluate(input string, precision int) (*apd.Decimal, error) {
	res := expr.Evaluate(input, s.mode, precision)
	if res.OK() {
		return res.Value, nil
	}
	if res.Kind() == types.KindDivideByZero {
		return nil, res.Err
	}
	return nil, &types.CalcError{Kind: types.KindBadInput, Message: res.Err.Message, Pos: res.Err.Pos, Err: res.Err}
}

func (s *Service) convertValue(ctx context.Context, from, to Unit, value *apd.Decimal, precision int) (*apd.Decimal, error) {
	if from.Group == GroupCurrency {
		if s.currency == nil {
			return nil, types.NewCurrencyError(from.ID, to.ID)
		}
		return s.currency.Convert(ctx, from.ID, to.ID, value)
	}

	out, err := Convert(s.env(precision), from, to, value)
	if err == nil {
		return out, nil
	}
	switch types.KindOf(err) {
	case types.KindDivideByZero, types.KindConversion:
		return nil, err
	}
	return nil, types.NewConversionError("conversion failed", err)
}

// recordUsage bumps both counters and remembers the pair. Failures are
// logged; they never fail a conversion.
func (s *Service) recordUsage(ctx context.Context, from, to string) {
	if _, err := s.repo.IncrementCounter(ctx, from); err != nil {
		s.logger.Warn("failed to record unit usage", "unit", from, "error", err)
	}
	if from != to {
		if _, err := s.repo.IncrementCounter(ctx, to); err != nil {
			s.logger.Warn("failed to record unit usage", "unit", to, "error", err)
		}
	}
	if _, err := s.repo.SetPair(ctx, from, to); err != nil {
		s.logger.Warn("failed to record unit pair", "unit", from, "error", err)
	}
}

// BatchItem is one row of ConvertAll.
type BatchItem struct {
	Unit      Unit
	Value     *apd.Decimal
	Text      string // number base result
	Available bool
	Precision int
}

// Display returns the rounded value, or the digits of a number base.
func (b BatchItem) Display() string {
	if b.Text != "" {
		return b.Text
	}
	return types.FormatDecimal(b.Value, b.Precision)
}

// MarshalJSON renders the row for API responses.
func (b BatchItem) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{"unit": b.Unit.ID, "available": b.Available}
	if b.Available {
		out["value"] = types.PlainString(b.Value)
		if b.Text != "" {
			out["value"] = b.Text
		}
		out["display"] = b.Display()
	}
	return json.Marshal(out)
}

// ConvertAll converts input from one unit into every other unit of its
// group. Units that cannot be reached (e.g. a currency without a rate)
// are marked unavailable instead of failing the batch.
func (s *Service) ConvertAll(ctx context.Context, fromID, input string, precision int) ([]BatchItem, error) {
	from, err := s.catalog.Unit(fromID)
	if err != nil {
		return nil, err
	}
	if precision < 0 {
		precision = s.precision
	}
	targets := s.catalog.Group(from.Group)
	items := make([]BatchItem, 0, len(targets))

	if from.Group == GroupNumberBase {
		n, err := ParseNumberBase(from, input)
		if err != nil {
			return nil, err
		}
		v := bigToDecimal(n)
		for _, t := range targets {
			if t.ID == from.ID {
				continue
			}
			text, err := FormatNumberBase(t, n)
			items = append(items, BatchItem{Unit: t, Value: v, Text: text, Available: err == nil})
		}
		return items, nil
	}

	value, err := s.evaluate(input, precision)
	if err != nil {
		return nil, err
	}

	if from.Group == GroupCurrency {
		var converted map[string]*apd.Decimal
		if s.currency != nil {
			ids := make([]string, 0, len(targets))
			for _, t := range targets {
				ids = append(ids, t.ID)
			}
			converted = s.currency.ConvertAll(ctx, from.ID, ids, value)
		}
		for _, t := range targets {
			if t.ID == from.ID {
				continue
			}
			v, ok := converted[t.ID]
			items = append(items, BatchItem{Unit: t, Value: v, Available: ok, Precision: precision})
		}
		return items, nil
	}

	for _, t := range targets {
		if t.ID == from.ID {
			continue
		}
		v, err := s.convertValue(ctx, from, t, value, precision)
		items = append(items, BatchItem{Unit: t, Value: v, Available: err == nil, Precision: precision})
	}
	return items, nil
}

// Stats returns the usage snapshot of a unit.
func (s *Service) Stats(ctx context.Context, id string) (store.UnitStats, error) {
	if _, err := s.catalog.Unit(id); err != nil {
		return store.UnitStats{}, err
	}
	return s.repo.Get(ctx, id)
}

// ToggleFavorite flips the favorite flag of a unit.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (store.UnitStats, error) {
	if _, err := s.catalog.Unit(id); err != nil {
		return store.UnitStats{}, err
	}
	return s.repo.ToggleFavorite(ctx, id)
}

// SetPair stores the preferred target of a unit. Both units must share a
// group.
func (s *Service) SetPair(ctx context.Context, id, pairID string) (store.UnitStats, error) {
	u, err := s.catalog.Unit(id)
	if err != nil {
		return store.UnitStats{}, err
	}
	p, err := s.catalog.Unit(pairID)
	if err != nil {
		return store.UnitStats{}, err
	}
	if u.Group != p.Group {
		return store.UnitStats{}, types.NewConversionError(fmt.Sprintf("cannot pair %s with %s", u.Group, p.Group), nil)
	}
	return s.repo.SetPair(ctx, id, pairID)
}

// Pair picks the default target for id: the stored pair, else the catalog
// pair, else the most used favorite of the group, else the group's first
// unit.
func (s *Service) Pair(ctx context.Context, id string) (Unit, error) {
	u, err := s.catalog.Unit(id)
	if err != nil {
		return Unit{}, err
	}

	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return Unit{}, err
	}
	if st.PairedUnitID != "" {
		if p, err := s.catalog.Unit(st.PairedUnitID); err == nil && p.Group == u.Group {
			return p, nil
		}
	}
	if u.Pair != "" {
		if p, err := s.catalog.Unit(u.Pair); err == nil {
			return p, nil
		}
	}

	group := s.catalog.Group(u.Group)
	stats, err := s.statsByID(ctx)
	if err != nil {
		return Unit{}, err
	}
	var best *Unit
	var bestFreq int64 = -1
	for i := range group {
		st := stats[group[i].ID]
		if !st.Favorite || group[i].ID == id {
			continue
		}
		if st.Frequency > bestFreq {
			best, bestFreq = &group[i], st.Frequency
		}
	}
	if best != nil {
		return *best, nil
	}
	return group[0], nil
}

func (s *Service) statsByID(ctx context.Context) (map[string]store.UnitStats, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]store.UnitStats, len(all))
	for _, st := range all {
		out[st.UnitID] = st
	}
	return out, nil
}

// Sorting orders Filter results.
type Sorting string

// Sortings.
const (
	SortUsage        Sorting = "usage"
	SortAlphabetical Sorting = "alphabetical"
	SortScaleAsc     Sorting = "scale_asc"
	SortScaleDesc    Sorting = "scale_desc"
)

// ParseSorting validates s; empty means usage.
func ParseSorting(s string) (Sorting, error) {
	switch Sorting(strings.ToLower(s)) {
	case "", SortUsage:
		return SortUsage, nil
	case SortAlphabetical:
		return SortAlphabetical, nil
	case SortScaleAsc:
		return SortScaleAsc, nil
	case SortScaleDesc:
		return SortScaleDesc, nil
	}
	return "", fmt.Errorf("unknown sorting '%s'", s)
}

// FilterOptions narrows and orders the unit list.
type FilterOptions struct {
	Query         string
	Groups        []Group
	FavoritesOnly bool
	Sorting       Sorting
}

// UnitView is a unit together with its usage state.
type UnitView struct {
	Unit  Unit
	Stats store.UnitStats
}

// MarshalJSON flattens unit and stats into one object.
func (v UnitView) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(v.Unit)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	out["frequency"] = v.Stats.Frequency
	out["favorite"] = v.Stats.Favorite
	if v.Stats.PairedUnitID != "" {
		out["pairedUnitId"] = v.Stats.PairedUnitID
	}
	return json.Marshal(out)
}

type unitSource []UnitView

func (u unitSource) String(i int) string {
	v := u[i].Unit
	return strings.ToLower(v.Name + " " + v.Short + " " + v.ID)
}

func (u unitSource) Len() int { return len(u) }

// Filter lists units. Without a query, favorites come first and the rest
// follow opts.Sorting; with a query, units are fuzzy-matched against name,
// short name and id and ordered by match quality.
func (s *Service) Filter(ctx context.Context, opts FilterOptions) ([]UnitView, error) {
	stats, err := s.statsByID(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[Group]bool, len(opts.Groups))
	for _, g := range opts.Groups {
		groups[g] = true
	}

	var views []UnitView
	for _, u := range s.catalog.Units() {
		if len(groups) > 0 && !groups[u.Group] {
			continue
		}
		st, ok := stats[u.ID]
		if !ok {
			st = store.UnitStats{UnitID: u.ID}
		}
		if opts.FavoritesOnly && !st.Favorite {
			continue
		}
		views = append(views, UnitView{Unit: u, Stats: st})
	}

	sortViews(views, opts.Sorting)

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	if query == "" {
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Stats.Favorite && !views[j].Stats.Favorite
		})
		return views, nil
	}

	matches := fuzzy.FindFrom(query, unitSource(views))
	out := make([]UnitView, 0, len(matches))
	for _, m := range matches {
		out = append(out, views[m.Index])
	}
	return out, nil
}

func sortViews(views []UnitView, sorting Sorting) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		switch sorting {
		case SortAlphabetical:
			return strings.ToLower(a.Unit.Name) < strings.ToLower(b.Unit.Name)
		case SortScaleAsc:
			return a.Unit.Factor.Cmp(b.Unit.Factor) < 0
		case SortScaleDesc:
			return a.Unit.Factor.Cmp(b.Unit.Factor) > 0
		default:
			return a.Stats.Frequency > b.Stats.Frequency
		}
	})
}
