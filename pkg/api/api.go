// Package api implements the REST surface of the calculator: expression
// evaluation, the smart delete range, time breakdowns and unit conversion.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/numberhub/pkg/expr"
	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/store"
	"github.com/lemonberrylabs/numberhub/pkg/textfield"
	"github.com/lemonberrylabs/numberhub/pkg/types"
	"github.com/lemonberrylabs/numberhub/pkg/units"
)

// Server is the REST API server.
type Server struct {
	app    *fiber.App
	svc    *units.Service
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for internal errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new API server over svc.
func New(svc *units.Service, opts ...Option) *Server {
	srv := &Server{svc: svc, logger: slog.Default()}
	for _, o := range opts {
		o(srv)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	// Calculator
	app.Post("/v1/evaluate", srv.evaluate)
	app.Post("/v1/delete-range", srv.deleteRange)
	app.Post("/v1/time\\:decompose", srv.decomposeTime)

	// Converter
	app.Post("/v1/convert", srv.convert)
	app.Get("/v1/units", srv.listUnits)
	app.Get("/v1/units/:id", srv.getUnit)
	app.Get("/v1/units/:id/pair", srv.getPair)
	app.Put("/v1/units/:id/pair", srv.setPair)
	app.Post("/v1/units/:id\\:favorite", srv.toggleFavorite)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// --- Calculator Handlers ---

type evaluateRequest struct {
	Expression string `json:"expression"`
	Precision  *int   `json:"precision"`
	AngleMode  string `json:"angleMode"`
}

func (s *Server) evaluate(c *fiber.Ctx) error {
	var req evaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}
	precision, err := s.precision(req.Precision)
	if err != nil {
		return badRequest(c, err.Error())
	}
	mode := s.svc.AngleMode()
	if req.AngleMode != "" {
		if mode, err = stdlib.ParseAngleMode(req.AngleMode); err != nil {
			return s.writeError(c, err)
		}
	}

	res := expr.Evaluate(req.Expression, mode, precision)
	if !res.OK() {
		return s.writeError(c, res.Err)
	}
	out := fiber.Map{
		"value":     types.PlainString(res.Value),
		"display":   res.String(),
		"precision": precision,
	}
	if parsed, err := expr.Parse(req.Expression); err == nil {
		out["expression"] = parsed.String()
	}
	return c.JSON(out)
}

type deleteRangeRequest struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

func (s *Server) deleteRange(c *fiber.Ctx) error {
	var req deleteRangeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Start < 0 || req.End < 0 {
		return badRequest(c, "start and end must not be negative")
	}

	sel := textfield.Selection{Start: req.Start, End: req.End}
	r := textfield.CalculateDeleteRange(req.Text, sel)
	text, caret := textfield.Delete(req.Text, sel)
	return c.JSON(fiber.Map{
		"start": r.Start,
		"end":   r.End,
		"text":  text,
		"caret": caret,
	})
}

type decomposeTimeRequest struct {
	Input string `json:"input"`
	Unit  string `json:"unit"`
}

func (s *Server) decomposeTime(c *fiber.Ctx) error {
	var req decomposeTimeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}
	b, err := s.svc.DecomposeTime(req.Unit, req.Input)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"display":    b.String(),
		"components": b,
	})
}

// --- Converter Handlers ---

type convertRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Input      string `json:"input"`
	Inches     string `json:"inches"`
	Precision  *int   `json:"precision"`
	FormatTime bool   `json:"formatTime"`
}

func (s *Server) convert(c *fiber.Ctx) error {
	var req convertRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}
	if req.From == "" {
		return badRequest(c, "from is required")
	}
	precision, err := s.precision(req.Precision)
	if err != nil {
		return badRequest(c, err.Error())
	}

	// Without a target, convert into every unit of the group.
	if req.To == "" {
		items, err := s.svc.ConvertAll(c.UserContext(), req.From, req.Input, precision)
		if err != nil {
			return s.writeError(c, err)
		}
		return c.JSON(fiber.Map{"from": req.From, "results": items})
	}

	conv := s.svc.Convert(c.UserContext(), units.ConvertRequest{
		From:       req.From,
		To:         req.To,
		Input:      req.Input,
		Inches:     req.Inches,
		Precision:  precision,
		FormatTime: req.FormatTime,
	})
	if !conv.OK() {
		return s.writeError(c, conv.Err)
	}
	return c.JSON(conv)
}

func (s *Server) listUnits(c *fiber.Ctx) error {
	sorting, err := units.ParseSorting(c.Query("sort"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	opts := units.FilterOptions{
		Query:         c.Query("q"),
		FavoritesOnly: c.QueryBool("favorites", false),
		Sorting:       sorting,
	}
	for _, g := range strings.Split(c.Query("group"), ",") {
		if g = strings.TrimSpace(g); g != "" {
			opts.Groups = append(opts.Groups, units.Group(g))
		}
	}

	views, err := s.svc.Filter(c.UserContext(), opts)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"units": views})
}

func (s *Server) getUnit(c *fiber.Ctx) error {
	id := c.Params("id")
	u, err := s.svc.Catalog().Unit(id)
	if err != nil {
		return s.writeError(c, err)
	}
	st, err := s.svc.Stats(c.UserContext(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(units.UnitView{Unit: u, Stats: st})
}

func (s *Server) getPair(c *fiber.Ctx) error {
	p, err := s.svc.Pair(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(p)
}

type setPairRequest struct {
	PairID string `json:"pairId"`
}

func (s *Server) setPair(c *fiber.Ctx) error {
	var req setPairRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}
	if req.PairID == "" {
		return badRequest(c, "pairId is required")
	}
	st, err := s.svc.SetPair(c.UserContext(), c.Params("id"), req.PairID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(st)
}

func (s *Server) toggleFavorite(c *fiber.Ctx) error {
	st, err := s.svc.ToggleFavorite(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(st)
}

// --- Helpers ---

func (s *Server) precision(p *int) (int, error) {
	if p == nil {
		return s.svc.Precision(), nil
	}
	if *p < 0 || *p > 1000 {
		return 0, fmt.Errorf("precision must be between 0 and 1000, got %d", *p)
	}
	return *p, nil
}

// HTTPStatus maps an error to its HTTP code and canonical status name.
func HTTPStatus(err error) (int, string) {
	if errors.Is(err, store.ErrEmptyUnitID) {
		return fiber.StatusBadRequest, "INVALID_ARGUMENT"
	}
	var ce *types.CalcError
	if !errors.As(err, &ce) {
		return fiber.StatusInternalServerError, "INTERNAL"
	}
	switch ce.Kind {
	case types.KindMalformed, types.KindDivideByZero, types.KindOverflow:
		return fiber.StatusBadRequest, "INVALID_ARGUMENT"
	case types.KindConversion, types.KindCurrency:
		return fiber.StatusBadRequest, "FAILED_PRECONDITION"
	case types.KindNetworkUnavailable:
		return fiber.StatusServiceUnavailable, "UNAVAILABLE"
	case types.KindUnknownUnit:
		return fiber.StatusNotFound, "NOT_FOUND"
	}
	return fiber.StatusInternalServerError, "INTERNAL"
}

func (s *Server) writeError(c *fiber.Ctx, err error) error {
	code, status := HTTPStatus(err)
	if code == fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	body := fiber.Map{
		"code":    code,
		"message": err.Error(),
		"status":  status,
	}
	var ce *types.CalcError
	if errors.As(err, &ce) {
		body["kind"] = ce.Kind
	}
	return c.Status(code).JSON(fiber.Map{"error": body})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    fiber.StatusBadRequest,
			"message": msg,
			"status":  "INVALID_ARGUMENT",
		},
	})
}
