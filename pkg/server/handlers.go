package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/draft"
	"github.com/ArionMiles/pocketledger/pkg/parser"
	"github.com/ArionMiles/pocketledger/pkg/session"
	"github.com/ArionMiles/pocketledger/pkg/submit"
	"github.com/ArionMiles/pocketledger/pkg/summary"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	defaultMonths    = 6
	maxMonths        = 24
)

type errorBody struct {
	Error    string          `json:"error"`
	Problems []draft.Problem `json:"problems,omitempty"`
	Draft    *draft.Draft    `json:"draft,omitempty"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
}

// owner returns the authenticated user. The auth middleware guarantees it on
// /api routes.
func owner(c *gin.Context) uuid.UUID {
	id, _ := session.OwnerFrom(c.Request.Context())
	return id
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type parseRequest struct {
	Text   string `json:"text"`
	Parser string `json:"parser"`
	// Draft is the draft currently on screen. Fields touched in it survive
	// the reparse.
	Draft *draft.Draft `json:"draft"`
}

func (s *Server) parseDraft(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := s.parserByName(req.Parser)
	if err != nil {
		badRequest(c, err)
		return
	}

	d := p.Parse(req.Text, s.parseContext(c.Request.Context(), owner(c)))
	if req.Draft != nil {
		d = draft.Reparse(*req.Draft, d)
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) parserByName(name string) (parser.Parser, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = parser.MarkerName
	}
	p, ok := s.parsers[name]
	if !ok {
		return nil, fmt.Errorf("unknown parser %q (available: %s)", name, strings.Join(parser.Names(), ", "))
	}
	return p, nil
}

type applyRequest struct {
	Draft draft.Draft `json:"draft"`
	Field string      `json:"field"`
	Value string      `json:"value"`
	Label string      `json:"label"`
}

func (s *Server) applyChange(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	field, err := draft.ParseField(req.Field)
	if err != nil {
		badRequest(c, err)
		return
	}
	next, err := draft.Apply(req.Draft, draft.Change{Field: field, Value: req.Value, Label: req.Label})
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Draft: &req.Draft})
		return
	}
	c.JSON(http.StatusOK, next)
}

type submitRequest struct {
	Draft draft.Draft `json:"draft"`
}

func (s *Server) createTransaction(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.submit(c, req.Draft)
}

type quickRequest struct {
	Text string `json:"text"`
}

// quickTransaction classifies a sentence with the keyword parser and records
// it in one step.
func (s *Server) quickTransaction(c *gin.Context) {
	var req quickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(c, errors.New("text is required"))
		return
	}
	d := s.parsers[parser.KeywordName].Parse(req.Text, s.parseContext(c.Request.Context(), owner(c)))
	s.submit(c, d)
}

func (s *Server) submit(c *gin.Context, d draft.Draft) {
	ctx := c.Request.Context()
	who := owner(c)

	rec, err := s.submitter.Submit(ctx, who, d)
	if err != nil {
		s.writeSubmitError(c, err)
		return
	}
	s.noteCategory(ctx, who, rec.Category)
	c.JSON(http.StatusCreated, s.view(rec))
}

func (s *Server) writeSubmitError(c *gin.Context, err error) {
	var verr *draft.ValidationError
	var failure *submit.Failure
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, errorBody{Error: verr.Error(), Problems: verr.Problems})
	case errors.Is(err, submit.ErrInFlight):
		c.JSON(http.StatusConflict, errorBody{Error: err.Error()})
	case errors.As(err, &failure):
		c.JSON(failureStatus(failure.Err), errorBody{Error: failure.Notification, Draft: &failure.Draft})
	default:
		c.JSON(http.StatusInternalServerError, errorBody{Error: submit.NoticeGeneric})
	}
}

func failureStatus(err error) int {
	switch {
	case errors.Is(err, api.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, api.ErrConstraint):
		return http.StatusUnprocessableEntity
	case errors.Is(err, api.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// noteCategory drops the cached lists when a record introduces a category
// the owner has not used before.
func (s *Server) noteCategory(ctx context.Context, who uuid.UUID, category string) {
	known, err := s.lookup.Categories(ctx, who)
	if err != nil {
		return
	}
	for _, k := range known {
		if strings.EqualFold(k, category) {
			return
		}
	}
	s.lookup.Invalidate(who)
}

// recordView is a record with the fields a transaction list displays.
type recordView struct {
	api.Record
	Signed   decimal.Decimal `json:"signed_amount"`
	Display  string          `json:"display_amount"`
	DayLabel string          `json:"day_label"`
}

func (s *Server) view(r api.Record) recordView {
	signed := r.SignedAmount()
	display := s.format.FormatSigned(signed)
	if r.Type == api.TypeTransfer {
		display = s.format.Format(r.Amount)
	}
	return recordView{
		Record:   r,
		Signed:   signed,
		Display:  display,
		DayLabel: dayLabel(r.Date, s.today()),
	}
}

func dayLabel(d, today civil.Date) string {
	switch d {
	case today:
		return "Today"
	case today.AddDays(-1):
		return "Yesterday"
	default:
		return d.In(time.UTC).Format("Jan 2, 2006")
	}
}

func (s *Server) listTransactions(c *gin.Context) {
	filter := api.RecordFilter{OwnerID: owner(c), Limit: defaultListLimit}

	var err error
	if filter.From, err = dateParam(c, "from"); err != nil {
		badRequest(c, err)
		return
	}
	if filter.To, err = dateParam(c, "to"); err != nil {
		badRequest(c, err)
		return
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, fmt.Errorf("limit must be a positive integer"))
			return
		}
		filter.Limit = min(n, maxListLimit)
	}

	records, err := s.store.Records(c.Request.Context(), filter)
	if err != nil {
		s.storeError(c, "listing transactions", err)
		return
	}
	views := make([]recordView, len(records))
	for i, r := range records {
		views[i] = s.view(r)
	}
	c.JSON(http.StatusOK, views)
}

func dateParam(c *gin.Context, name string) (civil.Date, error) {
	v := c.Query(name)
	if v == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%s must be a date (YYYY-MM-DD)", name)
	}
	return d, nil
}

func (s *Server) storeError(c *gin.Context, action string, err error) {
	s.logger.Error(action, "error", err, "request_id", c.GetString(requestIDKey))
	switch {
	case errors.Is(err, api.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, errorBody{Error: submit.NoticeUnauthenticated})
	case errors.Is(err, api.ErrConstraint):
		c.JSON(http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, api.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: submit.NoticeUnavailable})
	default:
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.lookup.Accounts(c.Request.Context(), owner(c))
	if err != nil {
		s.storeError(c, "listing accounts", err)
		return
	}
	if accounts == nil {
		accounts = []api.Account{}
	}
	c.JSON(http.StatusOK, accounts)
}

type accountRequest struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	OpeningBalance string `json:"opening_balance"`
}

func (s *Server) createAccount(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(c, errors.New("name is required"))
		return
	}
	opening := decimal.Zero
	if v := strings.TrimSpace(req.OpeningBalance); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			badRequest(c, errors.New("opening_balance must be a number"))
			return
		}
		opening = d
	}
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = "checking"
	}

	who := owner(c)
	account, err := s.store.CreateAccount(c.Request.Context(), api.Account{
		OwnerID:        who,
		Name:           req.Name,
		Kind:           kind,
		OpeningBalance: opening,
		Active:         true,
	})
	if err != nil {
		s.storeError(c, "creating account", err)
		return
	}
	s.lookup.Invalidate(who)
	c.JSON(http.StatusCreated, account)
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.lookup.Categories(c.Request.Context(), owner(c))
	if err != nil {
		s.storeError(c, "listing categories", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// summaryResponse is the dashboard report plus its headline figures
// formatted for display.
type summaryResponse struct {
	summary.Report
	Display map[string]string `json:"display"`
}

func (s *Server) getSummary(c *gin.Context) {
	day := s.today()
	if v := c.Query("month"); v != "" {
		t, err := time.Parse("2006-01", v)
		if err != nil {
			badRequest(c, errors.New("month must be YYYY-MM"))
			return
		}
		day = civil.Date{Year: t.Year(), Month: t.Month(), Day: 1}
	}
	months := defaultMonths
	if v := c.Query("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, errors.New("months must be a positive integer"))
			return
		}
		months = min(n, maxMonths)
	}

	ctx := c.Request.Context()
	who := owner(c)
	accounts, err := s.lookup.Accounts(ctx, who)
	if err != nil {
		s.storeError(c, "loading accounts", err)
		return
	}
	records, err := s.store.Records(ctx, api.RecordFilter{OwnerID: who})
	if err != nil {
		s.storeError(c, "loading transactions", err)
		return
	}

	report := summary.Build(accounts, records, day, months)
	c.JSON(http.StatusOK, summaryResponse{
		Report: report,
		Display: map[string]string{
			"net_worth":   s.format.Format(report.NetWorth.Total),
			"assets":      s.format.Format(report.NetWorth.Assets),
			"liabilities": s.format.Format(report.NetWorth.Liabilities),
			"income":      s.format.Format(report.Month.Income),
			"expenses":    s.format.Format(report.Month.Expenses),
			"savings":     s.format.FormatSigned(report.Month.Savings),
		},
	})
}
