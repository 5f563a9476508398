// Package ledgerdelivery manages the HTTP delivery layer of the ledger.
package ledgerdelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// Service provides service layer interface needed by ledger delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package ledgerdelivery
type Service interface {
	OpenAccount(ctx context.Context, owner string) (domain.Account, error)
	GetAccount(ctx context.Context, accountID int32) (domain.Account, error)
	ListAccounts(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error)
	ChangeStatus(ctx context.Context, accountID int32, status domain.AccountStatus) (domain.Account, error)
	Deposit(ctx context.Context, accountID int32, amount decimal.Decimal) (domain.LedgerEntry, error)
	Withdraw(ctx context.Context, accountID int32, amount decimal.Decimal) (domain.LedgerEntry, error)
	Transfer(ctx context.Context, fromID, toID int32, amount decimal.Decimal) (domain.LedgerEntry, error)
	GetEntry(ctx context.Context, id int64) (domain.LedgerEntry, error)
	Stats(ctx context.Context, accountID int32) (domain.AccountStats, error)
	History(ctx context.Context, accountID int32, limit, offset int32) ([]domain.LedgerEntry, error)
	AuditTrail(ctx context.Context, limit, offset int32) ([]domain.AuditRecord, error)
}

// Handler facilitates ledger delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns ledger handler.
func NewHandler(s Service) Handler {
	return Handler{service: s}
}

// Register mounts the ledger routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/accounts", h.OpenAccount)
	r.GET("/accounts", h.ListAccounts)
	r.GET("/accounts/:id", h.GetAccount)
	r.PATCH("/accounts/:id/status", h.ChangeStatus)
	r.POST("/accounts/:id/deposits", h.Deposit)
	r.POST("/accounts/:id/withdrawals", h.Withdraw)
	r.GET("/accounts/:id/entries", h.History)
	r.GET("/accounts/:id/stats", h.Stats)
	r.POST("/transfers", h.Transfer)
	r.GET("/entries/:id", h.GetEntry)
	r.GET("/audit", h.Audit)
}

// Account is the wire representation of domain.Account.
type Account struct {
	ID        int32     `json:"id"`
	Owner     string    `json:"owner"`
	Balance   string    `json:"balance"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is the wire representation of domain.LedgerEntry.
type Entry struct {
	ID            int64     `json:"id"`
	Kind          string    `json:"kind"`
	FromAccountID *int32    `json:"from_account_id,omitempty"`
	ToAccountID   *int32    `json:"to_account_id,omitempty"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// Stats summarizes the activity of an account.
type Stats struct {
	AccountID           int32      `json:"account_id"`
	Balance             string     `json:"balance"`
	Status              string     `json:"status"`
	TransactionCount    int64      `json:"transaction_count"`
	LastTransactionTime *time.Time `json:"last_transaction_time"`
}

func accountView(a domain.Account) Account {
	return Account{
		ID:        a.ID,
		Owner:     a.Owner,
		Balance:   moneypkg.Format(a.Balance),
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

func entryView(e domain.LedgerEntry) Entry {
	return Entry{
		ID:            e.ID,
		Kind:          string(e.Kind),
		FromAccountID: e.FromAccountID,
		ToAccountID:   e.ToAccountID,
		Amount:        moneypkg.Format(e.Amount),
		CreatedAt:     e.CreatedAt,
	}
}

// bindErrMsg turns a binding error into a human readable message.
func bindErrMsg(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		field := ve[0]
		return field.Field() + web.GetErrorMsg(field)
	}

	return "invalid request"
}

func badRequest(gctx *gin.Context, err error) {
	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()
	gctx.JSON(http.StatusBadRequest, web.Response{Error: bindErrMsg(err)})
}

// respondErr maps service errors onto HTTP status codes; unknown errors are hidden.
func respondErr(gctx *gin.Context, err error) {
	var code int

	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrAccountNotActive),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidOwner),
		errors.Is(err, domain.ErrInvalidPage):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrEntryNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrAccountNotEmpty):
		code = http.StatusConflict
	default:
		zerolog.Ctx(gctx.Request.Context()).Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(code, web.Error(err))
}

type accountURI struct {
	ID int32 `uri:"id" binding:"required,min=1"`
}

type openAccountRequest struct {
	Owner string `json:"owner" binding:"required,max=64"`
}

type accountData struct {
	Account Account `json:"account"`
}

// OpenAccount handles http request to open an account.
func (h *Handler) OpenAccount(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req openAccountRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		badRequest(gctx, err)
		return
	}

	account, err := h.service.OpenAccount(ctx, req.Owner)
	if err != nil {
		respondErr(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: accountData{accountView(account)}})
}

// GetAccount handles http request to get an account.
func (h *Handler) GetAccount(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var uri accountURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		badRequest(gctx, err)
		return
	}

	account, err := h.service.GetAccount(ctx, uri.ID)
	if err != nil {
		respondErr(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: accountData{accountView(account)}})
}

type listAccountsRequest struct {
	Owner string `form:"owner" binding:"required,max=64"`
	pageRequest
}

type accountsData struct {
	Accounts []Account `json:"accounts"`
}

// ListAccounts handles http request to list the accounts of an owner.
func (h *Handler) ListAccounts(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req listAccountsRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		badRequest(gctx, err)
		return
	}

	accounts, err := h.service.ListAccounts(ctx, req.Owner, req.PageSize, req.offset())
	if err != nil {
		respondErr(gctx, err)
		return
	}

	views := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView(a))
	}

	gctx.JSON(http.StatusOK, web.Response{Data: accountsData{views}})
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required,status"`
}

// ChangeStatus handles http request to freeze, thaw or close an account.
func (h *Handler) ChangeStatus(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var uri accountURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		badRequest(gctx, err)
		return
	}

	var req changeStatusRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		badRequest(gctx, err)
		return
	}

	account, err := h.service.ChangeStatus(ctx, uri.ID, domain.AccountStatus(req.Status))
	if err != nil {
		respondErr(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: accountData{accountView(account)}})
}

type amountRequest struct {
	Amount string `json:"amount" binding:"required,amount"`
}

type entryData struct {
	Entry Entry `json:"entry"`
}

func (h *Handler) moveMoney(gctx *gin.Context, op func(ctx context.Context, id int32, amount decimal.Decimal) (domain.LedgerEntry, error)) {
	ctx := gctx.Request.Context()

	var uri accountURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		badRequest(gctx, err)
		return
	}

	var req amountRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		badRequest(gctx, err)
		return
	}

	amount, err := moneypkg.Parse(req.Amount)
	if err != nil {
		respondErr(gctx, domain.ErrInvalidAmount)
		return
	}

	entry, err := op(ctx, uri.ID, amount)
	if err != nil {
		respondErr(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: entryData{entryView(entry)}})
}

// Deposit handles http request to credit an account.
func (h *Handler) Deposit(gctx *gin.Context) {
	h.moveMoney(gctx, h.service.Deposit)
}

// Withdraw handles http request to debit an account.
func (h *Handler) Withdraw(gctx *gin.Context) {
	h.moveMoney(gctx, h.service.Withdraw)
}

type transferRequest struct {
	FromAccountID int32  `json:"from_account_id" binding:"required,min=1"`
	ToAccountID   int32  `json:"to_account_id" binding:"required,min=1"`
	Amount        string `json:"amount" binding:"required,amount"`
}

// Transfer handles http request to move money between two accounts.
func (h *Handler) Transfer(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req transferRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		badRequest(gctx, err)
		return
	}

	amount, err := moneypkg.Parse(req.Amount)
	if err != nil {
		respondErr(gctx, domain.ErrInvalidAmount)
		return
	}

	entry, err := h.service.Transfer(ctx, req.FromAccountID, req.ToAccountID, amount)
	if err != nil {
		respondErr(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: entryData{entryView(entry)}})
}

type entryURI struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// GetEntry handles http request to get a single ledger entry.
func (h *Handler) GetEntry(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var uri entryURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		badRequest(gctx, err)
		return
	}

	entry, err := h.service.GetEntry(ctx, uri.ID)
	if err != nil {
		respondErr(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: entryData{entryView(entry)}})
}

// pageRequest bounds page_id so that (page_id-1)*page_size stays within int32.
type pageRequest struct {
	PageID   int32 `form:"page_id" binding:"required,min=1,max=1000000"`
	PageSize int32 `form:"page_size" binding:"required,min=1,max=100"`
}

func (p pageRequest) offset() int32 {
	return (p.PageID - 1) * p.PageSize
}

type entriesData struct {
	Entries []Entry `json:"entries"`
}

// History handles http request to list the entries of an account.
func (h *Handler) History(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var uri accountURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		badRequest(gctx, err)
		return
	}

	var page pageRequest
	if err := gctx.ShouldBindQuery(&page); err != nil {
		badRequest(gctx, err)
		return
	}

	entries, err := h.service.History(ctx, uri.ID, page.PageSize, page.offset())
	if err != nil {
		respondErr(gctx, err)
		return
	}

	views := make([]Entry, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView(e))
	}

	gctx.JSON(http.StatusOK, web.Response{Data: entriesData{views}})
}

type statsData struct {
	Stats Stats `json:"stats"`
}

// Stats handles http request to summarize an account.
func (h *Handler) Stats(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var uri accountURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		badRequest(gctx, err)
		return
	}

	st, err := h.service.Stats(ctx, uri.ID)
	if err != nil {
		respondErr(gctx, err)
		return
	}

	stats := Stats{
		AccountID:        st.Account.ID,
		Balance:          moneypkg.Format(st.Account.Balance),
		Status:           string(st.Account.Status),
		TransactionCount: st.TransactionCount,
	}

	if last := st.LastTransactionTime; !last.IsZero() {
		stats.LastTransactionTime = &last
	}

	gctx.JSON(http.StatusOK, web.Response{Data: statsData{stats}})
}

type auditData struct {
	Records []domain.AuditRecord `json:"records"`
}

// Audit handles http request to list audit records.
func (h *Handler) Audit(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var page pageRequest
	if err := gctx.ShouldBindQuery(&page); err != nil {
		badRequest(gctx, err)
		return
	}

	records, err := h.service.AuditTrail(ctx, page.PageSize, page.offset())
	if err != nil {
		respondErr(gctx, err)
		return
	}

	if records == nil {
		records = []domain.AuditRecord{}
	}

	gctx.JSON(http.StatusOK, web.Response{Data: auditData{records}})
}
