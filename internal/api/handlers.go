// internal/api/handlers.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/protocol"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handlers serves the JSON API on top of a Protocol.
type Handlers struct {
	proto  *protocol.Protocol
	logger *zap.Logger
	now    func() time.Time
}

// NewHandlers creates the API handlers.
func NewHandlers(proto *protocol.Protocol, logger *zap.Logger) *Handlers {
	return &Handlers{proto: proto, logger: logger.Named("api"), now: time.Now}
}

type tokenResponse struct {
	Index         uint64 `json:"index"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Address       string `json:"address"`
	CurveAddress  string `json:"curve_address"`
	Creator       string `json:"creator"`
	InitialSupply uint64 `json:"initial_supply"`
	CreatedAt     string `json:"created_at"`
	PoolAddress   string `json:"pool_address,omitempty"`
	Status        string `json:"status,omitempty"`
	Reserve       uint64 `json:"reserve"`
	Sold          uint64 `json:"sold"`
	FeesPaid      uint64 `json:"fees_paid"`
	TotalSupply   uint64 `json:"total_supply"`
	K             string `json:"k,omitempty"`
}

func newTokenResponse(t types.Token) tokenResponse {
	resp := tokenResponse{
		Index:         t.Index,
		Name:          t.Name,
		Symbol:        t.Symbol,
		Address:       t.Address.String(),
		CurveAddress:  t.CurveAddress.String(),
		Creator:       t.Creator.String(),
		InitialSupply: t.InitialSupply,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !t.PoolAddress.IsZero() {
		resp.PoolAddress = t.PoolAddress.String()
	}
	return resp
}

type tradeResponse struct {
	Token     uint64 `json:"token"`
	Side      string `json:"side"`
	Trader    string `json:"trader"`
	AmountIn  uint64 `json:"amount_in"`
	AmountOut uint64 `json:"amount_out"`
	Fee       uint64 `json:"fee"`
	Refund    uint64 `json:"refund,omitempty"`
	Reserve   uint64 `json:"reserve"`
	Sold      uint64 `json:"sold"`

	Migrated       bool   `json:"migrated,omitempty"`
	PoolAddress    string `json:"pool_address,omitempty"`
	MigrationError string `json:"migration_error,omitempty"`
}

func newTradeResponse(t types.TradeResult) tradeResponse {
	return tradeResponse{
		Token:     t.TokenIndex,
		Side:      string(t.Side),
		Trader:    t.Trader.String(),
		AmountIn:  t.AmountIn,
		AmountOut: t.AmountOut,
		Fee:       t.Fee,
		Refund:    t.Refund,
		Reserve:   t.Reserve,
		Sold:      t.Sold,
	}
}

// Health reports network liveness. It answers 503 when the network is not healthy.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := h.proto.Liveness(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Config returns the process-wide protocol settings.
func (h *Handlers) Config(w http.ResponseWriter, _ *http.Request) {
	fees := h.proto.FeeSchedule()
	resp := map[string]any{
		"admin":               h.proto.Admin().String(),
		"tax_address":         h.proto.TaxAddress().String(),
		"creation_fee":        fees.CreationFee,
		"trade_fee_rate":      decimal.New(int64(fees.TradeFeeBps), -4).String(),
		"current_token_index": h.proto.CurrentTokenIndex(),
	}
	if pool := h.proto.PoolAddress(); !pool.IsZero() {
		resp["pool_address"] = pool.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type createTokenRequest struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
	Fee    uint64 `json:"fee"`
}

// CreateToken creates a token on behalf of the signed caller.
func (h *Handlers) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.proto.CreateToken(callerFrom(r.Context()), req.Name, req.Ticker, req.Fee)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTokenResponse(*token))
}

// GetToken returns a token together with its curve.
func (h *Handlers) GetToken(w http.ResponseWriter, r *http.Request) {
	index, ok := h.tokenIndex(w, r)
	if !ok {
		return
	}
	info, err := h.proto.GetToken(index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := newTokenResponse(info.Token)
	resp.Status = string(info.Curve.Status)
	resp.Reserve = info.Curve.Reserve
	resp.Sold = info.Curve.Sold
	resp.FeesPaid = info.Curve.FeesPaid
	resp.TotalSupply = info.TotalSupply
	if info.Curve.K != nil {
		resp.K = info.Curve.K.Dec()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Price returns the marginal curve price.
func (h *Handlers) Price(w http.ResponseWriter, r *http.Request) {
	index, ok := h.tokenIndex(w, r)
	if !ok {
		return
	}
	price, err := h.proto.SpotPrice(index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": index, "price": price.String()})
}

// Quote previews a trade: ?side=buy|sell&amount=N.
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	index, ok := h.tokenIndex(w, r)
	if !ok {
		return
	}
	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid amount: %w", types.ErrInvalidArgument))
		return
	}

	var q types.Quote
	switch types.Side(r.URL.Query().Get("side")) {
	case types.SideBuy:
		q, err = h.proto.QuoteBuy(index, amount)
	case types.SideSell:
		q, err = h.proto.QuoteSell(index, amount)
	default:
		err = fmt.Errorf("side must be buy or sell: %w", types.ErrInvalidArgument)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type tradeRequest struct {
	Amount   uint64                `json:"amount"`
	MinOut   uint64                `json:"min_out"`
	Slippage *types.SlippageConfig `json:"slippage,omitempty"`
}

// minOut resolves the request's output bound. A slippage config takes
// precedence over an explicit min_out and is applied to a fresh quote.
func (req tradeRequest) minOut(quote func() (types.Quote, error)) (uint64, error) {
	if req.Slippage == nil {
		return req.MinOut, nil
	}
	q, err := quote()
	if err != nil {
		return 0, err
	}
	return types.CalculateMinAmountOut(q.AmountOut, *req.Slippage), nil
}

// Buy spends settlement from the signed caller on a token.
func (h *Handlers) Buy(w http.ResponseWriter, r *http.Request) {
	index, ok := h.tokenIndex(w, r)
	if !ok {
		return
	}
	var req tradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	minOut, err := req.minOut(func() (types.Quote, error) { return h.proto.QuoteBuy(index, req.Amount) })
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.proto.Buy(r.Context(), callerFrom(r.Context()), index, req.Amount, minOut)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := newTradeResponse(res.TradeResult)
	if res.Migration != nil {
		resp.Migrated = true
		resp.PoolAddress = res.Migration.PoolAddress.String()
	}
	if res.MigrationError != nil {
		resp.MigrationError = res.MigrationError.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sell sells the signed caller's tokens back to the curve.
func (h *Handlers) Sell(w http.ResponseWriter, r *http.Request) {
	index, ok := h.tokenIndex(w, r)
	if !ok {
		return
	}
	var req tradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	minOut, err := req.minOut(func() (types.Quote, error) { return h.proto.QuoteSell(index, req.Amount) })
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.proto.Sell(r.Context(), callerFrom(r.Context()), index, req.Amount, minOut)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeResponse(*res))
}

// Migrate force-migrates a token. Admin only.
func (h *Handlers) Migrate(w http.ResponseWriter, r *http.Request) {
	index, ok := h.tokenIndex(w, r)
	if !ok {
		return
	}
	res, err := h.proto.ForceMigrate(r.Context(), callerFrom(r.Context()), index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        res.TokenIndex,
		"pool_address": res.PoolAddress.String(),
		"reserve":      res.Reserve,
		"seed_tokens":  res.SeedTokens,
	})
}

// Pause stops curve trading. Admin only.
func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.proto.Pause)
}

// Unpause resumes curve trading. Admin only.
func (h *Handlers) Unpause(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.proto.Unpause)
}

func (h *Handlers) statusChange(w http.ResponseWriter, r *http.Request, op func(solana.PublicKey, uint64) error) {
	index, ok := h.tokenIndex(w, r)
	if !ok {
		return
	}
	if err := op(callerFrom(r.Context()), index); err != nil {
		h.fail(w, r, err)
		return
	}
	info, err := h.proto.GetToken(index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": index, "status": info.Curve.Status})
}

// Balance returns an account's settlement balance.
func (h *Handlers) Balance(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.address(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": owner.String(), "balance": h.proto.Balance(owner)})
}

// TokenBalance returns an account's holdings of one token.
func (h *Handlers) TokenBalance(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.address(w, r)
	if !ok {
		return
	}
	index, ok := h.tokenIndex(w, r)
	if !ok {
		return
	}
	bal, err := h.proto.TokenBalance(index, owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": owner.String(), "token": index, "balance": bal})
}

type addressRequest struct {
	Address string `json:"address"`
}

// SetPool updates the pool pointer. Admin only.
func (h *Handlers) SetPool(w http.ResponseWriter, r *http.Request) {
	h.setAddress(w, r, h.proto.SetPoolAddress)
}

// SetTax updates the fee destination. Admin only.
func (h *Handlers) SetTax(w http.ResponseWriter, r *http.Request) {
	h.setAddress(w, r, h.proto.SetTaxAddress)
}

// TransferAdmin hands admin rights to another key. Admin only.
func (h *Handlers) TransferAdmin(w http.ResponseWriter, r *http.Request) {
	h.setAddress(w, r, h.proto.TransferAdmin)
}

func (h *Handlers) setAddress(w http.ResponseWriter, r *http.Request, op func(caller, addr solana.PublicKey) error) {
	var req addressRequest
	if !h.decode(w, r, &req) {
		return
	}
	addr, err := solana.PublicKeyFromBase58(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid address: %w", types.ErrInvalidArgument))
		return
	}
	if err := op(callerFrom(r.Context()), addr); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type feesRequest struct {
	CreationFee  uint64 `json:"creation_fee"`
	TradeFeeRate string `json:"trade_fee_rate"`
}

// SetFees replaces the fee schedule. Admin only.
func (h *Handlers) SetFees(w http.ResponseWriter, r *http.Request) {
	var req feesRequest
	if !h.decode(w, r, &req) {
		return
	}
	bps, err := config.TradeFeeBps(req.TradeFeeRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%v: %w", err, types.ErrInvalidArgument))
		return
	}
	fees := types.FeeSchedule{CreationFee: req.CreationFee, TradeFeeBps: bps}
	if err := h.proto.SetFeeSchedule(callerFrom(r.Context()), fees); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type depositRequest struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

// Deposit credits settlement to an account. Admin only.
func (h *Handlers) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !h.decode(w, r, &req) {
		return
	}
	owner, err := solana.PublicKeyFromBase58(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid owner: %w", types.ErrInvalidArgument))
		return
	}
	if err := h.proto.Deposit(callerFrom(r.Context()), owner, req.Amount); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": owner.String(), "balance": h.proto.Balance(owner)})
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %v: %w", err, types.ErrInvalidArgument))
		return false
	}
	return true
}

func (h *Handlers) tokenIndex(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid token index: %w", types.ErrInvalidArgument))
		return 0, false
	}
	return index, true
}

func (h *Handlers) address(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	addr, err := solana.PublicKeyFromBase58(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid address: %w", types.ErrInvalidArgument))
		return solana.PublicKey{}, false
	}
	return addr, true
}
