package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/auth"
	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/handler/config"
	"github.com/iurnickita/pixrecon/internal/issuer"
	"github.com/iurnickita/pixrecon/internal/logger"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/service"
)

// Serve listens until ctx is cancelled, then drains in-flight requests.
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(cfg, auth, service, zaplog)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h.newRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zaplog.Info("listening", zap.String("addr", cfg.ServerAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zaplog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type handler struct {
	cfg     config.Config
	auth    auth.Auth
	service service.Service
	zaplog  *zap.Logger
}

func newHandler(cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) *handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &handler{
		cfg:     cfg,
		auth:    auth,
		service: service,
		zaplog:  zaplog.Named("handler"),
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	// операторские запросы
	mux.HandleFunc("POST /payments", logger.RequestLogMdlw(h.auth.Middleware(h.PostPayment), h.zaplog))
	mux.HandleFunc("GET /payments/pending", logger.RequestLogMdlw(h.auth.Middleware(h.GetPending), h.zaplog))
	mux.HandleFunc("GET /payments/{identifier}", logger.RequestLogMdlw(h.auth.Middleware(h.GetPayment), h.zaplog))
	mux.HandleFunc("POST /payments/confirm", logger.RequestLogMdlw(h.auth.Middleware(h.PostConfirm), h.zaplog))
	mux.HandleFunc("POST /payments/reject", logger.RequestLogMdlw(h.auth.Middleware(h.PostReject), h.zaplog))
	mux.HandleFunc("POST /payments/poll/start", logger.RequestLogMdlw(h.auth.Middleware(h.PostPollStart), h.zaplog))
	mux.HandleFunc("POST /payments/poll/stop", logger.RequestLogMdlw(h.auth.Middleware(h.PostPollStop), h.zaplog))
	mux.HandleFunc("GET /payments/poll", logger.RequestLogMdlw(h.auth.Middleware(h.GetPolls), h.zaplog))
	// провайдер
	mux.HandleFunc("POST /webhooks/payment", logger.RequestLogMdlw(h.PostWebhook, h.zaplog))
	mux.HandleFunc("GET /health", h.GetHealth)

	return mux
}

type PaymentJSON struct {
	Identifier        string     `json:"identifier"`
	Period            string     `json:"period"`
	PayerID           string     `json:"payerId"`
	PayerName         string     `json:"payerName,omitempty"`
	PayerContact      string     `json:"payerContact,omitempty"`
	Item              string     `json:"item"`
	Cycle             string     `json:"cycle,omitempty"`
	Amount            string     `json:"amount"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	ConfirmedAt       *time.Time `json:"confirmedAt,omitempty"`
	ProviderPaymentID string     `json:"providerPaymentId,omitempty"`
	PaidAmount        string     `json:"paidAmount,omitempty"`
	Source            string     `json:"source,omitempty"`
	ConfirmedBy       string     `json:"confirmedBy,omitempty"`
	RejectReason      string     `json:"rejectReason,omitempty"`
	RejectedAt        *time.Time `json:"rejectedAt,omitempty"`
}

func paymentJSON(req model.PaymentRequest) PaymentJSON {
	p := PaymentJSON{
		Identifier:        req.Identifier,
		Period:            req.Period,
		PayerID:           req.PayerID,
		PayerName:         req.PayerName,
		PayerContact:      req.PayerContact,
		Item:              req.Item,
		Cycle:             req.Cycle,
		Amount:            req.Amount.StringFixed(2),
		Status:            string(req.Status),
		CreatedAt:         req.CreatedAt,
		ConfirmedAt:       req.ConfirmedAt,
		ProviderPaymentID: req.ProviderPaymentID,
		Source:            string(req.Source),
		ConfirmedBy:       req.ConfirmedBy,
		RejectReason:      req.RejectReason,
		RejectedAt:        req.RejectedAt,
	}
	if req.PaidAmount != nil {
		p.PaidAmount = req.PaidAmount.StringFixed(2)
	}
	return p
}

// amountField accepts 45, 45.5 and "45.00".
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	*a = amountField(strings.Trim(string(b), `"`))
	return nil
}

type PostPaymentJSONRequest struct {
	PayerID      string      `json:"payerId"`
	PayerName    string      `json:"payerName"`
	PayerContact string      `json:"payerContact"`
	Item         string      `json:"item"`
	Cycle        string      `json:"cycle"`
	Amount       amountField `json:"amount"`
	Period       string      `json:"period"`
	Identifier   string      `json:"identifier"`
	Scheme       string      `json:"scheme"`
}

func (h *handler) PostPayment(w http.ResponseWriter, r *http.Request) {
	var req PostPaymentJSONRequest
	if !h.decode(w, r, &req) {
		return
	}

	payment, err := h.service.Issue(r.Context(), issuer.IssueParams{
		PayerID:      req.PayerID,
		PayerName:    req.PayerName,
		PayerContact: req.PayerContact,
		Item:         req.Item,
		Cycle:        req.Cycle,
		Amount:       string(req.Amount),
		Period:       req.Period,
		Identifier:   req.Identifier,
		Scheme:       issuer.Scheme(req.Scheme),
	})
	if err != nil {
		var dup *issuer.DuplicateError
		if errors.As(err, &dup) {
			h.writeJSON(w, http.StatusConflict, ErrorJSONResponse{Error: err.Error(), Payment: ptr(paymentJSON(dup.Existing))})
			return
		}
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, paymentJSON(payment))
}

func (h *handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.Get(r.Context(), r.PathValue("identifier"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paymentJSON(payment))
}

func (h *handler) GetPending(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"
	pending, err := h.service.Pending(r.Context(), r.URL.Query().Get("period"), refresh)
	if err != nil {
		h.writeError(w, err)
		return
	}

	list := make([]PaymentJSON, 0, len(pending))
	for _, req := range pending {
		list = append(list, paymentJSON(req))
	}
	h.writeJSON(w, http.StatusOK, list)
}

type PostConfirmJSONRequest struct {
	Identifier        string      `json:"identifier"`
	Amount            amountField `json:"amount"`
	PaidAt            *time.Time  `json:"paidAt"`
	ProviderPaymentID string      `json:"providerPaymentId"`
}

type ConfirmJSONResponse struct {
	Outcome        string      `json:"outcome"`
	AmountMismatch bool        `json:"amountMismatch,omitempty"`
	Payment        PaymentJSON `json:"payment"`
}

func (h *handler) PostConfirm(w http.ResponseWriter, r *http.Request) {
	var req PostConfirmJSONRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := issuer.ParseAmount(string(req.Amount))
	if err != nil {
		h.writeError(w, err)
		return
	}

	c := model.Confirmation{
		Identifier:        req.Identifier,
		ObservedAmount:    amount,
		ProviderPaymentID: req.ProviderPaymentID,
		Source:            model.SourceManual,
		Operator:          auth.Operator(r.Context()),
	}
	if req.PaidAt != nil {
		c.ConfirmedAt = *req.PaidAt
	}

	res, err := h.service.Confirm(r.Context(), c)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

type PostRejectJSONRequest struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

func (h *handler) PostReject(w http.ResponseWriter, r *http.Request) {
	var req PostRejectJSONRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Reject(r.Context(), req.Identifier, req.Reason, auth.Operator(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

// writeResult answers 400 with the stored record when nothing changed.
func (h *handler) writeResult(w http.ResponseWriter, res model.ConfirmationResult) {
	if !res.Applied() {
		h.writeJSON(w, http.StatusBadRequest, ErrorJSONResponse{
			Error:   "payment request is already " + strings.ToLower(string(res.Request.Status)),
			Payment: ptr(paymentJSON(res.Request)),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, ConfirmJSONResponse{
		Outcome:        string(res.Outcome),
		AmountMismatch: res.AmountMismatch,
		Payment:        paymentJSON(res.Request),
	})
}

type PostPollStartJSONRequest struct {
	ProviderPaymentID string `json:"providerPaymentId"`
	IntervalMs        int64  `json:"intervalMs"`
	TimeoutMs         int64  `json:"timeoutMs"`
}

func (h *handler) PostPollStart(w http.ResponseWriter, r *http.Request) {
	var req PostPollStartJSONRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.IntervalMs < 0 || req.TimeoutMs < 0 {
		h.writeError(w, errs.Wrap(errs.ErrValidation, "intervalMs and timeoutMs must not be negative"))
		return
	}

	err := h.service.StartPoll(req.ProviderPaymentID,
		time.Duration(req.IntervalMs)*time.Millisecond,
		time.Duration(req.TimeoutMs)*time.Millisecond)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"providerPaymentId": req.ProviderPaymentID, "status": "polling"})
}

type PostPollStopJSONRequest struct {
	ProviderPaymentID string `json:"providerPaymentId"`
}

func (h *handler) PostPollStop(w http.ResponseWriter, r *http.Request) {
	var req PostPollStopJSONRequest
	if !h.decode(w, r, &req) {
		return
	}
	stopped := h.service.StopPoll(req.ProviderPaymentID)
	h.writeJSON(w, http.StatusOK, map[string]any{"providerPaymentId": req.ProviderPaymentID, "stopped": stopped})
}

type GetPollsJSONResponse struct {
	Count   int      `json:"count"`
	Targets []string `json:"targets"`
}

func (h *handler) GetPolls(w http.ResponseWriter, r *http.Request) {
	targets := h.service.Polls()
	if targets == nil {
		targets = []string{}
	}
	h.writeJSON(w, http.StatusOK, GetPollsJSONResponse{Count: len(targets), Targets: targets})
}

func (h *handler) PostWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"result": "malformed"})
		return
	}
	resp := h.service.Webhook(r.Context(), body, r.Header.Get("x-signature"))
	h.writeJSON(w, resp.Status, resp.Body)
}

func (h *handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ErrorJSONResponse struct {
	Error   string       `json:"error"`
	Payment *PaymentJSON `json:"payment,omitempty"`
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorJSONResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errs.Is(err, errs.ErrValidation):
		h.writeJSON(w, http.StatusBadRequest, ErrorJSONResponse{Error: err.Error()})
	case errs.Is(err, errs.ErrDuplicateRequest):
		h.writeJSON(w, http.StatusConflict, ErrorJSONResponse{Error: err.Error()})
	case errs.Is(err, errs.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, ErrorJSONResponse{Error: err.Error()})
	case errs.Is(err, errs.ErrUnauthorized):
		h.writeJSON(w, http.StatusUnauthorized, ErrorJSONResponse{Error: err.Error()})
	default:
		h.zaplog.Error("request failed",
			zap.Error(err),
			zap.Strings("stack", errs.ExtractStackLines(err, 12)))
		h.writeJSON(w, http.StatusInternalServerError, ErrorJSONResponse{Error: "internal error"})
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(responseJSON)
}

func ptr[T any](v T) *T {
	return &v
}
