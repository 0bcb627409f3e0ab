package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cuentas-labs/cuentas/internal/domain"
	"github.com/cuentas-labs/cuentas/internal/security"
)

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// ─── Accounts ───────────────────────────────────────────────────────────────

type accountRequest struct {
	Name        string            `json:"name"`
	Frequency   string            `json:"frequency"`
	WebsiteURL  string            `json:"website_url"`
	DriverName  string            `json:"driver_name"`
	Identifiers map[string]string `json:"identifiers"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.db.ListAccounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Frequency == "" {
		req.Frequency = "monthly"
	}
	if req.Identifiers == nil {
		req.Identifiers = map[string]string{}
	}

	id, err := s.db.InsertAccount(domain.Account{
		Name:        req.Name,
		Frequency:   req.Frequency,
		WebsiteURL:  req.WebsiteURL,
		DriverName:  req.DriverName,
		Identifiers: req.Identifiers,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	account, err := s.db.GetAccount(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := s.db.GetAccount(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// accountUpdateRequest uses pointers so an absent field (leave as is)
// is distinguishable from an explicit empty string (clear the value).
type accountUpdateRequest struct {
	Name        *string           `json:"name"`
	Frequency   *string           `json:"frequency"`
	WebsiteURL  *string           `json:"website_url"`
	DriverName  *string           `json:"driver_name"`
	Identifiers map[string]string `json:"identifiers"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req accountUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}

	account, err := s.db.GetAccount(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.Frequency != nil {
		account.Frequency = *req.Frequency
	}
	if req.WebsiteURL != nil {
		account.WebsiteURL = *req.WebsiteURL
	}
	if req.DriverName != nil {
		account.DriverName = *req.DriverName
	}
	if req.Identifiers != nil {
		account.Identifiers = req.Identifiers
	}

	if err := s.db.UpdateAccount(*account); err != nil {
		writeDomainError(w, err)
		return
	}
	updated, err := s.db.GetAccount(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.DeleteAccount(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSyncAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := s.db.GetAccount(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	taskID, err := s.orch.SubmitSync(account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// ─── Bills ──────────────────────────────────────────────────────────────────

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	var accountID int64
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		accountID = id
	}
	status := domain.BillStatus(r.URL.Query().Get("status"))

	bills, err := s.db.ListBills(accountID, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bills == nil {
		bills = []domain.Bill{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bill, err := s.db.GetBill(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bill, err := s.db.GetBill(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	account, err := s.db.GetAccount(bill.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var paymentMethodID int64
	if raw := r.URL.Query().Get("payment_method_id"); raw != "" {
		pmID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid payment_method_id")
			return
		}
		// Reject unknown methods here, before a task exists.
		if _, err := s.db.GetPaymentMethod(pmID); err != nil {
			writeDomainError(w, err)
			return
		}
		paymentMethodID = pmID
	}

	taskID, err := s.orch.SubmitPay(account, bill, paymentMethodID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// ─── Payment methods ────────────────────────────────────────────────────────

type paymentMethodRequest struct {
	Name       string `json:"name"`
	CardType   string `json:"card_type"`
	CardNumber string `json:"card_number"`
	ExpiryDate string `json:"expiry_date"`
	CVV        string `json:"cvv"`
}

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := s.db.ListPaymentMethods()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if methods == nil {
		methods = []domain.PaymentMethod{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment_methods": methods})
}

// handleCreatePaymentMethod seals the card material before anything is
// persisted. The response never carries more than the last four digits.
func (s *Server) handleCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.CardNumber == "" || req.ExpiryDate == "" || req.CVV == "" {
		writeError(w, http.StatusBadRequest, "name, card_number, expiry_date and cvv are required")
		return
	}
	if len(req.CardNumber) < 4 {
		writeError(w, http.StatusBadRequest, "card_number too short")
		return
	}
	if req.CardType == "" {
		req.CardType = "credit"
	}

	card := security.CardData{
		CardNumber: req.CardNumber,
		ExpiryDate: req.ExpiryDate,
		CVV:        req.CVV,
	}
	if err := card.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sealed, err := s.cards.Encrypt(card)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id, err := s.db.InsertPaymentMethod(domain.PaymentMethod{
		Name:           req.Name,
		CardType:       req.CardType,
		LastFourDigits: req.CardNumber[len(req.CardNumber)-4:],
		EncryptedData:  sealed,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	method, err := s.db.GetPaymentMethod(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, method)
}

func (s *Server) handleGetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	method, err := s.db.GetPaymentMethod(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, method)
}

// handleRenamePaymentMethod updates the display name only. Card
// material is immutable — replacing a card means creating a new method.
func (s *Server) handleRenamePaymentMethod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.db.RenamePaymentMethod(id, req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	method, err := s.db.GetPaymentMethod(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, method)
}

func (s *Server) handleDeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.DeletePaymentMethod(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ─── Payments ───────────────────────────────────────────────────────────────

type paymentRequest struct {
	AccountID       int64   `json:"account_id"`
	PaymentMethodID int64   `json:"payment_method_id"`
	BillID          int64   `json:"bill_id"`
	Amount          float64 `json:"amount"`
	Notes           string  `json:"notes"`
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	var accountID int64
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		accountID = id
	}

	payments, err := s.db.ListPayments(accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// handleCreatePayment records a manual payment made outside any driver
// (cash at the counter, bank transfer). Driver-confirmed payments are
// written by the pay task itself.
func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AccountID == 0 || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "account_id and a positive amount are required")
		return
	}
	if _, err := s.db.GetAccount(req.AccountID); err != nil {
		writeDomainError(w, err)
		return
	}

	id, err := s.db.InsertPayment(domain.Payment{
		AccountID:       req.AccountID,
		PaymentMethodID: req.PaymentMethodID,
		BillID:          req.BillID,
		Amount:          req.Amount,
		Status:          "completed",
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payment, err := s.db.GetPayment(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := s.db.GetPayment(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.DeletePayment(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.db.GetTask(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
