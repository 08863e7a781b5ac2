package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"codeferry/internal/auth"
	"codeferry/internal/domain"
	"codeferry/internal/service"
)

type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// ListPlans отдает витрину тарифов; авторизация не требуется
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"plans": h.subscriptions.Plans()})
}

// GetAccount возвращает аккаунт владельца токена с текущим расходом квоты
func (h *SubscriptionHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := h.subscriptions.Current(r.Context(), accountID)
	if err != nil {
		log.Printf("[Account] Ошибка чтения аккаунта %s: %v", accountID, err)
		http.Error(w, "Failed to get account", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account.Summary())
}

// GetSubscription возвращает текущий тариф аккаунта
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := h.subscriptions.Current(r.Context(), accountID)
	if err != nil {
		log.Printf("[Subscription] Ошибка чтения аккаунта %s: %v", accountID, err)
		http.Error(w, "Failed to get subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"tier":                account.Tier,
		"transfer_limit":      account.TransferLimit,
		"subscription_expiry": account.SubscriptionExpiry,
	})
}

// Upgrade переводит аккаунт на указанный тариф
func (h *SubscriptionHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	account, err := h.subscriptions.Upgrade(r.Context(), accountID, domain.Tier(req.Tier))
	if err != nil {
		if errors.Is(err, service.ErrUnknownTier) {
			http.Error(w, "Unknown tier", http.StatusBadRequest)
			return
		}
		log.Printf("[Subscription] Ошибка апгрейда %s: %v", accountID, err)
		http.Error(w, "Failed to upgrade subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account.Summary())
}

// Cancel возвращает аккаунт на бесплатный тариф
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := h.subscriptions.Cancel(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, service.ErrCannotCancelFree) {
			http.Error(w, "Free tier cannot be cancelled", http.StatusBadRequest)
			return
		}
		log.Printf("[Subscription] Ошибка отмены %s: %v", accountID, err)
		http.Error(w, "Failed to cancel subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account.Summary())
}
