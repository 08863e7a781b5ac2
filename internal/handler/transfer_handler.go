package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"codeferry/internal/auth"
	"codeferry/internal/domain"
	"codeferry/internal/service"
	"codeferry/internal/service/s3"
)

type TransferHandler struct {
	ledger   *service.LedgerService
	resolver *service.ResolverService
	blobs    s3.Storage
	baseURL  string
}

func NewTransferHandler(ledger *service.LedgerService, resolver *service.ResolverService, blobs s3.Storage, baseURL string) *TransferHandler {
	return &TransferHandler{
		ledger:   ledger,
		resolver: resolver,
		blobs:    blobs,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// UploadResponse возвращается отправителю после успешной резервации:
// код и ссылка — это то, что он передает получателю
type UploadResponse struct {
	ID          uuid.UUID                    `json:"id"`
	AccessCode  string                       `json:"access_code"`
	DownloadURL string                       `json:"download_url"`
	Transfer    domain.TransferRecordSummary `json:"transfer"`
}

// QuotaErrorResponse отдается при отказе квоты вместо записи
type QuotaErrorResponse struct {
	Error             string            `json:"error"`
	Reason            domain.DenyReason `json:"reason"`
	LimitBytes        int64             `json:"limit_bytes"`
	CurrentUsageBytes int64             `json:"current_usage_bytes"`
}

// writeDecision переводит отказ политики в HTTP статус: потолок на файл —
// 413, исчерпанная совокупная квота — 402
func writeDecision(w http.ResponseWriter, decision *domain.QuotaDecision) {
	status := http.StatusPaymentRequired
	message := "transfer quota exceeded"
	if decision.Reason == domain.DenyReasonPerFileLimit {
		status = http.StatusRequestEntityTooLarge
		message = "file exceeds size limit"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(QuotaErrorResponse{
		Error:             message,
		Reason:            decision.Reason,
		LimitBytes:        decision.LimitBytes,
		CurrentUsageBytes: decision.CurrentUsageBytes,
	})
}

// UploadTransfer принимает файл, резервирует квоту и код, кладет байты в
// хранилище. Без токена загрузка идет как гостевая
func (h *TransferHandler) UploadTransfer(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.OptionalToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		http.Error(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	fileHeader := files[0]

	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("[Upload] Ошибка открытия файла: %v", err)
		http.Error(w, "Failed to process file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	record, decision, err := h.ledger.ReserveUpload(
		r.Context(),
		accountID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
	)
	if err != nil {
		if errors.Is(err, domain.ErrCodeSpaceExhausted) {
			http.Error(w, "No access codes available, try again later", http.StatusServiceUnavailable)
			return
		}
		log.Printf("[Upload] Ошибка резервации: %v", err)
		http.Error(w, "Failed to reserve transfer", http.StatusInternalServerError)
		return
	}
	if decision != nil {
		writeDecision(w, decision)
		return
	}

	if err := h.blobs.PutObject(r.Context(), record.StorageKey, file); err != nil {
		log.Printf("[Upload] Ошибка записи в хранилище: %v", err)
		h.ledger.AbortReservation(r.Context(), record)
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	log.Printf("[Upload] Запись %s создана, код %s, размер %d", record.ID, record.AccessCode, record.SizeBytes)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(UploadResponse{
		ID:          record.ID,
		AccessCode:  record.AccessCode,
		DownloadURL: fmt.Sprintf("%s/v1/codes/%s", h.baseURL, record.AccessCode),
		Transfer:    record.Summary(),
	})
}

// ListTransfers возвращает живые записи владельца токена
func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	records, err := h.ledger.ListOwned(r.Context(), accountID)
	if err != nil {
		log.Printf("[List] Ошибка чтения записей: %v", err)
		http.Error(w, "Failed to list transfers", http.StatusInternalServerError)
		return
	}

	type ownedTransfer struct {
		ID         uuid.UUID                    `json:"id"`
		AccessCode string                       `json:"access_code"`
		Transfer   domain.TransferRecordSummary `json:"transfer"`
	}

	items := make([]ownedTransfer, 0, len(records))
	for i := range records {
		items = append(items, ownedTransfer{
			ID:         records[i].ID,
			AccessCode: records[i].AccessCode,
			Transfer:   records[i].Summary(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"transfers": items})
}

// DeleteTransfer удаляет запись. Токен не обязателен: гостевые записи
// удаляются по одному знанию id
func (h *TransferHandler) DeleteTransfer(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.OptionalToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid transfer ID", http.StatusBadRequest)
		return
	}

	if err := h.ledger.Delete(r.Context(), recordID, accountID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "Transfer not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrUnauthorized):
			http.Error(w, "Access denied", http.StatusForbidden)
		default:
			log.Printf("[Delete] Ошибка удаления %s: %v", recordID, err)
			http.Error(w, "Failed to delete transfer", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetCodeInfo возвращает метаданные по коду без учета скачивания
func (h *TransferHandler) GetCodeInfo(w http.ResponseWriter, r *http.Request) {
	record, err := h.resolver.ResolveInfo(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeResolveError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record.Summary())
}

// DownloadByCode отдает байты по коду. Скачивание учитывается до открытия
// потока; поддерживается один Range диапазон для докачки
func (h *TransferHandler) DownloadByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	info, err := h.resolver.ResolveInfo(r.Context(), code)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	var start, end int64
	partial := false
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		start, end, err = parseRange(rangeHeader, info.SizeBytes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
			return
		}
		partial = true
	}

	var record *domain.TransferRecord
	var object s3.S3Object
	var decision *domain.QuotaDecision
	if partial {
		record, object, decision, err = h.resolver.ResolveDownloadRange(r.Context(), code, start, end)
	} else {
		record, object, decision, err = h.resolver.ResolveDownload(r.Context(), code)
	}
	if err != nil {
		writeResolveError(w, err)
		return
	}
	if decision != nil {
		writeDecision(w, decision)
		return
	}
	defer object.Close()

	encodedName := url.QueryEscape(record.DisplayName)
	asciiName := strings.ReplaceAll(record.DisplayName, `"`, `\"`)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, asciiName, encodedName))
	w.Header().Set("Content-Type", record.MIMEType)
	w.Header().Set("Accept-Ranges", "bytes")

	if partial {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, record.SizeBytes))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
		w.WriteHeader(http.StatusOK)
	}

	written, err := io.Copy(w, object)
	if err != nil {
		log.Printf("[Download] Ошибка при отдаче %s: %v", record.ID, err)
		return
	}

	log.Printf("[Download] Запись %s, отправлено %d байт", record.ID, written)
}

func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Code not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrExpired):
		http.Error(w, "Transfer expired", http.StatusGone)
	case errors.Is(err, domain.ErrBlobMissing):
		http.Error(w, "Transfer no longer available", http.StatusGone)
	default:
		log.Printf("[Resolve] Ошибка: %v", err)
		http.Error(w, "Failed to resolve code", http.StatusInternalServerError)
	}
}

// parseRange разбирает заголовок Range; поддерживается ровно один диапазон
func parseRange(rangeHeader string, size int64) (int64, int64, error) {
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return 0, 0, fmt.Errorf("invalid range format")
	}

	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("multiple ranges not supported")
	}

	parts := strings.SplitN(strings.TrimSpace(spec), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid range format")
	}

	var start, end int64
	var err error

	if parts[0] == "" {
		// Суффиксный диапазон: -N
		var suffix int64
		suffix, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		if suffix > size {
			suffix = size
		}
		start = size - suffix
		end = size - 1
	} else {
		start, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		if parts[1] == "" {
			end = size - 1
		} else {
			end, err = strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, 0, err
			}
		}
	}

	if start < 0 || end < 0 || start > end || end >= size {
		return 0, 0, fmt.Errorf("invalid range values")
	}

	return start, end, nil
}
