package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// maxBodyBytes 交易請求內容上限
const maxBodyBytes = 64 << 10

// transactionRequest 欄位用指標區分「缺少 / null」與零值
type transactionRequest struct {
	Amount      *uint64 `json:"amount"`
	Kind        *string `json:"kind"`
	Description *string `json:"description"`
}

type balanceResponse struct {
	Limit   int64 `json:"limit"`
	Balance int64 `json:"balance"`
}

type statementResponse struct {
	Balance          statementBalance      `json:"balance"`
	LastTransactions []statementTransaction `json:"lastTransactions"`
}

type statementBalance struct {
	Total     int64     `json:"total"`
	Limit     int64     `json:"limit"`
	Timestamp time.Time `json:"timestamp"`
}

type statementTransaction struct {
	Amount      int64       `json:"amount"`
	Kind        domain.Kind `json:"kind"`
	Description string      `json:"description"`
	Timestamp   time.Time   `json:"timestamp"`
}

type Handler struct {
	core *usecase.CoreUseCase
}

func NewHandler(core *usecase.CoreUseCase) *Handler {
	return &Handler{core: core}
}

// PostTransaction POST /accounts/:id/transactions
func (h *Handler) PostTransaction(c *gin.Context) {
	accountID, err := domain.ParseAccountID(c.Param("id"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	req, code := decodeTransaction(c)
	if code != 0 {
		c.Status(code)
		return
	}

	bal, err := h.core.PostTransaction(c.Request.Context(), accountID, int64(*req.Amount), *req.Kind, *req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceResponse{Limit: bal.Limit, Balance: bal.Total})
}

// GetStatement GET /accounts/:id/statement
func (h *Handler) GetStatement(c *gin.Context) {
	accountID, err := domain.ParseAccountID(c.Param("id"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	statement, err := h.core.GetStatement(c.Request.Context(), accountID)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := statementResponse{
		Balance: statementBalance{
			Total:     statement.Balance.Total,
			Limit:     statement.Balance.Limit,
			Timestamp: statement.Date,
		},
		LastTransactions: make([]statementTransaction, 0, len(statement.Transactions)),
	}
	for _, t := range statement.Transactions {
		resp.LastTransactions = append(resp.LastTransactions, statementTransaction{
			Amount:      t.Amount,
			Kind:        t.Kind,
			Description: t.Description,
			Timestamp:   t.PostedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// fail 錯誤只回狀態碼，內部錯誤才寫 log
func (h *Handler) fail(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Printf("request %s %s %s: %v", c.GetString(ctxRequestID), c.Request.Method, c.Request.URL.Path, err)
	}
	c.Status(code)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransaction), errors.Is(err, domain.ErrLimitExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeTransaction 解析請求內容，失敗時回傳對應的狀態碼
// 不是合法 JSON 或必要欄位缺少 / null: 422；其他格式錯誤 (型別不符、負數、小數、過大): 400
func decodeTransaction(c *gin.Context) (transactionRequest, int) {
	var req transactionRequest
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return req, http.StatusBadRequest
	}
	// Decoder 只讀第一個值，尾端多餘的內容 (或第二個物件) 要在這裡擋下
	if !json.Valid(body) {
		return req, http.StatusUnprocessableEntity
	}
	if err := binding.JSON.BindBody(body, &req); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &syntaxErr) {
			return req, http.StatusUnprocessableEntity
		}
		return req, http.StatusBadRequest
	}
	if req.Amount == nil || req.Kind == nil || req.Description == nil {
		return req, http.StatusUnprocessableEntity
	}
	if *req.Amount > math.MaxInt64 {
		return req, http.StatusBadRequest
	}
	return req, 0
}
