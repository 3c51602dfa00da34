package payments_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/medcamp-hub/backend/internal/middleware"
	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/internal/payments"
	"github.com/medcamp-hub/backend/internal/payments/mocks"
	"github.com/medcamp-hub/backend/pkg/docstore"
)

func newRouter(intents payments.IntentCreator) (*gin.Engine, *payments.Ledger) {
	gin.SetMode(gin.TestMode)
	store := docstore.NewMemory(models.UniqueKeys...)
	ledger := payments.NewLedger(store)
	h := payments.NewHandler(ledger, intents, "usd", nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserEmail, "p@x.com")
		c.Next()
	})
	r.GET("/payments", h.List)
	r.POST("/payments", h.Create)
	r.POST("/create-payment-intent", h.CreateIntent)
	return r, ledger
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateIntentConvertsToCents(t *testing.T) {
	ctrl := gomock.NewController(t)
	intents := mocks.NewMockIntentCreator(ctrl)
	intents.EXPECT().
		CreateIntent(gomock.Any(), payments.IntentRequest{AmountCents: 1999, Currency: "usd", Email: "p@x.com", CampID: "c1"}).
		Return("pi_secret_123", nil)

	r, _ := newRouter(intents)
	w := do(r, http.MethodPost, "/create-payment-intent", `{"price":19.99,"campId":"c1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data struct {
			ClientSecret string `json:"clientSecret"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "pi_secret_123", body.Data.ClientSecret)
}

func TestCreateIntentErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	intents := mocks.NewMockIntentCreator(ctrl)
	intents.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).Return("", errors.New("stripe: card_declined sk_live_x"))

	r, _ := newRouter(intents)
	w := do(r, http.MethodPost, "/create-payment-intent", `{"price":10}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "sk_live_x")

	// Invalid prices never reach the provider.
	for _, body := range []string{`{}`, `{"price":0}`, `{"price":-5}`} {
		w := do(r, http.MethodPost, "/create-payment-intent", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	r, _ = newRouter(nil)
	w = do(r, http.MethodPost, "/create-payment-intent", `{"price":10}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRawPaymentInsert(t *testing.T) {
	r, ledger := newRouter(nil)
	body := `{"email":"P@x.com","campName":"Health Camp","amount":25,"status":"paid","transactionId":"T1","paymentDate":"2024-01-02"}`

	w := do(r, http.MethodPost, "/payments", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/payments", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/payments", `{"email":"p@x.com","status":"paid","paymentDate":"2024-01-02"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/payments?email=p@X.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []models.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "p@x.com", list.Data[0].Email)

	total, err := ledger.Sum(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, total)
}
