package payment

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"

	"coursemarket/backend/models"

	"github.com/stretchr/testify/assert"
)

func TestMapTransactionStatus(t *testing.T) {
	cases := []struct {
		tx, fraud, want string
	}{
		{"settlement", "", models.SessionStatusComplete},
		{"capture", "accept", models.SessionStatusComplete},
		{"capture", "challenge", models.SessionStatusOpen},
		{"pending", "", models.SessionStatusOpen},
		{"expire", "", models.SessionStatusExpired},
		{"deny", "", models.SessionStatusCanceled},
		{"refund", "", models.SessionStatusCanceled},
		{"something-new", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapTransactionStatus(tc.tx, tc.fraud), tc.tx)
	}
}

func TestVerifySignature(t *testing.T) {
	sum := sha512.Sum512([]byte("ORD-1" + "200" + "150000.00" + "server-key"))
	sig := hex.EncodeToString(sum[:])

	assert.True(t, VerifySignature("ORD-1", "200", "150000.00", "server-key", sig))
	assert.False(t, VerifySignature("ORD-1", "200", "150001.00", "server-key", sig))
	assert.False(t, VerifySignature("ORD-1", "200", "150000.00", "", sig))
}

func TestMidtransItemsGrossMatchesSum(t *testing.T) {
	items, gross := midtransItems(SessionRequest{
		OrderID: "o1",
		Amount:  30.2,
		Items: []LineItem{
			{ID: "c1", Name: "Go", Price: 10.4},
			{ID: "c2", Name: "Rust", Price: 19.8},
		},
	})
	assert.Len(t, items, 2)
	assert.Equal(t, int64(30), gross)

	items, gross = midtransItems(SessionRequest{OrderID: "o2", Amount: 99.6})
	assert.Len(t, items, 1)
	assert.Equal(t, int64(100), gross)
}

func TestNewSessionIDFitsMidtransLimit(t *testing.T) {
	id := newSessionID("3f1c2a9e-5b7d-4e8f-9a0b-1c2d3e4f5a6b")
	assert.True(t, strings.HasPrefix(id, "ORD-3f1c2a9e5b7d4e8f9a0b1c2d3e4f5a6b-"))
	assert.LessOrEqual(t, len(id), 50)
}
