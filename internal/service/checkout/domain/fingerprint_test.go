package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintIsOrderIndependent(t *testing.T) {
	a := []OrderItem{
		{ProductID: "p-1", VariantID: "v-1", Quantity: 2},
		{ProductID: "p-2", VariantID: "v-9", Quantity: 1},
	}
	b := []OrderItem{
		{ProductID: "p-2", VariantID: "v-9", Quantity: 1},
		{ProductID: "p-1", VariantID: "v-1", Quantity: 2},
	}

	assert.Equal(t,
		ComputeFingerprint("alice@example.com", a),
		ComputeFingerprint("alice@example.com", b))
}

func TestFingerprintNormalizesEmail(t *testing.T) {
	items := []OrderItem{{ProductID: "p-1", Quantity: 1}}
	assert.Equal(t,
		ComputeFingerprint("Alice@Example.com ", items),
		ComputeFingerprint("alice@example.com", items))
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	base := []OrderItem{{ProductID: "p-1", VariantID: "v-1", Quantity: 2}}
	fp := ComputeFingerprint("alice@example.com", base)

	differentQty := []OrderItem{{ProductID: "p-1", VariantID: "v-1", Quantity: 3}}
	assert.NotEqual(t, fp, ComputeFingerprint("alice@example.com", differentQty))

	differentVariant := []OrderItem{{ProductID: "p-1", VariantID: "v-2", Quantity: 2}}
	assert.NotEqual(t, fp, ComputeFingerprint("alice@example.com", differentVariant))

	differentCustomer := ComputeFingerprint("bob@example.com", base)
	assert.NotEqual(t, fp, differentCustomer)
}

func TestFingerprintIgnoresUnitPrice(t *testing.T) {
	cheap := []OrderItem{{ProductID: "p-1", Quantity: 1, UnitPrice: 100}}
	pricey := []OrderItem{{ProductID: "p-1", Quantity: 1, UnitPrice: 200}}
	assert.Equal(t,
		ComputeFingerprint("alice@example.com", cheap),
		ComputeFingerprint("alice@example.com", pricey))
}
