package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovementValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Movement)
		expected error
	}{
		{
			name:   "valid receipt",
			mutate: func(m *Movement) { m.ToLocationID = "loc-1" },
		},
		{
			name:     "non-positive quantity",
			mutate:   func(m *Movement) { m.ToLocationID = "loc-1"; m.Quantity = dec("0") },
			expected: ErrInvalidQuantity,
		},
		{
			name:     "unknown type",
			mutate:   func(m *Movement) { m.ToLocationID = "loc-1"; m.MovementType = "TELEPORT" },
			expected: ErrInvalidMovementType,
		},
		{
			name:     "no location",
			mutate:   func(m *Movement) {},
			expected: ErrMovementWithoutLocation,
		},
		{
			name: "transfer missing destination",
			mutate: func(m *Movement) {
				m.MovementType = MovementTypeTransfer
				m.FromLocationID = "loc-1"
			},
			expected: ErrMovementWithoutLocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMovement("tenant-1", "SM-20260830-0001", MovementTypeReceipt, "prod-1", dec("5"))
			tt.mutate(m)

			err := m.Validate()
			if tt.expected == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expected)
			}
		})
	}
}

func TestDeltaAt(t *testing.T) {
	m := NewMovement("tenant-1", "SM-20260830-0002", MovementTypeTransfer, "prod-1", dec("40"))
	m.FromLocationID = "loc-a"
	m.ToLocationID = "loc-b"

	assert.True(t, m.DeltaAt("loc-b").Equal(dec("40")))
	assert.True(t, m.DeltaAt("loc-a").Equal(dec("-40")))
	assert.True(t, m.DeltaAt("loc-c").IsZero())
}

func TestReplayOnHandReproducesBalance(t *testing.T) {
	key := BalanceKey{TenantID: "tenant-1", ProductID: "prod-1", LocationID: "loc-1"}

	receipt := NewMovement("tenant-1", "SM-20260830-0001", MovementTypeReceipt, "prod-1", dec("100"))
	receipt.ToLocationID = "loc-1"

	issue := NewMovement("tenant-1", "SM-20260830-0002", MovementTypeIssue, "prod-1", dec("30"))
	issue.FromLocationID = "loc-1"

	transferOut := NewMovement("tenant-1", "SM-20260830-0003", MovementTypeTransfer, "prod-1", dec("25"))
	transferOut.FromLocationID = "loc-1"
	transferOut.ToLocationID = "loc-2"

	adjustUp := NewMovement("tenant-1", "SM-20260830-0004", MovementTypeAdjustment, "prod-1", dec("5"))
	adjustUp.ToLocationID = "loc-1"

	movements := []*Movement{receipt, issue, transferOut, adjustUp}

	// 100 - 30 - 25 + 5
	assert.True(t, ReplayOnHand(key, movements).Equal(dec("50")))

	otherSide := BalanceKey{TenantID: "tenant-1", ProductID: "prod-1", LocationID: "loc-2"}
	assert.True(t, ReplayOnHand(otherSide, movements).Equal(dec("25")))
}

func TestReplayOnHandFiltersBatchAndSerial(t *testing.T) {
	key := BalanceKey{TenantID: "tenant-1", ProductID: "prod-1", LocationID: "loc-1", BatchNumber: "B1"}

	batched := NewMovement("tenant-1", "SM-20260830-0001", MovementTypeReceipt, "prod-1", dec("10"))
	batched.ToLocationID = "loc-1"
	batched.BatchNumber = "B1"

	unbatched := NewMovement("tenant-1", "SM-20260830-0002", MovementTypeReceipt, "prod-1", dec("99"))
	unbatched.ToLocationID = "loc-1"

	result := ReplayOnHand(key, []*Movement{batched, unbatched})

	require.True(t, result.Equal(dec("10")))
}

func TestMovementConservationOnTransfer(t *testing.T) {
	// A single transfer entry nets to zero across both locations.
	m := NewMovement("tenant-1", "SM-20260830-0005", MovementTypeTransfer, "prod-1", dec("40"))
	m.FromLocationID = "loc-a"
	m.ToLocationID = "loc-b"

	net := m.DeltaAt("loc-a").Add(m.DeltaAt("loc-b"))

	assert.True(t, net.IsZero())
}
