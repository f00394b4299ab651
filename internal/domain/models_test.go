package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingStatus_CanTransition(t *testing.T) {
	assert.True(t, ListingStatusActive.CanTransition(ListingStatusReserved))
	assert.True(t, ListingStatusReserved.CanTransition(ListingStatusActive))
	assert.True(t, ListingStatusReserved.CanTransition(ListingStatusSold))

	assert.False(t, ListingStatusSold.CanTransition(ListingStatusActive))
	assert.False(t, ListingStatusSold.CanTransition(ListingStatusCancelled))
	assert.False(t, ListingStatusCancelled.CanTransition(ListingStatusActive))
	assert.False(t, ListingStatusActive.CanTransition(ListingStatusSold))
}

func TestChatRoom_IsParticipant(t *testing.T) {
	room := &ChatRoom{BuyerID: uuid.New(), SellerID: uuid.New()}

	assert.True(t, room.IsParticipant(room.BuyerID))
	assert.True(t, room.IsParticipant(room.SellerID))
	assert.False(t, room.IsParticipant(uuid.New()))
}

func TestMetadata_ScanValue(t *testing.T) {
	v, err := Metadata{"room_id": "r-1"}.Value()
	require.NoError(t, err)

	var m Metadata
	require.NoError(t, m.Scan(v))
	assert.Equal(t, "r-1", m["room_id"])

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)
	assert.Error(t, m.Scan(42))
}

func TestStringList_Scan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan(`["a","b"]`))
	assert.Equal(t, StringList{"a", "b"}, l)
}
